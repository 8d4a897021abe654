package contentstore

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"
)

// DefaultHashAlgorithm is used when no algorithm is configured.
const DefaultHashAlgorithm = "md5"

// newHasher returns a hash.Hash for the named algorithm.
func newHasher(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case "md5", "":
		return md5.New(), nil
	case "sha1":
		return sha1.New(), nil
	case "sha256":
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", algorithm)
	}
}

package contentstore

import (
	"fmt"

	"github.com/mnlt/filemigrator/internal/config"
)

// New creates a ContentStore from configuration, keyed on the backend.
// Parameters:
//   - cfg: full application configuration.
// Returns:
//   - ContentStore: initialized store implementation.
//   - error: non-nil if the store cannot be created.
func New(cfg *config.Config) (ContentStore, error) {
	switch cfg.Storage.Backend {
	case "local", "":
		return NewLocalStore(cfg.Paths.SourceDir, cfg.Paths.TargetDir), nil
	case "s3":
		return NewS3Store(&S3Config{
			Type:      DetectStorageType(cfg.Storage.Endpoint),
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}

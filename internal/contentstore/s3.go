package contentstore

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mnlt/filemigrator/internal/domain"
)

// StorageType defines the flavor of S3-compatible storage
type StorageType string

const (
	StorageTypeR2           StorageType = "r2"
	StorageTypeS3           StorageType = "s3"
	StorageTypeS3Compatible StorageType = "s3compatible"
)

// Object key prefixes standing in for the two physical layouts.
const (
	flatPrefix = "flat/"
	datePrefix = "byday/"
)

// S3Config holds configuration for S3-compatible storage
type S3Config struct {
	Type      StorageType
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string
}

// S3Store implements ContentStore against an S3-compatible bucket. The flat
// layout lives under flat/<id> and the date-partitioned layout under
// byday/YYYYMMDD/<id>.
type S3Store struct {
	client    *s3.Client
	bucket    string
	storeType StorageType
}

// NewS3Store creates a new S3-compatible content store.
func NewS3Store(cfg *S3Config) (*S3Store, error) {
	// Normalize endpoint: remove protocol prefix and trailing slashes/paths
	endpoint := normalizeEndpoint(cfg.Endpoint)

	// Determine region
	region := cfg.Region
	if region == "" {
		if cfg.Type == StorageTypeR2 {
			region = "auto"
		} else {
			region = "us-east-1" // Default region for S3-compatible services
		}
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	endpointURL := fmt.Sprintf("%s://%s", scheme, endpoint)

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Path-style addressing for S3-compatible services
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpointURL)
		o.UsePathStyle = true
	})

	return &S3Store{
		client:    client,
		bucket:    cfg.Bucket,
		storeType: cfg.Type,
	}, nil
}

// normalizeEndpoint removes protocol prefix and path from endpoint
func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")

	if idx := strings.Index(endpoint, "/"); idx != -1 {
		endpoint = endpoint[:idx]
	}

	return strings.TrimSuffix(endpoint, "/")
}

// DetectStorageType attempts to detect the storage type from the endpoint.
func DetectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}

// keyFor resolves the object key in the layout selected by moved.
func (s *S3Store) keyFor(id string, moved bool, createdDate time.Time) string {
	if moved {
		return datePrefix + DateDir(createdDate) + "/" + id
	}
	return flatPrefix + id
}

// isNotFound detects missing-object errors from the S3 API.
func isNotFound(err error) bool {
	return strings.Contains(err.Error(), "NotFound") ||
		strings.Contains(err.Error(), "NoSuchKey") ||
		strings.Contains(err.Error(), "404")
}

// EnsureLayout creates the bucket if it doesn't exist.
func (s *S3Store) EnsureLayout(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	// R2 doesn't support creating buckets via API - must use dashboard
	if s.storeType == StorageTypeR2 {
		return domain.NewMigrationError(domain.ErrKindUnreachable, "",
			fmt.Errorf("bucket %s does not exist, please create it in R2 dashboard", s.bucket))
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return domain.NewMigrationError(domain.ErrKindUnreachable, "",
			fmt.Errorf("failed to create bucket: %w", err))
	}
	return nil
}

func (s *S3Store) Exists(ctx context.Context, id string, moved bool, createdDate time.Time) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.keyFor(id, moved, createdDate)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, domain.NewMigrationError(domain.ErrKindTransientIO, id,
			fmt.Errorf("failed to check object existence: %w", err))
	}
	return true, nil
}

func (s *S3Store) ReadBytes(ctx context.Context, id string, moved bool, createdDate time.Time) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.keyFor(id, moved, createdDate)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, domain.NewMigrationError(domain.ErrKindNotFound, id, err)
		}
		return nil, domain.NewMigrationError(domain.ErrKindTransientIO, id,
			fmt.Errorf("failed to download object: %w", err))
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, domain.NewMigrationError(domain.ErrKindTransientIO, id, err)
	}
	return data, nil
}

func (s *S3Store) WriteToNewLayout(ctx context.Context, id string, createdDate time.Time, data []byte) (string, error) {
	key := s.keyFor(id, true, createdDate)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", domain.NewMigrationError(domain.ErrKindTransientIO, id,
			fmt.Errorf("failed to upload object: %w", err))
	}
	return key, nil
}

func (s *S3Store) RemoveFromOldLayout(ctx context.Context, id string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(flatPrefix + id),
	})
	if err != nil {
		return domain.NewMigrationError(domain.ErrKindTransientIO, id,
			fmt.Errorf("failed to delete object: %w", err))
	}
	return nil
}

// Hash downloads the object and digests it. The S3 ETag is not usable here
// because multipart uploads do not carry a content MD5.
func (s *S3Store) Hash(ctx context.Context, id string, moved bool, createdDate time.Time, algorithm string) (string, error) {
	hasher, err := newHasher(algorithm)
	if err != nil {
		return "", domain.NewMigrationError(domain.ErrKindValidation, id, err)
	}
	data, err := s.ReadBytes(ctx, id, moved, createdDate)
	if err != nil {
		return "", err
	}
	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func (s *S3Store) SizeOf(ctx context.Context, id string, moved bool, createdDate time.Time) (int64, error) {
	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.keyFor(id, moved, createdDate)),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, domain.NewMigrationError(domain.ErrKindNotFound, id, err)
		}
		return 0, domain.NewMigrationError(domain.ErrKindTransientIO, id, err)
	}
	return aws.ToInt64(result.ContentLength), nil
}

// AggregateStats lists both prefixes and totals object counts and sizes.
// Date "directories" are distinct YYYYMMDD key segments under the new layout.
func (s *S3Store) AggregateStats(ctx context.Context) (domain.StorageStats, error) {
	var stats domain.StorageStats

	count, size, _, err := s.sumPrefix(ctx, flatPrefix)
	if err != nil {
		return stats, err
	}
	stats.UnmovedCount, stats.UnmovedBytes = count, size

	count, size, dateDirs, err := s.sumPrefix(ctx, datePrefix)
	if err != nil {
		return stats, err
	}
	stats.MovedCount, stats.MovedBytes = count, size
	stats.DateDirCount = dateDirs

	return stats, nil
}

func (s *S3Store) sumPrefix(ctx context.Context, prefix string) (count, size int64, dateDirs int, err error) {
	seen := make(map[string]struct{})
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, 0, 0, domain.NewMigrationError(domain.ErrKindUnreachable, "",
				fmt.Errorf("failed to list objects: %w", err))
		}
		for _, obj := range page.Contents {
			count++
			size += aws.ToInt64(obj.Size)
			rest := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if idx := strings.Index(rest, "/"); idx != -1 {
				seen[rest[:idx]] = struct{}{}
			}
		}
	}
	return count, size, len(seen), nil
}

// RemoveEmptyDirectories is a no-op for object storage: prefixes disappear
// with their last object.
func (s *S3Store) RemoveEmptyDirectories(ctx context.Context) (int, error) {
	return 0, nil
}

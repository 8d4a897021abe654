package contentstore

import (
	"context"
	"time"

	"github.com/mnlt/filemigrator/internal/domain"
)

// ContentStore defines the operations the migration orchestrator needs
// against the two physical layouts: the flat "old" layout keyed by file ID
// and the date-partitioned "new" layout (YYYYMMDD/<id>).
//
// WriteToNewLayout never touches the source copy; deleting the source after
// verification is the orchestrator's job, via RemoveFromOldLayout.
type ContentStore interface {
	// EnsureLayout creates or verifies the configured base locations.
	EnsureLayout(ctx context.Context) error

	// Exists reports whether the file is present in the layout selected by moved.
	Exists(ctx context.Context, id string, moved bool, createdDate time.Time) (bool, error)

	// ReadBytes returns the file content from the layout selected by moved.
	// Fails with a not-found kind if the file is absent.
	ReadBytes(ctx context.Context, id string, moved bool, createdDate time.Time) ([]byte, error)

	// WriteToNewLayout writes content to the date-partitioned path derived
	// from createdDate and returns that path. The source copy is preserved.
	WriteToNewLayout(ctx context.Context, id string, createdDate time.Time, data []byte) (string, error)

	// RemoveFromOldLayout deletes the flat-layout copy of the file.
	RemoveFromOldLayout(ctx context.Context, id string) error

	// Hash returns the hex digest of the file content using the given
	// algorithm (md5, sha1 or sha256). Fails with a not-found kind if the
	// file is absent.
	Hash(ctx context.Context, id string, moved bool, createdDate time.Time, algorithm string) (string, error)

	// SizeOf returns the file size in bytes. Fails with a not-found kind if
	// the file is absent.
	SizeOf(ctx context.Context, id string, moved bool, createdDate time.Time) (int64, error)

	// AggregateStats returns counts and byte totals for both layouts.
	AggregateStats(ctx context.Context) (domain.StorageStats, error)

	// RemoveEmptyDirectories removes empty date directories from the new
	// layout and returns how many were removed.
	RemoveEmptyDirectories(ctx context.Context) (int, error)
}

// DateDir formats the date-partition directory name for a creation date.
func DateDir(createdDate time.Time) string {
	return createdDate.Local().Format("20060102")
}

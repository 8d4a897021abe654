package contentstore

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mnlt/filemigrator/internal/domain"
)

// LocalStore implements ContentStore on the local filesystem. The old
// layout keeps every file directly under basePath keyed by ID; the new
// layout nests files under newBasePath/YYYYMMDD.
type LocalStore struct {
	basePath    string
	newBasePath string
}

// NewLocalStore creates a LocalStore over the two configured directories.
func NewLocalStore(sourceDir, targetDir string) *LocalStore {
	return &LocalStore{
		basePath:    sourceDir,
		newBasePath: targetDir,
	}
}

// EnsureLayout creates the base directories if they do not exist.
func (s *LocalStore) EnsureLayout(ctx context.Context) error {
	for _, dir := range []string{s.basePath, s.newBasePath} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return domain.NewMigrationError(domain.ErrKindUnreachable, "",
				fmt.Errorf("failed to create directory %s: %w", dir, err))
		}
	}
	return nil
}

// pathFor resolves the file path in the layout selected by moved.
func (s *LocalStore) pathFor(id string, moved bool, createdDate time.Time) string {
	if moved {
		return filepath.Join(s.newBasePath, DateDir(createdDate), id)
	}
	return filepath.Join(s.basePath, id)
}

// classify maps a filesystem error to a migration error kind for one file.
func classify(id string, err error) error {
	switch {
	case os.IsNotExist(err):
		return domain.NewMigrationError(domain.ErrKindNotFound, id, err)
	case os.IsPermission(err):
		return domain.NewMigrationError(domain.ErrKindPermissionDenied, id, err)
	default:
		return domain.NewMigrationError(domain.ErrKindTransientIO, id, err)
	}
}

func (s *LocalStore) Exists(ctx context.Context, id string, moved bool, createdDate time.Time) (bool, error) {
	_, err := os.Stat(s.pathFor(id, moved, createdDate))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, classify(id, err)
}

func (s *LocalStore) ReadBytes(ctx context.Context, id string, moved bool, createdDate time.Time) ([]byte, error) {
	data, err := os.ReadFile(s.pathFor(id, moved, createdDate))
	if err != nil {
		return nil, classify(id, err)
	}
	return data, nil
}

// WriteToNewLayout writes data into the date directory through a temporary
// file renamed into place, so a crash mid-write never leaves a partial file
// at the destination path.
func (s *LocalStore) WriteToNewLayout(ctx context.Context, id string, createdDate time.Time, data []byte) (string, error) {
	targetDir := filepath.Join(s.newBasePath, DateDir(createdDate))
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return "", classify(id, err)
	}
	targetPath := filepath.Join(targetDir, id)

	tmp, err := os.CreateTemp(targetDir, id+".tmp-*")
	if err != nil {
		return "", classify(id, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", classify(id, err)
	}
	if err := tmp.Close(); err != nil {
		return "", classify(id, err)
	}

	if err := os.Rename(tmp.Name(), targetPath); err != nil {
		return "", classify(id, err)
	}
	return targetPath, nil
}

func (s *LocalStore) RemoveFromOldLayout(ctx context.Context, id string) error {
	if err := os.Remove(filepath.Join(s.basePath, id)); err != nil && !os.IsNotExist(err) {
		return classify(id, err)
	}
	return nil
}

// Hash streams the file through the named hash algorithm.
func (s *LocalStore) Hash(ctx context.Context, id string, moved bool, createdDate time.Time, algorithm string) (string, error) {
	hasher, err := newHasher(algorithm)
	if err != nil {
		return "", domain.NewMigrationError(domain.ErrKindValidation, id, err)
	}

	f, err := os.Open(s.pathFor(id, moved, createdDate))
	if err != nil {
		return "", classify(id, err)
	}
	defer f.Close()

	if _, err := io.Copy(hasher, f); err != nil {
		return "", classify(id, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func (s *LocalStore) SizeOf(ctx context.Context, id string, moved bool, createdDate time.Time) (int64, error) {
	info, err := os.Stat(s.pathFor(id, moved, createdDate))
	if err != nil {
		return 0, classify(id, err)
	}
	return info.Size(), nil
}

// AggregateStats walks both layouts and totals file counts and sizes.
func (s *LocalStore) AggregateStats(ctx context.Context) (domain.StorageStats, error) {
	var stats domain.StorageStats

	entries, err := os.ReadDir(s.basePath)
	if err != nil && !os.IsNotExist(err) {
		return stats, domain.NewMigrationError(domain.ErrKindUnreachable, "", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		stats.UnmovedCount++
		stats.UnmovedBytes += info.Size()
	}

	dateDirs, err := os.ReadDir(s.newBasePath)
	if err != nil && !os.IsNotExist(err) {
		return stats, domain.NewMigrationError(domain.ErrKindUnreachable, "", err)
	}
	for _, dir := range dateDirs {
		if !dir.IsDir() {
			continue
		}
		stats.DateDirCount++
		files, err := os.ReadDir(filepath.Join(s.newBasePath, dir.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			info, err := f.Info()
			if err != nil {
				continue
			}
			stats.MovedCount++
			stats.MovedBytes += info.Size()
		}
	}

	return stats, nil
}

// RemoveEmptyDirectories deletes date directories that hold no files.
func (s *LocalStore) RemoveEmptyDirectories(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.newBasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, domain.NewMigrationError(domain.ErrKindUnreachable, "", err)
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(s.newBasePath, entry.Name())
		children, err := os.ReadDir(dir)
		if err != nil || len(children) > 0 {
			continue
		}
		if err := os.Remove(dir); err == nil {
			removed++
		}
	}
	return removed, nil
}

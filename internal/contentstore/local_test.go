package contentstore

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnlt/filemigrator/internal/domain"
)

func setupLocalStore(t *testing.T) (*LocalStore, string, string) {
	t.Helper()
	sourceDir := filepath.Join(t.TempDir(), "flat")
	targetDir := filepath.Join(t.TempDir(), "byday")
	store := NewLocalStore(sourceDir, targetDir)
	require.NoError(t, store.EnsureLayout(context.Background()))
	return store, sourceDir, targetDir
}

func writeSource(t *testing.T, sourceDir, id, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, id), []byte(content), 0644))
}

var testDate = time.Date(2024, 6, 15, 8, 0, 0, 0, time.Local)

func TestDateDir(t *testing.T) {
	assert.Equal(t, "20240615", DateDir(testDate))
}

func TestEnsureLayoutCreatesDirectories(t *testing.T) {
	base := t.TempDir()
	store := NewLocalStore(filepath.Join(base, "a"), filepath.Join(base, "b"))
	require.NoError(t, store.EnsureLayout(context.Background()))
	assert.DirExists(t, filepath.Join(base, "a"))
	assert.DirExists(t, filepath.Join(base, "b"))
}

func TestExists(t *testing.T) {
	store, sourceDir, _ := setupLocalStore(t)
	ctx := context.Background()

	ok, err := store.Exists(ctx, "nope", false, testDate)
	require.NoError(t, err)
	assert.False(t, ok)

	writeSource(t, sourceDir, "yes", "content")
	ok, err = store.Exists(ctx, "yes", false, testDate)
	require.NoError(t, err)
	assert.True(t, ok)

	// Same ID is absent from the new layout until written there.
	ok, err = store.Exists(ctx, "yes", true, testDate)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadBytes(t *testing.T) {
	store, sourceDir, _ := setupLocalStore(t)
	ctx := context.Background()
	writeSource(t, sourceDir, "f1", "hello world")

	data, err := store.ReadBytes(ctx, "f1", false, testDate)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	_, err = store.ReadBytes(ctx, "absent", false, testDate)
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindNotFound, domain.KindOf(err))

	var me *domain.MigrationError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "absent", me.FileID)
}

func TestWriteToNewLayout(t *testing.T) {
	store, _, targetDir := setupLocalStore(t)
	ctx := context.Background()

	path, err := store.WriteToNewLayout(ctx, "f1", testDate, []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(targetDir, "20240615", "f1"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	// The rename leaves no temp files behind in the date directory.
	entries, err := os.ReadDir(filepath.Join(targetDir, "20240615"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, strings.Contains(entries[0].Name(), ".tmp-"))
}

func TestWriteToNewLayoutOverwrites(t *testing.T) {
	store, _, _ := setupLocalStore(t)
	ctx := context.Background()

	_, err := store.WriteToNewLayout(ctx, "f1", testDate, []byte("old"))
	require.NoError(t, err)
	path, err := store.WriteToNewLayout(ctx, "f1", testDate, []byte("new"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestRemoveFromOldLayout(t *testing.T) {
	store, sourceDir, _ := setupLocalStore(t)
	ctx := context.Background()
	writeSource(t, sourceDir, "gone", "x")

	require.NoError(t, store.RemoveFromOldLayout(ctx, "gone"))
	assert.NoFileExists(t, filepath.Join(sourceDir, "gone"))

	// Removing an already-absent file is not an error.
	require.NoError(t, store.RemoveFromOldLayout(ctx, "gone"))
}

func TestHash(t *testing.T) {
	store, sourceDir, _ := setupLocalStore(t)
	ctx := context.Background()
	content := "digest me"
	writeSource(t, sourceDir, "h1", content)

	md5Sum := md5.Sum([]byte(content))
	got, err := store.Hash(ctx, "h1", false, testDate, "md5")
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(md5Sum[:]), got)

	shaSum := sha256.Sum256([]byte(content))
	got, err = store.Hash(ctx, "h1", false, testDate, "sha256")
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(shaSum[:]), got)

	// Empty algorithm falls back to md5.
	got, err = store.Hash(ctx, "h1", false, testDate, "")
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(md5Sum[:]), got)

	_, err = store.Hash(ctx, "h1", false, testDate, "crc32")
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindValidation, domain.KindOf(err))

	_, err = store.Hash(ctx, "absent", false, testDate, "md5")
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindNotFound, domain.KindOf(err))
}

func TestSizeOf(t *testing.T) {
	store, sourceDir, _ := setupLocalStore(t)
	ctx := context.Background()
	writeSource(t, sourceDir, "sz", "12345")

	size, err := store.SizeOf(ctx, "sz", false, testDate)
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	_, err = store.SizeOf(ctx, "absent", false, testDate)
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindNotFound, domain.KindOf(err))
}

func TestAggregateStats(t *testing.T) {
	store, sourceDir, _ := setupLocalStore(t)
	ctx := context.Background()

	writeSource(t, sourceDir, "u1", "ab")
	writeSource(t, sourceDir, "u2", "cdef")

	_, err := store.WriteToNewLayout(ctx, "m1", testDate, []byte("xyz"))
	require.NoError(t, err)
	_, err = store.WriteToNewLayout(ctx, "m2", testDate.AddDate(0, 0, 1), []byte("12345"))
	require.NoError(t, err)

	stats, err := store.AggregateStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.UnmovedCount)
	assert.Equal(t, int64(6), stats.UnmovedBytes)
	assert.Equal(t, int64(2), stats.MovedCount)
	assert.Equal(t, int64(8), stats.MovedBytes)
	assert.Equal(t, 2, stats.DateDirCount)
}

func TestRemoveEmptyDirectories(t *testing.T) {
	store, _, targetDir := setupLocalStore(t)
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(filepath.Join(targetDir, "20240101"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(targetDir, "20240102"), 0755))
	_, err := store.WriteToNewLayout(ctx, "keeper", testDate, []byte("x"))
	require.NoError(t, err)

	removed, err := store.RemoveEmptyDirectories(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.NoDirExists(t, filepath.Join(targetDir, "20240101"))
	assert.DirExists(t, filepath.Join(targetDir, "20240615"))

	// Nothing left to remove on a second pass.
	removed, err = store.RemoveEmptyDirectories(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

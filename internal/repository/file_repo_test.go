package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mnlt/filemigrator/internal/config"
	"github.com/mnlt/filemigrator/internal/domain"
)

func setupTestRepo(t *testing.T) *FileRepository {
	t.Helper()
	cfg := &config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		AutoMigrate:  true,
	}
	db, err := InitDB(cfg)
	require.NoError(t, err)
	return NewFileRepository(db)
}

func mustInsert(t *testing.T, repo *FileRepository, id string, created time.Time, moved bool) {
	t.Helper()
	rec := &domain.FileRecord{
		ID:          id,
		CreatedDate: created,
		DisplayName: id + ".bin",
		Moved:       moved,
	}
	if moved {
		now := time.Now()
		rec.MovedAt = &now
	}
	require.NoError(t, repo.Insert(context.Background(), rec))
}

func testDay(d int) time.Time {
	return time.Date(2024, 3, d, 12, 0, 0, 0, time.UTC)
}

func TestTestConnection(t *testing.T) {
	repo := setupTestRepo(t)
	require.NoError(t, repo.TestConnection(context.Background()))
}

func TestInsertAndGetByID(t *testing.T) {
	repo := setupTestRepo(t)
	mustInsert(t, repo, "abc", testDay(1), false)

	rec, err := repo.GetByID(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", rec.ID)
	assert.Equal(t, "abc.bin", rec.DisplayName)
	assert.False(t, rec.Moved)
	assert.Nil(t, rec.MovedAt)

	_, err = repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestFetchUnmovedOrderingAndLimit(t *testing.T) {
	repo := setupTestRepo(t)

	// Insert newest first; ties on the same day must come back ID-ascending.
	mustInsert(t, repo, "z-day2", testDay(2), false)
	mustInsert(t, repo, "b-day1", testDay(1), false)
	mustInsert(t, repo, "a-day1", testDay(1), false)
	mustInsert(t, repo, "done", testDay(1), true)

	recs, err := repo.FetchUnmoved(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "a-day1", recs[0].ID)
	assert.Equal(t, "b-day1", recs[1].ID)
	assert.Equal(t, "z-day2", recs[2].ID)

	recs, err = repo.FetchUnmoved(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a-day1", recs[0].ID)
	assert.Equal(t, "b-day1", recs[1].ID)
}

func TestFetchUnmovedInRangeInclusive(t *testing.T) {
	repo := setupTestRepo(t)
	mustInsert(t, repo, "before", testDay(4), false)
	mustInsert(t, repo, "lo", testDay(5), false)
	mustInsert(t, repo, "mid", testDay(6), false)
	mustInsert(t, repo, "hi", testDay(7), false)
	mustInsert(t, repo, "after", testDay(8), false)
	mustInsert(t, repo, "moved-in-range", testDay(6), true)

	recs, err := repo.FetchUnmovedInRange(context.Background(), testDay(5), testDay(7), 10)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "lo", recs[0].ID)
	assert.Equal(t, "mid", recs[1].ID)
	assert.Equal(t, "hi", recs[2].ID)
}

func TestMarkMoved(t *testing.T) {
	repo := setupTestRepo(t)
	mustInsert(t, repo, "flip", testDay(1), false)

	movedAt := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkMoved(context.Background(), "flip", movedAt))

	rec, err := repo.GetByID(context.Background(), "flip")
	require.NoError(t, err)
	assert.True(t, rec.Moved)
	require.NotNil(t, rec.MovedAt)

	// A second flip is redundant, not an error, and leaves the timestamp alone.
	later := movedAt.Add(time.Hour)
	require.NoError(t, repo.MarkMoved(context.Background(), "flip", later))
	rec, err = repo.GetByID(context.Background(), "flip")
	require.NoError(t, err)
	assert.True(t, rec.Moved)
	assert.True(t, rec.MovedAt.Equal(movedAt), "moved_at must not change on a redundant flip")
}

func TestMarkMovedMissingRecord(t *testing.T) {
	repo := setupTestRepo(t)
	err := repo.MarkMoved(context.Background(), "nope", time.Now())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListByState(t *testing.T) {
	repo := setupTestRepo(t)
	for i := 1; i <= 5; i++ {
		mustInsert(t, repo, fmt.Sprintf("u%d", i), testDay(i), false)
	}
	for i := 1; i <= 3; i++ {
		mustInsert(t, repo, fmt.Sprintf("m%d", i), testDay(i), true)
	}

	unmoved, err := repo.ListByState(context.Background(), false, 3, 0)
	require.NoError(t, err)
	require.Len(t, unmoved, 3)
	assert.Equal(t, "u1", unmoved[0].ID)

	page2, err := repo.ListByState(context.Background(), false, 3, 3)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, "u4", page2[0].ID)

	moved, err := repo.ListByState(context.Background(), true, 10, 0)
	require.NoError(t, err)
	assert.Len(t, moved, 3)
}

func TestCountMoved(t *testing.T) {
	repo := setupTestRepo(t)
	mustInsert(t, repo, "a", testDay(1), true)
	mustInsert(t, repo, "b", testDay(2), true)
	mustInsert(t, repo, "c", testDay(3), false)

	count, err := repo.CountMoved(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestFetchMovedSample(t *testing.T) {
	repo := setupTestRepo(t)
	for i := 1; i <= 4; i++ {
		mustInsert(t, repo, fmt.Sprintf("m%d", i), testDay(i), true)
	}
	mustInsert(t, repo, "u1", testDay(1), false)

	// Asking for more than exist returns all moved records.
	recs, err := repo.FetchMovedSample(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, recs, 4)
	for _, r := range recs {
		assert.True(t, r.Moved)
	}

	recs, err = repo.FetchMovedSample(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestAggregateStats(t *testing.T) {
	repo := setupTestRepo(t)

	// Empty table: zero counts, nil time bounds.
	stats, err := repo.AggregateStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.Moved)
	assert.Zero(t, stats.Unmoved)
	assert.Nil(t, stats.EarliestCreated)
	assert.Nil(t, stats.LatestCreated)
	assert.Nil(t, stats.FirstMovedAt)
	assert.Nil(t, stats.LastMovedAt)

	mustInsert(t, repo, "a", testDay(1), false)
	mustInsert(t, repo, "b", testDay(5), false)
	mustInsert(t, repo, "c", testDay(9), false)

	firstMove := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	lastMove := time.Date(2024, 3, 12, 8, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkMoved(context.Background(), "b", firstMove))
	require.NoError(t, repo.MarkMoved(context.Background(), "c", lastMove))

	stats, err = repo.AggregateStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.Moved)
	assert.Equal(t, int64(1), stats.Unmoved)
	require.NotNil(t, stats.EarliestCreated)
	require.NotNil(t, stats.LatestCreated)
	assert.True(t, stats.EarliestCreated.Equal(testDay(1)))
	assert.True(t, stats.LatestCreated.Equal(testDay(9)))
	require.NotNil(t, stats.FirstMovedAt)
	require.NotNil(t, stats.LastMovedAt)
	assert.True(t, stats.FirstMovedAt.Equal(firstMove))
	assert.True(t, stats.LastMovedAt.Equal(lastMove))
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mnlt/filemigrator/internal/domain"
	"gorm.io/gorm"
)

// FileRepository is the Record Store: it owns every query against the
// file_records table consumed by the migration orchestrator.
type FileRepository struct {
	db *gorm.DB
}

// NewFileRepository creates a new FileRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *FileRepository: repository instance bound to db.
func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

// TestConnection verifies the database is reachable through the pool.
func (r *FileRepository) TestConnection(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB instance: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Insert persists a new file record.
func (r *FileRepository) Insert(ctx context.Context, rec *domain.FileRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// GetByID retrieves a file record by its ID.
func (r *FileRepository) GetByID(ctx context.Context, id string) (*domain.FileRecord, error) {
	var rec domain.FileRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// FetchUnmoved returns at most limit unmoved records ordered by creation
// date ascending, ties broken by ID ascending. The ordering is what makes
// repeated runs deterministic.
func (r *FileRepository) FetchUnmoved(ctx context.Context, limit int) ([]domain.FileRecord, error) {
	var recs []domain.FileRecord
	if err := r.db.WithContext(ctx).
		Where("moved = ?", false).
		Order("created_date ASC").
		Order("id ASC").
		Limit(limit).
		Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// FetchUnmovedInRange returns at most limit unmoved records whose creation
// date is between start and end inclusive, same ordering as FetchUnmoved.
func (r *FileRepository) FetchUnmovedInRange(ctx context.Context, start, end time.Time, limit int) ([]domain.FileRecord, error) {
	var recs []domain.FileRecord
	if err := r.db.WithContext(ctx).
		Where("moved = ? AND created_date >= ? AND created_date <= ?", false, start, end).
		Order("created_date ASC").
		Order("id ASC").
		Limit(limit).
		Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// ListByState returns records filtered by moved state with pagination,
// ordered like FetchUnmoved.
func (r *FileRepository) ListByState(ctx context.Context, moved bool, limit, offset int) ([]domain.FileRecord, error) {
	var recs []domain.FileRecord
	if err := r.db.WithContext(ctx).
		Where("moved = ?", moved).
		Order("created_date ASC").
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// MarkMoved flips a record's moved flag and stamps moved_at. The update is
// guarded by moved = false so the flip stays monotonic even if two
// processes race on the same record.
func (r *FileRepository) MarkMoved(ctx context.Context, id string, movedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&domain.FileRecord{}).
		Where("id = ? AND moved = ?", id, false).
		Updates(map[string]interface{}{
			"moved":    true,
			"moved_at": movedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Either the record does not exist, or another process already
		// flipped it. Distinguish the two for the caller.
		var count int64
		if err := r.db.WithContext(ctx).Model(&domain.FileRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		// Already moved; the flip is redundant, not a failure.
	}
	return nil
}

// CountMoved returns the number of moved records.
func (r *FileRepository) CountMoved(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.FileRecord{}).Where("moved = ?", true).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FetchMovedSample returns up to limit moved records drawn uniformly at
// random, or all of them when fewer exist.
func (r *FileRepository) FetchMovedSample(ctx context.Context, limit int) ([]domain.FileRecord, error) {
	orderExpr := "RANDOM()"
	if r.db.Dialector.Name() == "mysql" {
		orderExpr = "RAND()"
	}
	var recs []domain.FileRecord
	if err := r.db.WithContext(ctx).
		Where("moved = ?", true).
		Order(orderExpr).
		Limit(limit).
		Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// aggregateRow is the scan target for the count aggregate.
type aggregateRow struct {
	Total   int64
	Moved   int64
	Unmoved int64
}

// timeBound returns the extreme value of a time column in the given sort
// direction, or nil when no row has one. The bound is read as a typed
// column rather than a MIN/MAX aggregate: aggregate results lose the
// column's declared type on sqlite and come back as text, which cannot be
// scanned into time.Time.
func (r *FileRepository) timeBound(ctx context.Context, column, direction string) (*time.Time, error) {
	var vals []time.Time
	err := r.db.WithContext(ctx).
		Model(&domain.FileRecord{}).
		Where(column + " IS NOT NULL").
		Order(column + " " + direction).
		Limit(1).
		Pluck(column, &vals).Error
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return &vals[0], nil
}

// AggregateStats returns the Record Store aggregates for a status snapshot:
// one count query plus typed lookups for the time bounds.
func (r *FileRepository) AggregateStats(ctx context.Context) (domain.RecordStats, error) {
	var row aggregateRow
	err := r.db.WithContext(ctx).
		Model(&domain.FileRecord{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN moved THEN 1 ELSE 0 END), 0) AS moved,
			COALESCE(SUM(CASE WHEN moved THEN 0 ELSE 1 END), 0) AS unmoved`).
		Scan(&row).Error
	if err != nil {
		return domain.RecordStats{}, err
	}

	stats := domain.RecordStats{
		Total:   row.Total,
		Moved:   row.Moved,
		Unmoved: row.Unmoved,
	}

	bounds := []struct {
		dest      **time.Time
		column    string
		direction string
	}{
		{&stats.EarliestCreated, "created_date", "ASC"},
		{&stats.LatestCreated, "created_date", "DESC"},
		{&stats.FirstMovedAt, "moved_at", "ASC"},
		{&stats.LastMovedAt, "moved_at", "DESC"},
	}
	for _, b := range bounds {
		v, err := r.timeBound(ctx, b.column, b.direction)
		if err != nil {
			return domain.RecordStats{}, err
		}
		*b.dest = v
	}

	return stats, nil
}

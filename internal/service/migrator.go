package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mnlt/filemigrator/internal/contentstore"
	"github.com/mnlt/filemigrator/internal/domain"
	"github.com/mnlt/filemigrator/internal/events"
	"github.com/mnlt/filemigrator/internal/logger"
)

// RecordStore is the narrow Record Store contract the orchestrator consumes.
// *repository.FileRepository satisfies it.
type RecordStore interface {
	TestConnection(ctx context.Context) error
	FetchUnmoved(ctx context.Context, limit int) ([]domain.FileRecord, error)
	FetchUnmovedInRange(ctx context.Context, start, end time.Time, limit int) ([]domain.FileRecord, error)
	MarkMoved(ctx context.Context, id string, movedAt time.Time) error
	CountMoved(ctx context.Context) (int64, error)
	FetchMovedSample(ctx context.Context, limit int) ([]domain.FileRecord, error)
	AggregateStats(ctx context.Context) (domain.RecordStats, error)
}

// Config holds orchestration tuning for the migrator.
type Config struct {
	BatchSize     int
	MaxRetries    int
	RetryDelay    time.Duration
	HashAlgorithm string
}

// Migrator owns the move state machine: which files move, in what order,
// how work is batched, how partial failure is recovered, and how a move is
// verified before the record's flag is flipped. A single Migrator run is
// strictly sequential; ordering guarantees depend on that.
type Migrator struct {
	repo   RecordStore
	store  contentstore.ContentStore
	sink   events.Sink
	logger *logger.Logger
	cfg    Config

	initialized bool
}

// NewMigrator creates a migration orchestrator over the given stores.
func NewMigrator(repo RecordStore, store contentstore.ContentStore, sink events.Sink, log *logger.Logger, cfg Config) *Migrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.HashAlgorithm == "" {
		cfg.HashAlgorithm = contentstore.DefaultHashAlgorithm
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &Migrator{
		repo:   repo,
		store:  store,
		sink:   sink,
		logger: log,
		cfg:    cfg,
	}
}

// log returns the logger attached to ctx if one is, otherwise the
// migrator's own.
func (m *Migrator) log(ctx context.Context) *logger.Logger {
	if l, ok := logger.LookupContext(ctx); ok {
		return l
	}
	return m.logger
}

// Initialize verifies the Record Store is reachable and the Content Store
// layout is accessible. It mutates nothing and must succeed before any
// migration operation.
func (m *Migrator) Initialize(ctx context.Context) error {
	if err := m.repo.TestConnection(ctx); err != nil {
		return domain.NewMigrationError(domain.ErrKindUnreachable, "",
			fmt.Errorf("record store unreachable: %w", err))
	}
	if err := m.store.EnsureLayout(ctx); err != nil {
		return fmt.Errorf("content store layout check failed: %w", err)
	}
	m.initialized = true
	m.log(ctx).Info("Migrator initialized")
	return nil
}

func (m *Migrator) ensureInitialized() error {
	if !m.initialized {
		return domain.NewMigrationError(domain.ErrKindValidation, "",
			fmt.Errorf("migrator is not initialized; call Initialize first"))
	}
	return nil
}

// MigrateBatch fetches at most batchSize unmoved records, ordered by
// creation date then ID, and runs the per-file move protocol on each. A
// single file's failure never aborts the batch; only store unreachability
// does. When no unmoved records remain it returns (0, 0, 0) without error,
// so it is safe to poll repeatedly.
func (m *Migrator) MigrateBatch(ctx context.Context, batchSize int) (processed, succeeded, failed int, err error) {
	if err := m.ensureInitialized(); err != nil {
		return 0, 0, 0, err
	}
	if batchSize <= 0 {
		return 0, 0, 0, domain.NewMigrationError(domain.ErrKindValidation, "",
			fmt.Errorf("batch size must be positive, got %d", batchSize))
	}

	stats := m.newStats()
	ctx = logger.SetRunID(m.log(ctx).WithContext(ctx), stats.RunID)
	fetch := func(ctx context.Context, limit int) ([]domain.FileRecord, error) {
		return m.repo.FetchUnmoved(ctx, limit)
	}
	processed, succeeded, failed, err = m.runBatch(ctx, stats, fetch, batchSize)
	return processed, succeeded, failed, err
}

// MigrateAll repeatedly migrates batches of the configured size until a
// batch processes nothing, or until maxFiles records have been processed
// (maxFiles <= 0 means unlimited). A fatal error from any batch stops the
// run immediately and is returned alongside the partial statistics. The
// run can be interrupted between batches via ctx.
func (m *Migrator) MigrateAll(ctx context.Context, maxFiles int) (*domain.MigrationStats, error) {
	if err := m.ensureInitialized(); err != nil {
		return nil, err
	}
	fetch := func(ctx context.Context, limit int) ([]domain.FileRecord, error) {
		return m.repo.FetchUnmoved(ctx, limit)
	}
	return m.runLoop(ctx, fetch, maxFiles)
}

// MigrateByDateRange behaves like MigrateAll scoped to unmoved records
// whose creation date lies between start and end inclusive. A start after
// end is rejected before any work is done.
func (m *Migrator) MigrateByDateRange(ctx context.Context, start, end time.Time) (*domain.MigrationStats, error) {
	if err := m.ensureInitialized(); err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, domain.NewMigrationError(domain.ErrKindValidation, "",
			fmt.Errorf("start date %s is after end date %s", start.Format("2006-01-02"), end.Format("2006-01-02")))
	}
	fetch := func(ctx context.Context, limit int) ([]domain.FileRecord, error) {
		return m.repo.FetchUnmovedInRange(ctx, start, end, limit)
	}
	return m.runLoop(ctx, fetch, 0)
}

func (m *Migrator) newStats() *domain.MigrationStats {
	return &domain.MigrationStats{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}
}

type fetchFunc func(ctx context.Context, limit int) ([]domain.FileRecord, error)

// runLoop drives batch after batch until the fetch drains, the maxFiles cap
// is reached, the context is cancelled, or a fatal error occurs.
func (m *Migrator) runLoop(ctx context.Context, fetch fetchFunc, maxFiles int) (*domain.MigrationStats, error) {
	stats := m.newStats()
	ctx = logger.SetRunID(m.log(ctx).WithContext(ctx), stats.RunID)

	m.sink.Publish(ctx, events.Event{
		Type:  events.TypeRunStarted,
		RunID: stats.RunID,
		Fields: map[string]interface{}{
			"batch_size": m.cfg.BatchSize,
			"max_files":  maxFiles,
		},
		Message: "migration run started",
		At:      stats.StartedAt,
	})

	var runErr error
	for {
		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}

		batchSize := m.cfg.BatchSize
		if maxFiles > 0 {
			remaining := maxFiles - stats.Processed
			if remaining <= 0 {
				break
			}
			if batchSize > remaining {
				batchSize = remaining
			}
		}

		processed, _, _, err := m.runBatch(ctx, stats, fetch, batchSize)
		if err != nil {
			runErr = err
			break
		}
		if processed == 0 {
			break
		}

		m.sink.Publish(ctx, events.Event{
			Type:  events.TypeProgress,
			RunID: stats.RunID,
			Fields: map[string]interface{}{
				"processed": stats.Processed,
				"succeeded": stats.Succeeded,
				"failed":    stats.Failed,
			},
			Message: "migration progress",
			At:      time.Now(),
		})
	}

	stats.EndedAt = time.Now()

	m.sink.Publish(ctx, events.Event{
		Type:  events.TypeRunCompleted,
		RunID: stats.RunID,
		Fields: map[string]interface{}{
			"processed":   stats.Processed,
			"succeeded":   stats.Succeeded,
			"failed":      stats.Failed,
			"duration_ms": stats.Duration().Milliseconds(),
		},
		Message: "migration run completed",
		At:      stats.EndedAt,
	})

	if runErr != nil {
		return stats, runErr
	}
	return stats, nil
}

// runBatch fetches one batch and migrates it sequentially. Per-file
// failures are recorded into stats and reported per file; a fatal error
// aborts the batch and is returned.
func (m *Migrator) runBatch(ctx context.Context, stats *domain.MigrationStats, fetch fetchFunc, batchSize int) (processed, succeeded, failed int, err error) {
	stats.BatchCount++
	batchNo := stats.BatchCount

	records, err := fetch(ctx, batchSize)
	if err != nil {
		return 0, 0, 0, domain.NewMigrationError(domain.ErrKindUnreachable, "",
			fmt.Errorf("failed to fetch unmoved records: %w", err))
	}
	if len(records) == 0 {
		return 0, 0, 0, nil
	}

	m.sink.Publish(ctx, events.Event{
		Type:  events.TypeBatchStarted,
		RunID: stats.RunID,
		Fields: map[string]interface{}{
			logger.FieldBatch: batchNo,
			"size":            len(records),
		},
		Message: "batch started",
		At:      time.Now(),
	})

	for i := range records {
		rec := &records[i]
		moveErr := m.moveWithRetry(ctx, rec)
		processed++

		if moveErr == nil {
			succeeded++
			m.sink.Publish(ctx, events.Event{
				Type:    events.TypeFileMoved,
				RunID:   stats.RunID,
				FileID:  rec.ID,
				Fields:  map[string]interface{}{"date_dir": rec.DateDir()},
				Message: "file moved",
				At:      time.Now(),
			})
			continue
		}

		kind := domain.KindOf(moveErr)
		if domain.IsFatal(kind) {
			// Store-level failure: abort the batch, surface to the caller.
			stats.Processed += processed
			stats.Succeeded += succeeded
			stats.Failed += failed
			return processed, succeeded, failed, moveErr
		}

		failed++
		stats.AddError(rec.ID, kind, moveErr)
		m.log(ctx).WithError(moveErr).WithFields(logger.Fields{
			logger.FieldFileID: rec.ID,
			"kind":             string(kind),
		}).Warn("Failed to migrate file")
		m.sink.Publish(ctx, events.Event{
			Type:    events.TypeFileError,
			RunID:   stats.RunID,
			FileID:  rec.ID,
			Fields:  map[string]interface{}{"kind": string(kind)},
			Message: moveErr.Error(),
			At:      time.Now(),
		})
	}

	stats.Processed += processed
	stats.Succeeded += succeeded
	stats.Failed += failed

	m.sink.Publish(ctx, events.Event{
		Type:  events.TypeBatchCompleted,
		RunID: stats.RunID,
		Fields: map[string]interface{}{
			logger.FieldBatch: batchNo,
			"processed":       processed,
			"succeeded":       succeeded,
			"failed":          failed,
		},
		Message: "batch completed",
		At:      time.Now(),
	})

	return processed, succeeded, failed, nil
}

// moveWithRetry runs the per-file move protocol, retrying transient
// failures up to the configured attempt cap with a fixed delay. The last
// error is returned once retries are exhausted.
func (m *Migrator) moveWithRetry(ctx context.Context, rec *domain.FileRecord) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = m.moveOne(ctx, rec)
		if lastErr == nil {
			return nil
		}
		kind := domain.KindOf(lastErr)
		if !domain.IsRetryable(kind) || attempt >= m.cfg.MaxRetries {
			return lastErr
		}
		m.log(ctx).WithFields(logger.Fields{
			logger.FieldFileID: rec.ID,
			"attempt":          attempt + 1,
		}).Debug("Retrying file migration after transient error")

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(m.cfg.RetryDelay):
		}
	}
}

// moveOne executes the move protocol for a single record:
// confirm source, write to the date-partitioned layout, verify the written
// content hash against the source hash, remove the source, then flip the
// record's flag. The flag flip is the atomic commit point: the source is
// only removed after the new copy is verified, so a failure at any step
// loses no data.
func (m *Migrator) moveOne(ctx context.Context, rec *domain.FileRecord) error {
	srcExists, err := m.store.Exists(ctx, rec.ID, false, rec.CreatedDate)
	if err != nil {
		return err
	}
	dstExists, err := m.store.Exists(ctx, rec.ID, true, rec.CreatedDate)
	if err != nil {
		return err
	}

	if !srcExists {
		if dstExists {
			// A previous run relocated the content but failed to flip the
			// flag. Finish the reconciliation by flipping it now.
			return m.markMoved(ctx, rec)
		}
		return domain.NewMigrationError(domain.ErrKindNotFound, rec.ID,
			fmt.Errorf("source file missing from old layout"))
	}

	srcHash, err := m.store.Hash(ctx, rec.ID, false, rec.CreatedDate, m.cfg.HashAlgorithm)
	if err != nil {
		return err
	}

	if dstExists {
		dstHash, err := m.store.Hash(ctx, rec.ID, true, rec.CreatedDate, m.cfg.HashAlgorithm)
		if err != nil {
			return err
		}
		if dstHash == srcHash {
			// Destination already holds the verified content; drop the
			// source and flip the flag.
			if err := m.store.RemoveFromOldLayout(ctx, rec.ID); err != nil {
				return err
			}
			return m.markMoved(ctx, rec)
		}
		// Mismatched leftover from an interrupted write; the protocol
		// below overwrites it.
	}

	data, err := m.store.ReadBytes(ctx, rec.ID, false, rec.CreatedDate)
	if err != nil {
		return err
	}

	newPath, err := m.store.WriteToNewLayout(ctx, rec.ID, rec.CreatedDate, data)
	if err != nil {
		return err
	}

	dstHash, err := m.store.Hash(ctx, rec.ID, true, rec.CreatedDate, m.cfg.HashAlgorithm)
	if err != nil {
		return err
	}
	if dstHash != srcHash {
		// Both copies stay on disk; the record keeps moved=false.
		return domain.NewMigrationError(domain.ErrKindIntegrityFailure, rec.ID,
			fmt.Errorf("hash mismatch after write: source %s, destination %s", srcHash, dstHash))
	}

	if err := m.store.RemoveFromOldLayout(ctx, rec.ID); err != nil {
		return err
	}

	m.log(ctx).WithFields(logger.Fields{
		logger.FieldFileID: rec.ID,
		"new_path":         newPath,
	}).Debug("File content relocated")

	return m.markMoved(ctx, rec)
}

// markMoved flips the record's flag, classifying a failure distinctly so an
// operator can reconcile content that moved without its flag.
func (m *Migrator) markMoved(ctx context.Context, rec *domain.FileRecord) error {
	if err := m.repo.MarkMoved(ctx, rec.ID, time.Now()); err != nil {
		return domain.NewMigrationError(domain.ErrKindRecordUpdateFailure, rec.ID,
			fmt.Errorf("content relocated but flag update failed: %w", err))
	}
	return nil
}

// VerifyMigration checks up to sampleSize moved records: the file must
// exist at its date-partitioned path, be readable, be non-empty, and hash
// identically across two reads. It is a post-hoc self-consistency check;
// the pre-move content is gone once migration completes, so no round-trip
// comparison is possible.
func (m *Migrator) VerifyMigration(ctx context.Context, sampleSize int) (*domain.VerificationReport, error) {
	if err := m.ensureInitialized(); err != nil {
		return nil, err
	}
	if sampleSize <= 0 {
		return nil, domain.NewMigrationError(domain.ErrKindValidation, "",
			fmt.Errorf("sample size must be positive, got %d", sampleSize))
	}

	totalMoved, err := m.repo.CountMoved(ctx)
	if err != nil {
		return nil, domain.NewMigrationError(domain.ErrKindUnreachable, "",
			fmt.Errorf("failed to count moved records: %w", err))
	}

	records, err := m.repo.FetchMovedSample(ctx, sampleSize)
	if err != nil {
		return nil, domain.NewMigrationError(domain.ErrKindUnreachable, "",
			fmt.Errorf("failed to fetch moved records: %w", err))
	}

	report := &domain.VerificationReport{TotalMoved: totalMoved, TotalChecked: len(records)}
	for i := range records {
		rec := &records[i]
		if detail := m.verifyOne(ctx, rec); detail != "" {
			report.Failed++
			report.Details = append(report.Details, detail)
			continue
		}
		report.Verified++
	}

	m.log(ctx).WithFields(logger.Fields{
		"checked":  report.TotalChecked,
		"verified": report.Verified,
		"failed":   report.Failed,
	}).Info("Verification pass completed")

	return report, nil
}

// verifyOne returns an empty string when the record's file is consistent,
// or a human-readable failure description.
func (m *Migrator) verifyOne(ctx context.Context, rec *domain.FileRecord) string {
	exists, err := m.store.Exists(ctx, rec.ID, true, rec.CreatedDate)
	if err != nil {
		return fmt.Sprintf("file %s: existence check failed: %v", rec.ID, err)
	}
	if !exists {
		return fmt.Sprintf("file %s: missing from new layout (%s)", rec.ID, rec.DateDir())
	}

	size, err := m.store.SizeOf(ctx, rec.ID, true, rec.CreatedDate)
	if err != nil {
		return fmt.Sprintf("file %s: size check failed: %v", rec.ID, err)
	}
	if size == 0 {
		return fmt.Sprintf("file %s: zero size", rec.ID)
	}

	// Hash twice: a truncated or corrupted write that races a reader shows
	// up as an unstable digest.
	first, err := m.store.Hash(ctx, rec.ID, true, rec.CreatedDate, m.cfg.HashAlgorithm)
	if err != nil {
		return fmt.Sprintf("file %s: unreadable: %v", rec.ID, err)
	}
	second, err := m.store.Hash(ctx, rec.ID, true, rec.CreatedDate, m.cfg.HashAlgorithm)
	if err != nil {
		return fmt.Sprintf("file %s: unreadable on re-read: %v", rec.ID, err)
	}
	if first != second {
		return fmt.Sprintf("file %s: hash unstable across reads", rec.ID)
	}
	return ""
}

// GetMigrationStatus combines Record Store and Content Store aggregates
// into a read-only snapshot. It has no side effects.
func (m *Migrator) GetMigrationStatus(ctx context.Context) (*domain.MigrationStatus, error) {
	recordStats, err := m.repo.AggregateStats(ctx)
	if err != nil {
		return nil, domain.NewMigrationError(domain.ErrKindUnreachable, "",
			fmt.Errorf("failed to aggregate record stats: %w", err))
	}
	storageStats, err := m.store.AggregateStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate storage stats: %w", err)
	}
	return &domain.MigrationStatus{
		Records:    recordStats,
		Storage:    storageStats,
		CapturedAt: time.Now(),
	}, nil
}

// Cleanup removes now-empty date directories from the new layout and
// returns how many were removed. It never touches the Record Store.
func (m *Migrator) Cleanup(ctx context.Context) (int, error) {
	removed, err := m.store.RemoveEmptyDirectories(ctx)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		m.log(ctx).WithField(logger.FieldCount, removed).Info("Removed empty date directories")
	}
	return removed, nil
}

package domain

import (
	"time"
)

// FileError is one recorded per-file failure within a run.
type FileError struct {
	FileID  string    `json:"file_id"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// MigrationStats accumulates the outcome of one orchestrator run. It is
// created fresh at run start, sealed when the run ends, and never persisted.
type MigrationStats struct {
	RunID      string      `json:"run_id"`
	Processed  int         `json:"processed"`
	Succeeded  int         `json:"succeeded"`
	Failed     int         `json:"failed"`
	BatchCount int         `json:"batch_count"`
	Errors     []FileError `json:"errors,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	EndedAt    time.Time   `json:"ended_at"`
}

// AddError appends a per-file failure in processing order.
func (s *MigrationStats) AddError(fileID string, kind ErrorKind, err error) {
	s.Errors = append(s.Errors, FileError{
		FileID:  fileID,
		Kind:    kind,
		Message: err.Error(),
		At:      time.Now(),
	})
}

// Duration returns the wall-clock length of the run, zero if not ended.
func (s *MigrationStats) Duration() time.Duration {
	if s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// SuccessRate returns succeeded/processed as a percentage.
func (s *MigrationStats) SuccessRate() float64 {
	if s.Processed == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Processed) * 100
}

// RecordStats are the Record Store aggregates for a status snapshot.
type RecordStats struct {
	Total           int64      `json:"total"`
	Moved           int64      `json:"moved"`
	Unmoved         int64      `json:"unmoved"`
	EarliestCreated *time.Time `json:"earliest_created,omitempty"`
	LatestCreated   *time.Time `json:"latest_created,omitempty"`
	FirstMovedAt    *time.Time `json:"first_moved_at,omitempty"`
	LastMovedAt     *time.Time `json:"last_moved_at,omitempty"`
}

// StorageStats are the Content Store aggregates for a status snapshot.
type StorageStats struct {
	UnmovedCount int64 `json:"unmoved_count"`
	UnmovedBytes int64 `json:"unmoved_bytes"`
	MovedCount   int64 `json:"moved_count"`
	MovedBytes   int64 `json:"moved_bytes"`
	DateDirCount int   `json:"date_dir_count"`
}

// MigrationStatus is an on-demand read-only snapshot combining both stores.
type MigrationStatus struct {
	Records    RecordStats  `json:"records"`
	Storage    StorageStats `json:"storage"`
	CapturedAt time.Time    `json:"captured_at"`
}

// VerificationReport is the result of a post-hoc verification pass over a
// sample of moved records. TotalMoved is the size of the moved population
// the sample was drawn from.
type VerificationReport struct {
	TotalMoved   int64    `json:"total_moved"`
	TotalChecked int      `json:"total_checked"`
	Verified     int      `json:"verified"`
	Failed       int      `json:"failed"`
	Details      []string `json:"details,omitempty"`
}

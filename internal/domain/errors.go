package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies migration failures. Per-file kinds are recorded in
// the run statistics and never abort a batch; fatal kinds abort the run
// and are surfaced to the caller.
type ErrorKind string

const (
	// ErrKindUnreachable means a store itself is unavailable. Fatal.
	ErrKindUnreachable ErrorKind = "unreachable"
	// ErrKindNotFound means the source file is missing from the old layout.
	ErrKindNotFound ErrorKind = "not_found"
	// ErrKindPermissionDenied is a retryable filesystem permission error.
	ErrKindPermissionDenied ErrorKind = "permission_denied"
	// ErrKindTransientIO is a retryable temporary I/O error.
	ErrKindTransientIO ErrorKind = "transient_io"
	// ErrKindIntegrityFailure means the post-write hash did not match the
	// source hash. The source file is preserved and the flag stays unset.
	ErrKindIntegrityFailure ErrorKind = "integrity_failure"
	// ErrKindRecordUpdateFailure means the content was relocated but the
	// moved flag could not be flipped. Flagged distinctly so an operator
	// can reconcile; the next run treats a matching destination as done.
	ErrKindRecordUpdateFailure ErrorKind = "record_update_failure"
	// ErrKindValidation means bad input rejected before any work.
	ErrKindValidation ErrorKind = "validation"
)

// MigrationError carries the failure kind alongside the underlying error
// and, for per-file failures, the file it belongs to.
type MigrationError struct {
	Kind   ErrorKind
	FileID string
	Err    error
}

func (e *MigrationError) Error() string {
	if e.FileID != "" {
		return fmt.Sprintf("%s: file %s: %v", e.Kind, e.FileID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// NewMigrationError wraps err with a kind and optional file ID.
func NewMigrationError(kind ErrorKind, fileID string, err error) *MigrationError {
	return &MigrationError{Kind: kind, FileID: fileID, Err: err}
}

// KindOf extracts the ErrorKind from err, defaulting to transient I/O for
// unclassified errors so they still go through the retry policy.
func KindOf(err error) ErrorKind {
	var me *MigrationError
	if errors.As(err, &me) {
		return me.Kind
	}
	return ErrKindTransientIO
}

// IsFatal reports whether the kind aborts the whole run rather than being
// recorded as a per-file outcome.
func IsFatal(kind ErrorKind) bool {
	return kind == ErrKindUnreachable || kind == ErrKindValidation
}

// IsRetryable reports whether a per-file failure of this kind should be
// retried before being recorded.
func IsRetryable(kind ErrorKind) bool {
	return kind == ErrKindPermissionDenied || kind == ErrKindTransientIO
}

package events

import (
	"context"
	"time"
)

// Type identifies the kind of progress event.
type Type string

const (
	TypeRunStarted     Type = "run.started"
	TypeRunCompleted   Type = "run.completed"
	TypeBatchStarted   Type = "batch.started"
	TypeBatchCompleted Type = "batch.completed"
	TypeFileMoved      Type = "file.moved"
	TypeFileError      Type = "file.error"
	TypeProgress       Type = "progress"
)

// Event is one structured progress/error/summary notification emitted by
// the orchestrator. Sinks are purely observational: nothing they return is
// consulted by the migration logic.
type Event struct {
	Type    Type                   `json:"type"`
	RunID   string                 `json:"run_id,omitempty"`
	FileID  string                 `json:"file_id,omitempty"`
	Message string                 `json:"message,omitempty"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
	At      time.Time              `json:"at"`
}

// Sink receives orchestrator events. Publish must never block migration
// progress on sink failures.
type Sink interface {
	Publish(ctx context.Context, ev Event)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Publish(ctx context.Context, ev Event) {}

// MultiSink fans an event out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, ev Event) {
	for _, s := range m {
		s.Publish(ctx, ev)
	}
}

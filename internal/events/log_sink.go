package events

import (
	"context"

	"github.com/mnlt/filemigrator/internal/logger"
)

// LogSink writes events as structured log entries.
type LogSink struct {
	log *logger.Logger
}

// NewLogSink creates a LogSink over the given logger.
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Publish(ctx context.Context, ev Event) {
	fields := logger.Fields{
		"event": string(ev.Type),
	}
	if ev.RunID != "" {
		fields[logger.FieldRunID] = ev.RunID
	}
	if ev.FileID != "" {
		fields[logger.FieldFileID] = ev.FileID
	}
	for k, v := range ev.Fields {
		fields[k] = v
	}

	entry := s.log.WithFields(fields)
	if ev.Type == TypeFileError {
		entry.Warn(ev.Message)
		return
	}
	entry.Info(ev.Message)
}

package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/todo-progress/internal/audit"
)

// LogSink writes one structured log line per session record.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each record in the batch.
func (s *LogSink) Consume(_ context.Context, batch []audit.Record) error {
	for _, rec := range batch {
		fields := []zap.Field{
			zap.String("session_id", rec.SessionID),
			zap.String("subject_id", rec.SubjectID),
			zap.String("transport", rec.Transport),
			zap.String("outcome", rec.Outcome),
			zap.Int("frames", rec.Frames),
			zap.Time("started_at", rec.StartedAt),
			zap.Int64("duration_ms", rec.DurationMS),
		}
		if rec.RequestID != "" {
			fields = append(fields, zap.String("request_id", rec.RequestID))
		}
		if rec.Error != "" {
			fields = append(fields, zap.String("error", rec.Error))
		}
		s.logger.Info("progress session", fields...)
	}
	return nil
}

// Close implements audit.Sink; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}

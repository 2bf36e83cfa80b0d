package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/coursefinder-crawler/internal/progress"
)

// LogSink emits structured logs for progress streams. Item events are logged
// at debug level; crawl lifecycle events at info.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.Stringer("run_id", evt.RunUUID()),
			zap.String("stage", string(evt.Stage)),
			zap.Int("completed", evt.Completed),
			zap.Int("total", evt.Total),
		}
		switch evt.Stage {
		case progress.StageItemDone:
			fields = append(fields,
				zap.String("course_id", evt.CourseID),
				zap.String("outcome", evt.Outcome),
				zap.Duration("dur", evt.Dur),
			)
			s.logger.Debug("progress event", fields...)
		case progress.StageCrawlError:
			s.logger.Warn("progress event", append(fields, zap.String("note", evt.Note))...)
		default:
			if evt.Dur > 0 {
				fields = append(fields, zap.Duration("dur", evt.Dur))
			}
			s.logger.Info("progress event", fields...)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}

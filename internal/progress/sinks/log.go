package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/topic-crawler/internal/progress"
)

// LogSink mirrors progress events into structured logs at debug level,
// with run boundaries at info.
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

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunUUID().String()),
			zap.String("stage", string(evt.Stage)),
		}
		if evt.Topic != "" {
			fields = append(fields, zap.String("topic", evt.Topic))
		}
		if evt.URL != "" {
			fields = append(fields, zap.String("url", evt.URL), zap.Int("depth", evt.Depth))
		}
		if evt.Outcome != "" {
			fields = append(fields, zap.String("outcome", evt.Outcome), zap.Int("status", evt.StatusCode))
		}
		if evt.Filename != "" {
			fields = append(fields, zap.String("filename", evt.Filename))
		}
		if evt.Kind != "" {
			fields = append(fields, zap.String("kind", evt.Kind))
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		switch evt.Stage {
		case progress.StageRunStart, progress.StageRunDone:
			s.logger.Info("crawl progress", fields...)
		case progress.StageRunError:
			s.logger.Warn("crawl progress", fields...)
		default:
			s.logger.Debug("crawl progress", fields...)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}

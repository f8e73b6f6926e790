// Package metrics defines the scalar sink the trainer reports through,
// with slog and Prometheus implementations.
package metrics

import (
	"context"
	"log/slog"
)

// Sink receives named scalars emitted at a given global step. This is the
// trainer's only reporting surface; where the scalars go (logs, Prometheus,
// the run-history store) is the embedder's choice.
type Sink interface {
	Scalar(name string, value float64, step int)
}

// MultiSink fans a scalar out to several sinks.
type MultiSink []Sink

func (m MultiSink) Scalar(name string, value float64, step int) {
	for _, s := range m {
		s.Scalar(name, value, step)
	}
}

// Discard drops every scalar. Useful default when no sink is configured.
type Discard struct{}

func (Discard) Scalar(string, float64, int) {}

// LogSink writes scalars as structured log records.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink logging at debug level.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Scalar(name string, value float64, step int) {
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "scalar",
		slog.String("name", name),
		slog.Float64("value", value),
		slog.Int("step", step),
	)
}

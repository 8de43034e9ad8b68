// Package telemetry integrates execution engine events with Clue logging and
// OpenTelemetry tracing and metrics. The interfaces are intentionally small
// so tests can provide lightweight stubs.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type (
	// Logger captures structured logging used throughout the engine.
	// Implementations typically delegate to Clue.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// Metrics exposes counter and timer helpers for engine instrumentation.
	Metrics interface {
		IncCounter(name string, value float64, tags ...string)
		RecordTimer(name string, duration time.Duration, tags ...string)
	}

	// Tracer abstracts span creation so engine code stays agnostic of the
	// underlying OpenTelemetry provider.
	Tracer interface {
		Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	}

	// Span represents an in-flight tracing span.
	Span interface {
		End(opts ...trace.SpanEndOption)
		AddEvent(name string, attrs ...any)
		SetStatus(code codes.Code, description string)
		RecordError(err error, opts ...trace.EventOption)
	}

	// NoopLogger discards all log output. Useful default for tests.
	NoopLogger struct{}

	// NoopMetrics discards all measurements.
	NoopMetrics struct{}

	nodeKey struct{}
)

// Metric names recorded by the execution engine.
const (
	// MetricWireEvents counts wire events emitted, tagged by event kind.
	MetricWireEvents = "aion.wire.events"
	// MetricTurnDuration times complete turn executions, tagged by outcome.
	MetricTurnDuration = "aion.turn.duration"
)

// Debug implements Logger.
func (NoopLogger) Debug(context.Context, string, ...any) {}

// Info implements Logger.
func (NoopLogger) Info(context.Context, string, ...any) {}

// Warn implements Logger.
func (NoopLogger) Warn(context.Context, string, ...any) {}

// Error implements Logger.
func (NoopLogger) Error(context.Context, string, ...any) {}

// IncCounter implements Metrics.
func (NoopMetrics) IncCounter(string, float64, ...string) {}

// RecordTimer implements Metrics.
func (NoopMetrics) RecordTimer(string, time.Duration, ...string) {}

// WithActiveNode records the name of the runtime node currently executing.
// Node updates carry no wire event; the active node exists so logging and
// tracing can attribute subsequent events to the right graph node.
func WithActiveNode(ctx context.Context, node string) context.Context {
	return context.WithValue(ctx, nodeKey{}, node)
}

// ActiveNode returns the node name recorded by WithActiveNode, or "" when no
// node is active.
func ActiveNode(ctx context.Context) string {
	if v, ok := ctx.Value(nodeKey{}).(string); ok {
		return v
	}
	return ""
}

// Package telemetry defines the small observability facade the plexus
// runtime and transports record through. The default is a no-op; servers
// that want structured logs and OTEL instrumentation install the Clue
// implementations from clue.go.
package telemetry

import (
	"context"
	"time"
)

type (
	// Logger emits structured log messages.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// Metrics records counters and timers for calls and streams.
	Metrics interface {
		IncCounter(name string, value float64, tags ...string)
		RecordTimer(name string, duration time.Duration, tags ...string)
	}

	// Sink bundles the observability surfaces a transport carries.
	Sink struct {
		Logger  Logger
		Metrics Metrics
		Tracer  Tracer
	}

	noopLogger  struct{}
	noopMetrics struct{}
)

// Metric names recorded by the built-in transports.
const (
	MetricCalls         = "plexus.calls"
	MetricCallDuration  = "plexus.call.duration"
	MetricStreamItems   = "plexus.stream.items"
	MetricRequestsSent  = "plexus.bidi.requests"
	MetricSubscriptions = "plexus.subscriptions"
)

// Noop returns a sink that records nothing.
func Noop() Sink {
	return Sink{Logger: noopLogger{}, Metrics: noopMetrics{}, Tracer: noopTracer{}}
}

// OrNoop fills nil surfaces with no-ops so callers never nil-check.
func (s Sink) OrNoop() Sink {
	if s.Logger == nil {
		s.Logger = noopLogger{}
	}
	if s.Metrics == nil {
		s.Metrics = noopMetrics{}
	}
	if s.Tracer == nil {
		s.Tracer = noopTracer{}
	}
	return s
}

func (noopLogger) Debug(context.Context, string, ...any) {}
func (noopLogger) Info(context.Context, string, ...any)  {}
func (noopLogger) Warn(context.Context, string, ...any)  {}
func (noopLogger) Error(context.Context, string, ...any) {}

func (noopMetrics) IncCounter(string, float64, ...string)        {}
func (noopMetrics) RecordTimer(string, time.Duration, ...string) {}

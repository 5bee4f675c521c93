package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"goa.design/clue/log"
)

type (
	// ClueLogger delegates to goa.design/clue/log. Formatting and debug
	// settings come from the context (set via log.Context).
	ClueLogger struct{}

	// OTELMetrics records through the global OTEL MeterProvider.
	OTELMetrics struct {
		meter metric.Meter
	}
)

// NewClueLogger returns a Logger backed by clue.
func NewClueLogger() Logger { return ClueLogger{} }

// NewOTELMetrics returns a Metrics recorder using the global
// MeterProvider; configure it via otel.SetMeterProvider before serving.
func NewOTELMetrics() Metrics {
	return &OTELMetrics{meter: otel.Meter("github.com/plexuskit/plexus")}
}

// Clue returns a sink wired to clue logging and OTEL metrics and tracing.
func Clue() Sink {
	return Sink{Logger: NewClueLogger(), Metrics: NewOTELMetrics(), Tracer: NewOTELTracer()}
}

// Debug implements Logger.
func (ClueLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	log.Debug(ctx, fielders(msg, keyvals)...)
}

// Info implements Logger.
func (ClueLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	log.Info(ctx, fielders(msg, keyvals)...)
}

// Warn implements Logger.
func (ClueLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	log.Warn(ctx, fielders(msg, keyvals)...)
}

// Error implements Logger.
func (ClueLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	log.Error(ctx, nil, fielders(msg, keyvals)...)
}

// IncCounter implements Metrics.
func (m *OTELMetrics) IncCounter(name string, value float64, tags ...string) {
	counter, err := m.meter.Float64Counter(name)
	if err != nil {
		return
	}
	counter.Add(context.Background(), value, metric.WithAttributes(attrs(tags)...))
}

// RecordTimer implements Metrics.
func (m *OTELMetrics) RecordTimer(name string, duration time.Duration, tags ...string) {
	histogram, err := m.meter.Float64Histogram(name)
	if err != nil {
		return
	}
	histogram.Record(context.Background(), duration.Seconds(), metric.WithAttributes(attrs(tags)...))
}

// fielders converts (msg, k1, v1, k2, v2, ...) into clue fielders. An odd
// trailing key is paired with nil; non-string keys are skipped.
func fielders(msg string, keyvals []any) []log.Fielder {
	fs := []log.Fielder{log.KV{K: "msg", V: msg}}
	for i := 0; i < len(keyvals); i += 2 {
		k, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		var v any
		if i+1 < len(keyvals) {
			v = keyvals[i+1]
		}
		fs = append(fs, log.KV{K: k, V: v})
	}
	return fs
}

// attrs converts (k1, v1, k2, v2, ...) tag pairs into OTEL attributes.
func attrs(tags []string) []attribute.KeyValue {
	var out []attribute.KeyValue
	for i := 0; i < len(tags); i += 2 {
		v := ""
		if i+1 < len(tags) {
			v = tags[i+1]
		}
		out = append(out, attribute.String(tags[i], v))
	}
	return out
}

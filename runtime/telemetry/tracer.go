package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type (
	// Tracer starts spans around dispatched calls. End the span by
	// invoking the returned func with the call's terminal error, if any.
	Tracer interface {
		Start(ctx context.Context, name string, keyvals ...string) (context.Context, func(err error))
	}

	noopTracer struct{}

	// OTELTracer delegates to the global TracerProvider.
	OTELTracer struct {
		tracer trace.Tracer
	}
)

// NewOTELTracer returns a Tracer using the global TracerProvider;
// configure it via otel.SetTracerProvider before serving.
func NewOTELTracer() Tracer {
	return &OTELTracer{tracer: otel.Tracer("github.com/plexuskit/plexus")}
}

// Start implements Tracer.
func (t *OTELTracer) Start(ctx context.Context, name string, keyvals ...string) (context.Context, func(error)) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attrs(keyvals)...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func (noopTracer) Start(ctx context.Context, _ string, _ ...string) (context.Context, func(error)) {
	return ctx, func(error) {}
}

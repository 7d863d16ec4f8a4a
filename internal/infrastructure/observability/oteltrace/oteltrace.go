package oteltrace

import (
	"context"

	"github.com/Zhima-Mochi/minishop-commerce/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type tracer struct{ t trace.Tracer }

// New returns a tracer backed by the global OpenTelemetry provider.
func New(name string) observability.Tracer {
	if name == "" {
		name = "minishop"
	}
	return &tracer{t: otel.Tracer(name)}
}

func (t *tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.t.Start(ctx, name, trace.WithAttributes(attrs...))
}

// InstallPropagator sets W3C trace context and baggage as the global propagator.
// An exporter-backed TracerProvider can be installed separately via otel.SetTracerProvider.
func InstallPropagator() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

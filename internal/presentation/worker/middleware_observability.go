package workerpresentation

import (
	"context"

	domoutbox "github.com/Zhima-Mochi/minishop-commerce/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-commerce/internal/observability"
	"github.com/Zhima-Mochi/minishop-commerce/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// WithEventContext injects a request-scoped logger for background/worker executions.
// Dynamic fields only: trace_id/span_id (if valid), event_id (generated if empty),
// plus caller-provided low-cardinality attributes (e.g. "use_case", "event").
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	tel observability.Observability,
	traceID trace.TraceID,
	spanID trace.SpanID,
	attrs map[string]string, // keep this low-cardinality: event name, queue, etc.
) context.Context {
	if base == nil {
		_, base, _ = observability.Resolve(tel)
	}

	fields := make([]observability.Field, 0, 4+len(attrs))

	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields = append(fields, observability.F("event_id", evtID))

	if traceID.IsValid() {
		fields = append(fields, observability.F("trace_id", traceID.String()))
	}
	if spanID.IsValid() {
		fields = append(fields, observability.F("span_id", spanID.String()))
	}

	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}

	return logctx.With(ctx, base.With(fields...))
}

// Subscriber decorates a domoutbox.Subscriber so every handler it registers
// runs with an event-scoped logger on its context.
type Subscriber struct {
	next domoutbox.Subscriber
	base observability.Logger
	tel  observability.Observability
}

func NewSubscriber(next domoutbox.Subscriber, base observability.Logger, tel observability.Observability) *Subscriber {
	return &Subscriber{next: next, base: base, tel: tel}
}

func (s *Subscriber) Subscribe(eventName string, h domoutbox.Handler) {
	s.next.Subscribe(eventName, func(ctx context.Context, e domoutbox.Event) error {
		sc := trace.SpanContextFromContext(ctx)
		ctx = WithEventContext(ctx, s.base, s.tel, sc.TraceID(), sc.SpanID(), map[string]string{
			"event": e.EventName(),
		})
		return h(ctx, e)
	})
}

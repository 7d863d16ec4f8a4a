package order

import (
	"context"
	"time"

	domorder "github.com/Zhima-Mochi/minishop-commerce/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-commerce/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-commerce/internal/observability"
	"github.com/Zhima-Mochi/minishop-commerce/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const workerService = "order-worker"

// EventWorker consumes order lifecycle events after commit. It only records
// them; no business state depends on its delivery.
type EventWorker struct {
	subscriber domoutbox.Subscriber

	log          observability.Logger
	tracer       observability.Tracer
	eventCounter observability.Counter   // order_events_total{event,outcome}
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func NewEventWorker(subscriber domoutbox.Subscriber, tel observability.Observability) *EventWorker {
	tracer, logger, metrics := observability.Resolve(tel)
	return &EventWorker{
		subscriber:   subscriber,
		log:          logger.With(observability.F("service", workerService)),
		tracer:       tracer,
		eventCounter: metrics.Counter(observability.MOrderEvents),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
	}
}

// Events lists the event names the worker subscribes to.
func (w *EventWorker) Events() []string {
	return []string{
		domorder.OrderCreatedEvent{}.EventName(),
		domorder.OrderStatusChangedEvent{}.EventName(),
		domorder.OrderCancelledEvent{}.EventName(),
		domorder.PaymentStatusChangedEvent{}.EventName(),
	}
}

func (w *EventWorker) Start() {
	if w.subscriber == nil {
		return
	}
	for _, name := range w.Events() {
		w.subscriber.Subscribe(name, w.Handle)
	}
}

// Handle records a single event.
func (w *EventWorker) Handle(ctx context.Context, e domoutbox.Event) error {
	name := e.EventName()
	useCase := "order.worker." + name

	ctx, span := w.tracer.Start(ctx, "UC.HandleEvent",
		attribute.String("use_case", useCase),
		attribute.String("event", name),
	)
	start := time.Now()
	outcome := "success"

	logger := logctx.WithTrace(ctx, logctx.FromOr(ctx, w.log)).With(
		observability.F("use_case", useCase),
		observability.F("event", name),
	)

	fields, ok := eventFields(e)
	if !ok {
		outcome = "ignored"
	}

	lat := time.Since(start).Seconds()
	w.eventCounter.Add(1,
		observability.L("event", name),
		observability.L("outcome", outcome),
	)
	w.reqCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", outcome),
	)
	w.durHistogram.Observe(lat, observability.L("use_case", useCase))

	fields = append(fields,
		observability.F("outcome", outcome),
		observability.F("latency_seconds", lat),
	)
	logger.Info("order_event_recorded", fields...)

	span.SetStatus(codes.Ok, outcome)
	span.End()
	return nil
}

func eventFields(e domoutbox.Event) ([]observability.Field, bool) {
	switch evt := e.(type) {
	case domorder.OrderCreatedEvent:
		return []observability.Field{
			observability.F("order_id", evt.OrderID),
			observability.F("total_amount", evt.TotalAmount),
			observability.F("item_count", evt.ItemCount),
			observability.F("guest", evt.UserID == ""),
		}, true
	case domorder.OrderStatusChangedEvent:
		return []observability.Field{
			observability.F("order_id", evt.OrderID),
			observability.F("from", string(evt.From)),
			observability.F("to", string(evt.To)),
		}, true
	case domorder.OrderCancelledEvent:
		released := 0
		for _, it := range evt.Released {
			released += it.Quantity
		}
		return []observability.Field{
			observability.F("order_id", evt.OrderID),
			observability.F("released_units", released),
		}, true
	case domorder.PaymentStatusChangedEvent:
		return []observability.Field{
			observability.F("order_id", evt.OrderID),
			observability.F("payment_id", evt.PaymentID),
			observability.F("from", string(evt.From)),
			observability.F("to", string(evt.To)),
		}, true
	default:
		return nil, false
	}
}

package application

import (
	"context"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-commerce/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-commerce/internal/observability"
	"github.com/Zhima-Mochi/minishop-commerce/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

const (
	SpanPrefix     = "UC."
	publishPeer    = "outbox"
	PublishTimeout = 300 * time.Millisecond
)

// Instruments carries the RED metrics and tracer shared by the use cases of
// one service. Metrics are resolved once at construction, never per call.
type Instruments struct {
	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewInstruments(tel observability.Observability, service string) *Instruments {
	tracer, logger, metrics := observability.Resolve(tel)
	return &Instruments{
		log:          logger.With(observability.F("service", service)),
		tracer:       tracer,
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		extCounter:   metrics.Counter(observability.MExternalRequests),
		extHistogram: metrics.Histogram(observability.MExternalRequestDuration),
	}
}

// Logger returns the service logger.
func (in *Instruments) Logger() observability.Logger { return in.log }

// Run tracks a single use case execution from Begin to End.
type Run struct {
	in      *Instruments
	useCase string
	ctx     context.Context
	span    trace.Span
	start   time.Time
	logger  observability.Logger

	outcome string
	status  string
	fields  []observability.Field
}

// Begin opens the span for useCase and returns a context carrying it together
// with a use-case scoped logger.
func (in *Instruments) Begin(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Run) {
	attrs = append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)
	ctx, span := in.tracer.Start(ctx, SpanPrefix+spanName, attrs...)
	logger := logctx.FromOr(ctx, in.log).With(observability.F("use_case", useCase))
	return ctx, &Run{
		in:      in,
		useCase: useCase,
		ctx:     ctx,
		span:    span,
		start:   time.Now(),
		logger:  logger,
		outcome: "success",
		status:  "OK",
	}
}

func (r *Run) Logger() observability.Logger { return r.logger }

func (r *Run) Span() trace.Span { return r.span }

// Fail marks the run as failed with a machine readable status.
func (r *Run) Fail(status string) {
	r.outcome, r.status = "error", status
}

// Mark overrides the status text without changing the outcome.
func (r *Run) Mark(status string) {
	r.status = status
}

// Annotate adds fields to the final use_case_done log line.
func (r *Run) Annotate(fields ...observability.Field) {
	r.fields = append(r.fields, fields...)
}

// End closes the span, records RED metrics and logs use_case_done.
func (r *Run) End(err error) {
	lat := time.Since(r.start).Seconds()
	if err != nil && r.outcome == "success" {
		r.outcome, r.status = "error", "FAILED"
	}

	if r.span != nil {
		if err != nil {
			r.span.RecordError(err)
			r.span.SetStatus(codes.Error, r.status)
		} else {
			r.span.SetStatus(codes.Ok, r.status)
		}
		r.span.End()
	}

	r.in.reqCounter.Add(1,
		observability.L("use_case", r.useCase),
		observability.L("outcome", r.outcome),
	)
	r.in.durHistogram.Observe(lat,
		observability.L("use_case", r.useCase),
	)

	fields := []observability.Field{
		observability.F("outcome", r.outcome),
		observability.F("status", r.status),
		observability.F("latency_seconds", lat),
	}
	fields = append(fields, r.fields...)
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	logctx.WithTrace(r.ctx, r.logger).Info("use_case_done", fields...)
}

// Publish hands event to publisher with a bounded timeout and records the
// call as an external request. A nil publisher is a no-op.
func (in *Instruments) Publish(ctx context.Context, publisher domoutbox.Publisher, event domoutbox.Event) error {
	if publisher == nil || event == nil {
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()

	start := time.Now()
	err := publisher.Publish(pubCtx, event)
	outcome := "success"
	if err != nil {
		outcome = "error"
	} else if pubCtx.Err() != nil {
		outcome = "canceled"
		err = pubCtx.Err()
	}

	in.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", event.EventName()),
		observability.L("outcome", outcome),
	)
	in.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", event.EventName()),
	)
	return err
}

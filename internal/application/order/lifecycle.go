package order

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/minishop-commerce/internal/application"
	domain "github.com/Zhima-Mochi/minishop-commerce/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-commerce/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/txn"
	"github.com/Zhima-Mochi/minishop-commerce/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseOrderGet           = "order.get"
	useCaseOrderList          = "order.list"
	useCaseOrderStats         = "order.stats"
	useCaseOrderUpdateStatus  = "order.update_status"
	useCaseOrderPaymentStatus = "order.update_payment_status"
	useCaseOrderCancel        = "order.cancel"
)

// LifecycleService reads orders and moves them through their statuses.
// Cancellation releases reserved stock in the same transaction that flips the
// order and payment to cancelled.
type LifecycleService struct {
	orders    domain.Repository
	tx        txn.Manager
	guard     GuardFactory
	publisher domoutbox.Publisher

	obs *application.Instruments
}

func NewLifecycleService(
	orders domain.Repository,
	tx txn.Manager,
	guard GuardFactory,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *LifecycleService {
	return &LifecycleService{
		orders:    orders,
		tx:        tx,
		guard:     guard,
		publisher: publisher,
		obs:       application.NewInstruments(tel, orderService),
	}
}

// Get loads an order visible within scope. Orders outside the scope are
// reported as not found.
func (s *LifecycleService) Get(ctx context.Context, id string, scope domain.Scope) (_ *domain.Order, err error) {
	ctx, run := s.obs.Begin(ctx, useCaseOrderGet, "GetOrder", attribute.String("order.id", id))
	run.Annotate(observability.F("order_id", id))
	defer func() { run.End(err) }()

	o, err := s.orders.Get(ctx, id)
	if err != nil {
		run.Fail("ORDER_LOAD_FAILED")
		return nil, classify(err)
	}
	if !scope.Allows(o) {
		run.Fail("OUT_OF_SCOPE")
		return nil, domain.ErrNotFound
	}
	return o, nil
}

// List pages through orders, newest first.
func (s *LifecycleService) List(ctx context.Context, q domain.ListQuery) (_ domain.Page, err error) {
	ctx, run := s.obs.Begin(ctx, useCaseOrderList, "ListOrders", attribute.String("order.user_id", q.UserID))
	defer func() { run.End(err) }()

	page, err := s.orders.List(ctx, q.Normalize())
	if err != nil {
		run.Fail("ORDER_LIST_FAILED")
		return domain.Page{}, classify(err)
	}
	run.Annotate(observability.F("total", page.Total))
	return page, nil
}

func (s *LifecycleService) Stats(ctx context.Context) (_ domain.Stats, err error) {
	ctx, run := s.obs.Begin(ctx, useCaseOrderStats, "OrderStats")
	defer func() { run.End(err) }()

	stats, err := s.orders.Stats(ctx)
	if err != nil {
		run.Fail("ORDER_STATS_FAILED")
		return domain.Stats{}, classify(err)
	}
	return stats, nil
}

// UpdateStatus overwrites the order status. Moving to cancelled goes through
// Cancel so stock and payment follow.
func (s *LifecycleService) UpdateStatus(ctx context.Context, id, raw string) (_ *domain.Order, err error) {
	to, err := domain.ParseStatus(raw)
	if err != nil {
		return nil, err
	}
	if to == domain.StatusCancelled {
		return s.Cancel(ctx, id, domain.Scope{})
	}

	ctx, run := s.obs.Begin(ctx, useCaseOrderUpdateStatus, "UpdateOrderStatus",
		attribute.String("order.id", id),
		attribute.String("order.status", string(to)),
	)
	run.Annotate(observability.F("order_id", id), observability.F("to", string(to)))
	defer func() { run.End(err) }()

	var from domain.Status
	var updated *domain.Order
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		o, err := tx.Orders().Get(ctx, id)
		if err != nil {
			return err
		}
		from = o.Status
		if err := o.SetStatus(to); err != nil {
			return err
		}
		if err := tx.Orders().UpdateStatus(ctx, id, from, o.Status); err != nil {
			return fmt.Errorf("order: update status: %w", err)
		}
		updated = o
		return nil
	})
	if err != nil {
		run.Fail(failureStatus(err))
		return nil, classify(err)
	}

	run.Annotate(observability.F("from", string(from)))
	if from != to {
		s.publish(ctx, run, domain.NewOrderStatusChangedEvent(id, from, to))
	}
	return updated, nil
}

// UpdatePaymentStatus changes the payment row of an order. Orders without a
// payment are returned unchanged.
func (s *LifecycleService) UpdatePaymentStatus(ctx context.Context, id, raw, transactionRef string) (_ *domain.Order, err error) {
	to, err := payment.ParseStatus(raw)
	if err != nil {
		return nil, err
	}

	ctx, run := s.obs.Begin(ctx, useCaseOrderPaymentStatus, "UpdatePaymentStatus",
		attribute.String("order.id", id),
		attribute.String("payment.status", string(to)),
	)
	run.Annotate(observability.F("order_id", id), observability.F("to", string(to)))
	defer func() { run.End(err) }()

	var from payment.Status
	var changed bool
	var updated *domain.Order
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		o, err := tx.Orders().Get(ctx, id)
		if err != nil {
			return err
		}
		from = o.PaymentStatus()
		changed, err = o.SetPaymentStatus(to, transactionRef)
		if err != nil {
			return err
		}
		if changed {
			if err := tx.Orders().UpdatePayment(ctx, o.Payment); err != nil {
				return fmt.Errorf("order: update payment: %w", err)
			}
		}
		updated = o
		return nil
	})
	if err != nil {
		run.Fail(failureStatus(err))
		return nil, classify(err)
	}

	if !changed {
		run.Mark("NO_PAYMENT")
		return updated, nil
	}
	if from != to {
		s.publish(ctx, run, domain.NewPaymentStatusChangedEvent(id, updated.Payment.ID, from, to))
	}
	return updated, nil
}

// Cancel releases every item back to stock and marks the order and its
// payment cancelled. Shipped, delivered and cancelled orders are refused
// without touching anything.
func (s *LifecycleService) Cancel(ctx context.Context, id string, scope domain.Scope) (_ *domain.Order, err error) {
	ctx, run := s.obs.Begin(ctx, useCaseOrderCancel, "CancelOrder", attribute.String("order.id", id))
	run.Annotate(observability.F("order_id", id))
	defer func() { run.End(err) }()

	var from domain.Status
	var fromPayment payment.Status
	var cancelled *domain.Order
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		orders := tx.Orders()
		o, err := orders.Get(ctx, id)
		if err != nil {
			return err
		}
		if !scope.Allows(o) {
			return domain.ErrNotFound
		}
		from, fromPayment = o.Status, o.PaymentStatus()
		if err := o.Cancel(); err != nil {
			return err
		}

		// The status flip comes first: a concurrent cancel that read the same
		// status loses here and rolls back before releasing anything.
		if err := orders.UpdateStatus(ctx, id, from, o.Status); err != nil {
			return fmt.Errorf("order: update status: %w", err)
		}
		guard := s.guard(tx.Products())
		for _, it := range o.Items {
			if err := guard.Release(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		if o.Payment != nil {
			if err := orders.UpdatePayment(ctx, o.Payment); err != nil {
				return fmt.Errorf("order: update payment: %w", err)
			}
		}
		cancelled = o
		return nil
	})
	if err != nil {
		run.Fail(failureStatus(err))
		return nil, classify(err)
	}

	run.Annotate(observability.F("from", string(from)), observability.F("released_items", len(cancelled.Items)))
	s.publish(ctx, run, domain.NewOrderCancelledEvent(cancelled))
	s.publish(ctx, run, domain.NewOrderStatusChangedEvent(id, from, domain.StatusCancelled))
	if cancelled.Payment != nil && fromPayment != payment.StatusCancelled {
		s.publish(ctx, run, domain.NewPaymentStatusChangedEvent(id, cancelled.Payment.ID, fromPayment, payment.StatusCancelled))
	}
	return cancelled, nil
}

// Mine lists the orders placed by userID.
func (s *LifecycleService) Mine(ctx context.Context, userID string, page, limit int) (domain.Page, error) {
	if userID == "" {
		return domain.Page{}, domain.ErrInvalidOwner
	}
	return s.List(ctx, domain.ListQuery{Page: page, Limit: limit, UserID: userID})
}

func (s *LifecycleService) publish(ctx context.Context, run *application.Run, event domoutbox.Event) {
	if err := s.obs.Publish(ctx, s.publisher, event); err != nil {
		run.Mark("EVENT_PUBLISH_FAILED")
		run.Logger().Warn("event_publish_failed",
			observability.F("event", event.EventName()),
			observability.F("error", err.Error()),
		)
	}
}

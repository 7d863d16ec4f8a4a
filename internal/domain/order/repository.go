package order

import (
	"context"

	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/payment"
)

type Repository interface {
	InsertHeader(ctx context.Context, order *Order) error
	InsertItem(ctx context.Context, item *Item) error
	InsertPayment(ctx context.Context, p *payment.Payment) error
	// Get returns the order with its items and payment loaded.
	Get(ctx context.Context, id string) (*Order, error)
	FindByIdempotency(ctx context.Context, ownerKey, key string) (*Order, error)
	// UpdateStatus moves the order from one status to another. It fails with
	// ErrInvalidTransition when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to Status) error
	UpdatePayment(ctx context.Context, p *payment.Payment) error
	List(ctx context.Context, q ListQuery) (Page, error)
	Stats(ctx context.Context) (Stats, error)
}

type ListQuery struct {
	Page   int
	Limit  int
	UserID string
}

// Normalize clamps paging to page >= 1 and 1 <= limit <= 100.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return q
}

func (q ListQuery) Offset() int { return (q.Page - 1) * q.Limit }

type Page struct {
	Orders []*Order
	Total  int
	Page   int
	Limit  int
}

type Stats struct {
	TotalOrders      int   `json:"total_orders"`
	TotalRevenue     int64 `json:"total_revenue"`
	PendingOrders    int   `json:"pending_orders"`
	ProcessingOrders int   `json:"processing_orders"`
	ShippedOrders    int   `json:"shipped_orders"`
	DeliveredOrders  int   `json:"delivered_orders"`
	CancelledOrders  int   `json:"cancelled_orders"`
}

// Count tallies one order into the per-status counters and revenue.
func (s *Stats) Count(o *Order) {
	s.TotalOrders++
	switch o.Status {
	case StatusPending:
		s.PendingOrders++
	case StatusProcessing:
		s.ProcessingOrders++
	case StatusShipped:
		s.ShippedOrders++
	case StatusDelivered:
		s.DeliveredOrders++
	case StatusCancelled:
		s.CancelledOrders++
	}
	if o.Status != StatusCancelled {
		s.TotalRevenue += o.TotalAmount
	}
}

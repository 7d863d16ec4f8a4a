package order

import (
	"time"

	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/payment"
)

// OrderCreatedEvent is emitted once an order and its payment row are committed.
type OrderCreatedEvent struct {
	OrderID     string
	UserID      string
	GuestEmail  string
	TotalAmount int64
	ItemCount   int
	OccurredAt  time.Time
}

func (OrderCreatedEvent) EventName() string { return "order.created" }

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	count := 0
	for _, it := range o.Items {
		count += it.Quantity
	}
	return OrderCreatedEvent{
		OrderID:     o.ID,
		UserID:      o.UserID,
		GuestEmail:  o.GuestEmail,
		TotalAmount: o.TotalAmount,
		ItemCount:   count,
		OccurredAt:  time.Now().UTC(),
	}
}

// OrderStatusChangedEvent is emitted for every committed status overwrite.
type OrderStatusChangedEvent struct {
	OrderID    string
	From       Status
	To         Status
	OccurredAt time.Time
}

func (OrderStatusChangedEvent) EventName() string { return "order.status_changed" }

func NewOrderStatusChangedEvent(orderID string, from, to Status) OrderStatusChangedEvent {
	return OrderStatusChangedEvent{
		OrderID:    orderID,
		From:       from,
		To:         to,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderCancelledEvent is emitted after stock has been released for a cancelled order.
type OrderCancelledEvent struct {
	OrderID    string
	Released   []Item
	OccurredAt time.Time
}

func (OrderCancelledEvent) EventName() string { return "order.cancelled" }

func NewOrderCancelledEvent(o *Order) OrderCancelledEvent {
	return OrderCancelledEvent{
		OrderID:    o.ID,
		Released:   append([]Item(nil), o.Items...),
		OccurredAt: time.Now().UTC(),
	}
}

// PaymentStatusChangedEvent is emitted when the payment row of an order changes status.
type PaymentStatusChangedEvent struct {
	OrderID    string
	PaymentID  string
	From       payment.Status
	To         payment.Status
	OccurredAt time.Time
}

func (PaymentStatusChangedEvent) EventName() string { return "payment.status_changed" }

func NewPaymentStatusChangedEvent(orderID, paymentID string, from, to payment.Status) PaymentStatusChangedEvent {
	return PaymentStatusChangedEvent{
		OrderID:    orderID,
		PaymentID:  paymentID,
		From:       from,
		To:         to,
		OccurredAt: time.Now().UTC(),
	}
}

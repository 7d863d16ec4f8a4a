package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/payment"
)

var (
	ErrNotFound          = errors.New("order: not found")
	ErrConflict          = errors.New("order: conflict")
	ErrInvalidOwner      = errors.New("order: exactly one of user id or guest email is required")
	ErrNoItems           = errors.New("order: at least one item is required")
	ErrInvalidItem       = errors.New("order: item product id is required")
	ErrInvalidQuantity   = errors.New("order: quantity must be greater than zero")
	ErrInvalidPrice      = errors.New("order: price must be zero or greater")
	ErrInvalidStatus     = errors.New("order: invalid status")
	ErrInvalidTransition = errors.New("order: invalid status transition")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every order status in lifecycle order.
var Statuses = []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

// ParseStatus validates raw against the order status enumeration.
func ParseStatus(raw string) (Status, error) {
	for _, s := range Statuses {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// IsTerminal reports whether no cancelling transition is allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusShipped || s == StatusDelivered || s == StatusCancelled
}

// Owner identifies who placed an order: a registered user or a guest email.
type Owner struct {
	UserID     string
	GuestEmail string
}

func (o Owner) Validate() error {
	hasUser := strings.TrimSpace(o.UserID) != ""
	hasEmail := strings.TrimSpace(o.GuestEmail) != ""
	if hasUser == hasEmail {
		return ErrInvalidOwner
	}
	return nil
}

// Key is a stable identity string used to scope idempotency keys.
func (o Owner) Key() string {
	if o.UserID != "" {
		return "user:" + o.UserID
	}
	return "guest:" + strings.ToLower(o.GuestEmail)
}

// Scope restricts order lookups to an owner. The zero value is unscoped.
type Scope struct {
	UserID     string
	GuestEmail string
}

// Allows reports whether o is visible within the scope.
func (s Scope) Allows(o *Order) bool {
	if s.UserID != "" && o.UserID != s.UserID {
		return false
	}
	if s.GuestEmail != "" && !strings.EqualFold(o.GuestEmail, s.GuestEmail) {
		return false
	}
	return true
}

// Item is an immutable snapshot of a purchased line.
type Item struct {
	ID        string `json:"order_item_id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
	Subtotal  int64  `json:"subtotal"`
}

// Line is a requested order line before it becomes an Item.
type Line struct {
	ProductID string
	Quantity  int
	Price     int64
}

type Order struct {
	ID              string
	UserID          string
	GuestEmail      string
	Status          Status
	TotalAmount     int64
	ShippingAddress string
	IdempotencyKey  string
	Items           []Item
	Payment         *payment.Payment
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// New builds a pending order and fixes its total from the supplied lines.
// itemID is called once per line to mint item identifiers.
func New(id string, owner Owner, lines []Line, shippingAddress, idempotencyKey string, itemID func() string) (*Order, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrNoItems
	}

	now := time.Now().UTC()
	o := &Order{
		ID:              id,
		UserID:          strings.TrimSpace(owner.UserID),
		GuestEmail:      strings.TrimSpace(owner.GuestEmail),
		Status:          StatusPending,
		ShippingAddress: shippingAddress,
		IdempotencyKey:  idempotencyKey,
		Items:           make([]Item, 0, len(lines)),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidQuantity, l.ProductID)
		}
		if l.Price < 0 {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidPrice, l.ProductID)
		}
		subtotal := int64(l.Quantity) * l.Price
		o.Items = append(o.Items, Item{
			ID:        itemID(),
			OrderID:   id,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.Price,
			Subtotal:  subtotal,
		})
		o.TotalAmount += subtotal
	}
	return o, nil
}

// Owner returns the owner reference recorded on the order.
func (o *Order) Owner() Owner {
	return Owner{UserID: o.UserID, GuestEmail: o.GuestEmail}
}

// PaymentStatus mirrors the attached payment row; orders without one report pending.
func (o *Order) PaymentStatus() payment.Status {
	if o.Payment == nil {
		return payment.StatusPending
	}
	return o.Payment.Status
}

// ItemsTotal recomputes the sum of item subtotals.
func (o *Order) ItemsTotal() int64 {
	var total int64
	for _, it := range o.Items {
		total += int64(it.Quantity) * it.Price
	}
	return total
}

// AttachPayment creates the pending payment row for the order total.
func (o *Order) AttachPayment(id string, method payment.Method) *payment.Payment {
	o.Payment = payment.New(id, o.ID, method, o.TotalAmount)
	return o.Payment
}

// SetStatus overwrites the status for any non-cancelling transition.
func (o *Order) SetStatus(s Status) error {
	if s == StatusCancelled {
		return o.Cancel()
	}
	next, err := stateFor(o.Status).Advance(o, s)
	if err != nil {
		return err
	}
	o.Status = next.Status()
	o.touch()
	return nil
}

// Cancel moves the order to cancelled and cancels its payment.
func (o *Order) Cancel() error {
	next, err := stateFor(o.Status).Cancel(o)
	if err != nil {
		return err
	}
	o.Status = next.Status()
	if o.Payment != nil {
		o.Payment.SetStatus(payment.StatusCancelled)
	}
	o.touch()
	return nil
}

// SetPaymentStatus updates the payment row. Cancellation is reserved for Cancel.
// It reports false when the order carries no payment.
func (o *Order) SetPaymentStatus(s payment.Status, transactionRef string) (bool, error) {
	if s == payment.StatusCancelled && o.Status != StatusCancelled {
		return false, fmt.Errorf("%w: payment can only be cancelled by cancelling the order", ErrInvalidTransition)
	}
	if o.Payment == nil {
		return false, nil
	}
	o.Payment.SetStatus(s)
	if transactionRef != "" {
		o.Payment.TransactionRef = transactionRef
	}
	o.touch()
	return true, nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = append([]Item(nil), o.Items...)
	clone.Payment = o.Payment.Clone()
	return &clone
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}

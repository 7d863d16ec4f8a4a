package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Zhima-Mochi/minishop-commerce/internal/application"
	domain "github.com/Zhima-Mochi/minishop-commerce/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-commerce/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/txn"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/user"
	"github.com/Zhima-Mochi/minishop-commerce/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService       = "order-service"
	useCaseOrderCreate = "order.create"
)

var (
	ErrConflict   = domain.ErrConflict
	ErrNotFound   = domain.ErrNotFound
	ErrRepository = errors.New("order: repository failure")
)

// CreateOrderUseCase validates an order request and commits the order, its
// items, the stock reservations and the pending payment as one unit.
type CreateOrderUseCase struct {
	orders      domain.Repository
	tx          txn.Manager
	users       user.Directory
	guard       GuardFactory
	orderIDs    IDGenerator
	rowIDs      IDGenerator
	publisher   domoutbox.Publisher
	trustClient bool

	obs *application.Instruments
}

type CreateOrderOption func(*CreateOrderUseCase)

// WithClientPrices makes the use case charge the caller supplied unit prices
// instead of the catalog prices.
func WithClientPrices(trust bool) CreateOrderOption {
	return func(uc *CreateOrderUseCase) { uc.trustClient = trust }
}

// WithRowIDs sets the generator for item and payment ids. Defaults to the
// order id generator.
func WithRowIDs(gen IDGenerator) CreateOrderOption {
	return func(uc *CreateOrderUseCase) { uc.rowIDs = gen }
}

// NewCreateOrderUseCase wires the dependencies required to execute the use case.
func NewCreateOrderUseCase(
	orders domain.Repository,
	tx txn.Manager,
	users user.Directory,
	guard GuardFactory,
	idGen IDGenerator,
	publisher domoutbox.Publisher,
	tel observability.Observability,
	opts ...CreateOrderOption,
) *CreateOrderUseCase {
	uc := &CreateOrderUseCase{
		orders:    orders,
		tx:        tx,
		users:     users,
		guard:     guard,
		orderIDs:  idGen,
		rowIDs:    idGen,
		publisher: publisher,
		obs:       application.NewInstruments(tel, orderService),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

type LineInput struct {
	ProductID string
	Quantity  int
	Price     int64
}

type CreateOrderInput struct {
	IdempotencyKey  string
	UserID          string
	GuestEmail      string
	ShippingAddress string
	PaymentMethod   payment.Method
	Items           []LineInput
}

// Execute performs the order creation flow and returns the committed order
// with its items and payment loaded.
func (uc *CreateOrderUseCase) Execute(ctx context.Context, cmd CreateOrderInput) (_ *domain.Order, err error) {
	ctx, run := uc.obs.Begin(ctx, useCaseOrderCreate, "CreateOrder",
		attribute.String("order.user_id", cmd.UserID),
		attribute.Int("order.lines", len(cmd.Items)),
	)
	span := run.Span()
	defer func() { run.End(err) }()

	owner := domain.Owner{UserID: strings.TrimSpace(cmd.UserID), GuestEmail: strings.TrimSpace(cmd.GuestEmail)}
	if err := owner.Validate(); err != nil {
		run.Fail("OWNER_INVALID")
		return nil, err
	}
	// A replay returns the committed order whatever the request body holds.
	if cmd.IdempotencyKey != "" {
		existing, lookupErr := uc.orders.FindByIdempotency(ctx, owner.Key(), cmd.IdempotencyKey)
		switch {
		case lookupErr == nil:
			uc.replayed(run, span, existing)
			return existing, nil
		case errors.Is(lookupErr, domain.ErrNotFound):
			// continue
		default:
			run.Fail("IDEMPOTENCY_LOOKUP_FAILED")
			return nil, classify(lookupErr)
		}
	}
	if err := validateLines(cmd.Items); err != nil {
		run.Fail("ITEMS_INVALID")
		return nil, err
	}
	if _, err := payment.ParseMethod(string(cmd.PaymentMethod)); err != nil {
		run.Fail("PAYMENT_METHOD_INVALID")
		return nil, err
	}
	if owner.UserID != "" && uc.users != nil {
		exists, lookupErr := uc.users.Exists(ctx, owner.UserID)
		if lookupErr != nil {
			run.Fail("USER_LOOKUP_FAILED")
			return nil, fmt.Errorf("%w: %w", ErrRepository, lookupErr)
		}
		if !exists {
			run.Fail("USER_NOT_FOUND")
			return nil, fmt.Errorf("%w: %s", user.ErrNotFound, owner.UserID)
		}
	}

	if err := ctx.Err(); err != nil {
		run.Fail("CONTEXT_CANCELED")
		return nil, err
	}

	var created *domain.Order
	txErr := uc.tx.WithinTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		o, err := uc.place(ctx, tx, owner, cmd)
		if err != nil {
			return err
		}
		created = o
		return nil
	})
	if txErr != nil {
		if errors.Is(txErr, domain.ErrConflict) && cmd.IdempotencyKey != "" {
			if existing, lookupErr := uc.orders.FindByIdempotency(ctx, owner.Key(), cmd.IdempotencyKey); lookupErr == nil {
				uc.replayed(run, span, existing)
				return existing, nil
			}
		}
		run.Fail(failureStatus(txErr))
		return nil, classify(txErr)
	}

	if publishErr := uc.obs.Publish(ctx, uc.publisher, domain.NewOrderCreatedEvent(created)); publishErr != nil {
		run.Mark("EVENT_PUBLISH_FAILED")
		run.Annotate(observability.F("event_publish_error", publishErr.Error()))
	}

	run.Annotate(
		observability.F("order_id", created.ID),
		observability.F("total_amount", created.TotalAmount),
	)
	span.SetAttributes(
		attribute.String("order.id", created.ID),
		attribute.String("order.status", string(created.Status)),
		attribute.Int64("order.total_amount", created.TotalAmount),
	)
	span.AddEvent("order.created", trace.WithAttributes(attribute.String("order.id", created.ID)))
	return created, nil
}

// place runs inside the transaction. Any error it returns rolls back every
// write it made.
func (uc *CreateOrderUseCase) place(ctx context.Context, tx txn.Tx, owner domain.Owner, cmd CreateOrderInput) (*domain.Order, error) {
	products := tx.Products()

	// Duplicate lines are checked against their combined quantity.
	wanted := make(map[string]int, len(cmd.Items))
	catalog := make(map[string]*product.Product, len(cmd.Items))
	for _, it := range cmd.Items {
		wanted[it.ProductID] += it.Quantity
	}
	for _, it := range cmd.Items {
		if _, seen := catalog[it.ProductID]; seen {
			continue
		}
		p, err := products.FindActive(ctx, it.ProductID)
		if err != nil {
			return nil, fmt.Errorf("order: product %s: %w", it.ProductID, err)
		}
		if err := p.CheckAvailable(wanted[it.ProductID]); err != nil {
			return nil, err
		}
		catalog[it.ProductID] = p
	}

	lines := make([]domain.Line, 0, len(cmd.Items))
	for _, it := range cmd.Items {
		price := catalog[it.ProductID].Price
		if uc.trustClient {
			price = it.Price
		}
		lines = append(lines, domain.Line{ProductID: it.ProductID, Quantity: it.Quantity, Price: price})
	}

	o, err := domain.New(uc.orderIDs.NewID(), owner, lines, cmd.ShippingAddress, cmd.IdempotencyKey, uc.rowIDs.NewID)
	if err != nil {
		return nil, err
	}

	orders := tx.Orders()
	if err := orders.InsertHeader(ctx, o); err != nil {
		return nil, fmt.Errorf("order: insert header: %w", err)
	}
	guard := uc.guard(products)
	for i := range o.Items {
		item := o.Items[i]
		if err := orders.InsertItem(ctx, &item); err != nil {
			return nil, fmt.Errorf("order: insert item: %w", err)
		}
		if _, err := guard.Reserve(ctx, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
	}
	pay := o.AttachPayment(uc.rowIDs.NewID(), cmd.PaymentMethod)
	if err := orders.InsertPayment(ctx, pay); err != nil {
		return nil, fmt.Errorf("order: insert payment: %w", err)
	}

	loaded, err := orders.Get(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("order: reload: %w", err)
	}
	return loaded, nil
}

func (uc *CreateOrderUseCase) replayed(run *application.Run, span trace.Span, existing *domain.Order) {
	run.Mark("IDEMPOTENT_REPLAY")
	run.Annotate(observability.F("order_id", existing.ID))
	span.SetAttributes(attribute.String("order.status", string(existing.Status)))
	span.AddEvent("order.idempotent_replay",
		trace.WithAttributes(attribute.String("order.id", existing.ID)),
	)
}

func validateLines(items []LineInput) error {
	if len(items) == 0 {
		return domain.ErrNoItems
	}
	for _, it := range items {
		if strings.TrimSpace(it.ProductID) == "" {
			return domain.ErrInvalidItem
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: product %s", domain.ErrInvalidQuantity, it.ProductID)
		}
		if it.Price < 0 {
			return fmt.Errorf("%w: product %s", domain.ErrInvalidPrice, it.ProductID)
		}
	}
	return nil
}

// businessErrors are outcomes the caller can act on. Everything else raised
// by a repository is a backend fault.
var businessErrors = []error{
	domain.ErrNotFound,
	domain.ErrConflict,
	domain.ErrInvalidOwner,
	domain.ErrNoItems,
	domain.ErrInvalidItem,
	domain.ErrInvalidQuantity,
	domain.ErrInvalidPrice,
	domain.ErrInvalidStatus,
	domain.ErrInvalidTransition,
	product.ErrNotFound,
	product.ErrInvalidQuantity,
	product.ErrInsufficientStock,
	payment.ErrInvalidStatus,
	payment.ErrInvalidMethod,
	user.ErrNotFound,
	context.Canceled,
	context.DeadlineExceeded,
}

// classify passes business errors through and marks the rest with ErrRepository.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	if errors.Is(err, ErrRepository) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrRepository, err)
}

func failureStatus(err error) string {
	switch {
	case errors.Is(err, product.ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, product.ErrNotFound):
		return "PRODUCT_NOT_FOUND"
	case errors.Is(err, domain.ErrConflict):
		return "CONFLICT"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, domain.ErrNotFound):
		return "ORDER_NOT_FOUND"
	default:
		return "TX_FAILED"
	}
}

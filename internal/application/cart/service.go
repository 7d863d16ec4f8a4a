package cart

import (
	"context"
	"errors"

	"github.com/Zhima-Mochi/minishop-commerce/internal/application"
	apporder "github.com/Zhima-Mochi/minishop-commerce/internal/application/order"
	domain "github.com/Zhima-Mochi/minishop-commerce/internal/domain/cart"
	domorder "github.com/Zhima-Mochi/minishop-commerce/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-commerce/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	cartService     = "cart-service"
	useCaseGet      = "cart.get"
	useCaseAdd      = "cart.add_item"
	useCaseUpdate   = "cart.update_item"
	useCaseRemove   = "cart.remove_item"
	useCaseClear    = "cart.clear"
	useCaseMerge    = "cart.merge"
	useCaseCheckout = "cart.checkout"
)

// Catalog is the read side of the product repository.
type Catalog interface {
	FindActive(ctx context.Context, id string) (*product.Product, error)
}

// OrderPlacer creates orders; satisfied by apporder.CreateOrderUseCase.
type OrderPlacer interface {
	Execute(ctx context.Context, cmd apporder.CreateOrderInput) (*domorder.Order, error)
}

type Service struct {
	store   domain.Store
	catalog Catalog
	orders  OrderPlacer

	obs *application.Instruments
}

func NewService(store domain.Store, catalog Catalog, orders OrderPlacer, tel observability.Observability) *Service {
	return &Service{
		store:   store,
		catalog: catalog,
		orders:  orders,
		obs:     application.NewInstruments(tel, cartService),
	}
}

// Get returns the owner's cart, creating an empty one on first access.
func (s *Service) Get(ctx context.Context, owner domain.Owner) (_ *View, err error) {
	ctx, run := s.begin(ctx, useCaseGet, "GetCart", owner)
	defer func() { run.End(err) }()

	c, err := s.store.GetOrCreate(ctx, owner)
	if err != nil {
		run.Fail("CART_LOAD_FAILED")
		return nil, err
	}
	return enrich(ctx, s.catalog, c)
}

func (s *Service) Summary(ctx context.Context, owner domain.Owner) (Summary, error) {
	v, err := s.Get(ctx, owner)
	if err != nil {
		return Summary{}, err
	}
	return v.Summary(), nil
}

// AddItem adds quantity of productID, summing with an existing line. The
// combined quantity must fit in the current stock.
func (s *Service) AddItem(ctx context.Context, owner domain.Owner, productID string, quantity int) (_ *View, err error) {
	ctx, run := s.begin(ctx, useCaseAdd, "AddCartItem", owner,
		attribute.String("product.id", productID),
		attribute.Int("product.quantity", quantity),
	)
	run.Annotate(observability.F("product_id", productID), observability.F("quantity", quantity))
	defer func() { run.End(err) }()

	if quantity <= 0 {
		run.Fail("QUANTITY_INVALID")
		return nil, domain.ErrInvalidQuantity
	}
	p, err := s.catalog.FindActive(ctx, productID)
	if err != nil {
		run.Fail("PRODUCT_NOT_FOUND")
		return nil, err
	}

	c, err := s.store.Mutate(ctx, owner, func(c *domain.Cart) error {
		existing := 0
		if l, ok := c.Line(productID); ok {
			existing = l.Quantity
		}
		if err := p.CheckAvailable(existing + quantity); err != nil {
			return err
		}
		return c.Add(productID, quantity, p.Price)
	})
	if err != nil {
		run.Fail(failureStatus(err))
		return nil, err
	}
	return enrich(ctx, s.catalog, c)
}

// UpdateItem sets the absolute quantity of an existing line; zero removes it.
func (s *Service) UpdateItem(ctx context.Context, owner domain.Owner, productID string, quantity int) (_ *View, err error) {
	ctx, run := s.begin(ctx, useCaseUpdate, "UpdateCartItem", owner,
		attribute.String("product.id", productID),
		attribute.Int("product.quantity", quantity),
	)
	run.Annotate(observability.F("product_id", productID), observability.F("quantity", quantity))
	defer func() { run.End(err) }()

	if quantity < 0 {
		run.Fail("QUANTITY_INVALID")
		return nil, domain.ErrInvalidQuantity
	}

	var p *product.Product
	if quantity > 0 {
		p, err = s.catalog.FindActive(ctx, productID)
		if err != nil {
			run.Fail("PRODUCT_NOT_FOUND")
			return nil, err
		}
	}

	c, err := s.store.Mutate(ctx, owner, func(c *domain.Cart) error {
		if _, ok := c.Line(productID); !ok {
			return domain.ErrItemNotFound
		}
		if p != nil {
			if err := p.CheckAvailable(quantity); err != nil {
				return err
			}
		}
		return c.SetQuantity(productID, quantity)
	})
	if err != nil {
		run.Fail(failureStatus(err))
		return nil, err
	}
	return enrich(ctx, s.catalog, c)
}

// RemoveItem drops the line for productID if present.
func (s *Service) RemoveItem(ctx context.Context, owner domain.Owner, productID string) (_ *View, err error) {
	ctx, run := s.begin(ctx, useCaseRemove, "RemoveCartItem", owner, attribute.String("product.id", productID))
	run.Annotate(observability.F("product_id", productID))
	defer func() { run.End(err) }()

	c, err := s.store.Mutate(ctx, owner, func(c *domain.Cart) error {
		if !c.Remove(productID) {
			run.Mark("NOT_IN_CART")
		}
		return nil
	})
	if err != nil {
		run.Fail("CART_SAVE_FAILED")
		return nil, err
	}
	return enrich(ctx, s.catalog, c)
}

func (s *Service) Clear(ctx context.Context, owner domain.Owner) (_ *View, err error) {
	ctx, run := s.begin(ctx, useCaseClear, "ClearCart", owner)
	defer func() { run.End(err) }()

	c, err := s.store.Mutate(ctx, owner, func(c *domain.Cart) error {
		c.Clear()
		return nil
	})
	if err != nil {
		run.Fail("CART_SAVE_FAILED")
		return nil, err
	}
	return enrich(ctx, s.catalog, c)
}

// Merge folds the anonymous cart of sessionID into the cart of userID and
// deletes the anonymous cart. Stock is not re-checked. A missing or empty
// anonymous cart leaves the user cart as it is.
func (s *Service) Merge(ctx context.Context, sessionID, userID string) (_ *View, err error) {
	into := domain.UserOwner(userID)
	ctx, run := s.begin(ctx, useCaseMerge, "MergeCart", into)
	defer func() { run.End(err) }()

	if userID == "" {
		run.Fail("OWNER_INVALID")
		return nil, domain.ErrInvalidOwner
	}
	if sessionID == "" {
		run.Mark("NO_SESSION")
		c, err := s.store.GetOrCreate(ctx, into)
		if err != nil {
			return nil, err
		}
		return enrich(ctx, s.catalog, c)
	}

	c, merged, err := s.store.Merge(ctx, domain.SessionOwner(sessionID), into)
	if err != nil {
		run.Fail("CART_MERGE_FAILED")
		return nil, err
	}
	if !merged {
		run.Mark("NOTHING_TO_MERGE")
	}
	run.Annotate(observability.F("merged", merged))
	return enrich(ctx, s.catalog, c)
}

type CheckoutInput struct {
	Owner           domain.Owner
	GuestEmail      string
	ShippingAddress string
	PaymentMethod   payment.Method
	IdempotencyKey  string
}

// Checkout places an order for the priced view of the cart and clears the
// cart once the order is committed.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (_ *domorder.Order, err error) {
	ctx, run := s.begin(ctx, useCaseCheckout, "Checkout", in.Owner)
	defer func() { run.End(err) }()

	if s.orders == nil {
		run.Fail("CHECKOUT_DISABLED")
		return nil, errors.New("cart: checkout is not configured")
	}

	cmd := apporder.CreateOrderInput{
		IdempotencyKey:  in.IdempotencyKey,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
	}
	if in.Owner.IsUser() {
		cmd.UserID = in.Owner.UserID
	} else {
		cmd.GuestEmail = in.GuestEmail
	}

	c, err := s.store.Find(ctx, in.Owner)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c = nil
	case err != nil:
		run.Fail("CART_LOAD_FAILED")
		return nil, err
	}
	var v *View
	if c != nil {
		if v, err = enrich(ctx, s.catalog, c); err != nil {
			run.Fail("CART_LOAD_FAILED")
			return nil, err
		}
	}
	if v == nil || len(v.Items) == 0 {
		// The cart is gone after a successful checkout; a retry carrying the
		// same key still resolves to that order.
		if in.IdempotencyKey == "" {
			run.Fail("CART_EMPTY")
			return nil, domorder.ErrNoItems
		}
		o, err := s.orders.Execute(ctx, cmd)
		if err != nil {
			run.Fail("CART_EMPTY")
			return nil, err
		}
		run.Mark("IDEMPOTENT_REPLAY")
		run.Annotate(observability.F("order_id", o.ID))
		return o, nil
	}

	cmd.Items = make([]apporder.LineInput, 0, len(v.Items))
	for _, it := range v.Items {
		cmd.Items = append(cmd.Items, apporder.LineInput{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price})
	}

	o, err := s.orders.Execute(ctx, cmd)
	if err != nil {
		run.Fail("ORDER_FAILED")
		return nil, err
	}

	if err := s.store.Delete(ctx, in.Owner); err != nil {
		// The order is already committed; only the cart is left stale.
		run.Mark("CART_CLEAR_FAILED")
		run.Logger().Warn("cart_clear_failed",
			observability.F("order_id", o.ID),
			observability.F("error", err.Error()),
		)
	}
	run.Annotate(observability.F("order_id", o.ID))
	return o, nil
}

func (s *Service) begin(ctx context.Context, useCase, span string, owner domain.Owner, attrs ...attribute.KeyValue) (context.Context, *application.Run) {
	key, _ := owner.Key()
	attrs = append(attrs, attribute.Bool("cart.user", owner.IsUser()))
	ctx, run := s.obs.Begin(ctx, useCase, span, attrs...)
	run.Annotate(observability.F("cart_key", key))
	return ctx, run
}

func failureStatus(err error) string {
	switch {
	case errors.Is(err, product.ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, domain.ErrItemNotFound):
		return "ITEM_NOT_FOUND"
	case errors.Is(err, domain.ErrInvalidOwner):
		return "OWNER_INVALID"
	default:
		return "CART_SAVE_FAILED"
	}
}

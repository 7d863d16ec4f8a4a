package cart

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/minishop-commerce/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/minishop-commerce/internal/application/order"
	domain "github.com/Zhima-Mochi/minishop-commerce/internal/domain/cart"
	domorder "github.com/Zhima-Mochi/minishop-commerce/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-commerce/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-commerce/internal/infrastructure/memory"
)

type harness struct {
	svc      *Service
	carts    *memory.CartStore
	products *memory.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	for _, p := range []*product.Product{
		{ID: "p1", Name: "Mug", Price: 1000, StockQuantity: 10, IsActive: true},
		{ID: "p2", Name: "Tee", Price: 2500, StockQuantity: 5, IsActive: true},
		{ID: "p3", Name: "Poster", Price: 300, StockQuantity: 2, IsActive: true},
	} {
		require.NoError(t, store.Products().Put(ctx, p))
	}
	guard := inventory.NewGuard(store.Products(), nil)
	orders := apporder.NewCreateOrderUseCase(
		store.Orders(), store, memory.NewUserDirectory("u1"),
		func(repo product.Repository) apporder.StockGuard { return guard.WithRepository(repo) },
		id.UUID{}, nil, nil,
	)
	carts := memory.NewCartStore()
	return &harness{
		svc:      NewService(carts, store.Products(), orders, nil),
		carts:    carts,
		products: store,
	}
}

func (h *harness) setActive(t *testing.T, productID string, active bool) {
	t.Helper()
	p, err := h.products.Products().FindActive(context.Background(), productID)
	require.NoError(t, err)
	p.IsActive = active
	require.NoError(t, h.products.Products().Put(context.Background(), p))
}

func quantities(v *View) map[string]int {
	out := make(map[string]int, len(v.Items))
	for _, it := range v.Items {
		out[it.ProductID] = it.Quantity
	}
	return out
}

func TestGetCreatesEmptyCart(t *testing.T) {
	h := newHarness(t)

	v, err := h.svc.Get(context.Background(), domain.SessionOwner("s1"))
	require.NoError(t, err)
	assert.Empty(t, v.Items)
	assert.Zero(t, v.Total)
	assert.Zero(t, v.ItemCount)

	_, err = h.svc.Get(context.Background(), domain.Owner{})
	assert.ErrorIs(t, err, domain.ErrInvalidOwner)
}

func TestAddItemSumsQuantities(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := domain.UserOwner("u1")

	_, err := h.svc.AddItem(ctx, owner, "p1", 2)
	require.NoError(t, err)
	v, err := h.svc.AddItem(ctx, owner, "p1", 3)
	require.NoError(t, err)

	require.Len(t, v.Items, 1)
	assert.Equal(t, 5, v.Items[0].Quantity)
	assert.Equal(t, int64(5000), v.Items[0].Subtotal)
	assert.Equal(t, int64(5000), v.Total)
	assert.Equal(t, 5, v.ItemCount)
}

func TestAddItemValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := domain.SessionOwner("s1")

	_, err := h.svc.AddItem(ctx, owner, "p1", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = h.svc.AddItem(ctx, owner, "nope", 1)
	assert.ErrorIs(t, err, product.ErrNotFound)

	_, err = h.svc.AddItem(ctx, owner, "p3", 2)
	require.NoError(t, err)
	_, err = h.svc.AddItem(ctx, owner, "p3", 1)
	var stockErr *product.StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 3, stockErr.Requested)

	v, err := h.svc.Get(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p3": 2}, quantities(v))
}

func TestUpdateItem(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := domain.SessionOwner("s1")
	_, err := h.svc.AddItem(ctx, owner, "p1", 2)
	require.NoError(t, err)

	v, err := h.svc.UpdateItem(ctx, owner, "p1", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, v.Items[0].Quantity)

	_, err = h.svc.UpdateItem(ctx, owner, "p1", 11)
	assert.ErrorIs(t, err, product.ErrInsufficientStock)

	_, err = h.svc.UpdateItem(ctx, owner, "p2", 1)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)

	_, err = h.svc.UpdateItem(ctx, owner, "p1", -1)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	v, err = h.svc.UpdateItem(ctx, owner, "p1", 0)
	require.NoError(t, err)
	assert.Empty(t, v.Items)
}

func TestRemoveAndClear(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := domain.UserOwner("u1")
	_, err := h.svc.AddItem(ctx, owner, "p1", 1)
	require.NoError(t, err)
	_, err = h.svc.AddItem(ctx, owner, "p2", 1)
	require.NoError(t, err)

	v, err := h.svc.RemoveItem(ctx, owner, "p1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p2": 1}, quantities(v))

	_, err = h.svc.RemoveItem(ctx, owner, "p1")
	require.NoError(t, err)

	v, err = h.svc.Clear(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, v.Items)
}

func TestViewUsesLivePricesAndHidesInactiveProducts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := domain.UserOwner("u1")
	_, err := h.svc.AddItem(ctx, owner, "p1", 2)
	require.NoError(t, err)
	_, err = h.svc.AddItem(ctx, owner, "p2", 1)
	require.NoError(t, err)

	p, err := h.products.Products().FindActive(ctx, "p1")
	require.NoError(t, err)
	p.Price = 1200
	require.NoError(t, h.products.Products().Put(ctx, p))
	h.setActive(t, "p2", false)

	v, err := h.svc.Get(ctx, owner)
	require.NoError(t, err)
	require.Len(t, v.Items, 1)
	assert.Equal(t, int64(1200), v.Items[0].Price)
	assert.Equal(t, int64(2400), v.Total)
	assert.Equal(t, 2, v.ItemCount)

	stored, err := h.carts.Find(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 2)
	line, _ := stored.Line("p1")
	assert.Equal(t, int64(1000), line.UnitPrice)

	sum, err := h.svc.Summary(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, Summary{ItemCount: 2, Total: 2400}, sum)
}

func TestMerge(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	anon := domain.SessionOwner("s1")
	user := domain.UserOwner("u1")

	_, err := h.svc.AddItem(ctx, anon, "p1", 2)
	require.NoError(t, err)
	_, err = h.svc.AddItem(ctx, user, "p1", 1)
	require.NoError(t, err)
	_, err = h.svc.AddItem(ctx, user, "p2", 3)
	require.NoError(t, err)

	v, err := h.svc.Merge(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p1": 3, "p2": 3}, quantities(v))

	_, err = h.carts.Find(ctx, anon)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	v, err = h.svc.Merge(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p1": 3, "p2": 3}, quantities(v))
}

func TestMergeSkipsStockCheck(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.AddItem(ctx, domain.SessionOwner("s1"), "p3", 2)
	require.NoError(t, err)
	_, err = h.svc.AddItem(ctx, domain.UserOwner("u1"), "p3", 2)
	require.NoError(t, err)

	v, err := h.svc.Merge(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p3": 4}, quantities(v))
}

func TestMergeWithoutSessionReturnsUserCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.AddItem(ctx, domain.UserOwner("u1"), "p1", 1)
	require.NoError(t, err)

	v, err := h.svc.Merge(ctx, "", "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p1": 1}, quantities(v))

	v, err = h.svc.Merge(ctx, "never-used", "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p1": 1}, quantities(v))
}

func TestCheckoutPlacesOrderAndClearsCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := domain.UserOwner("u1")
	_, err := h.svc.AddItem(ctx, owner, "p1", 2)
	require.NoError(t, err)
	_, err = h.svc.AddItem(ctx, owner, "p2", 1)
	require.NoError(t, err)

	o, err := h.svc.Checkout(ctx, CheckoutInput{Owner: owner, PaymentMethod: payment.MethodPayPal, ShippingAddress: "1 Main St"})
	require.NoError(t, err)
	assert.Equal(t, int64(4500), o.TotalAmount)
	assert.Equal(t, "u1", o.UserID)

	_, err = h.carts.Find(ctx, owner)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	p, err := h.products.Products().FindActive(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 8, p.StockQuantity)

	_, err = h.svc.Checkout(ctx, CheckoutInput{Owner: owner, PaymentMethod: payment.MethodPayPal})
	assert.ErrorIs(t, err, domorder.ErrNoItems)
}

func TestCheckoutGuestNeedsEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := domain.SessionOwner("s1")
	_, err := h.svc.AddItem(ctx, owner, "p1", 1)
	require.NoError(t, err)

	_, err = h.svc.Checkout(ctx, CheckoutInput{Owner: owner, PaymentMethod: payment.MethodCOD})
	require.ErrorIs(t, err, domorder.ErrInvalidOwner)

	_, err = h.carts.Find(ctx, owner)
	require.NoError(t, err)

	o, err := h.svc.Checkout(ctx, CheckoutInput{Owner: owner, GuestEmail: "g@example.com", PaymentMethod: payment.MethodCOD})
	require.NoError(t, err)
	assert.Equal(t, "g@example.com", o.GuestEmail)
}

func TestCheckoutRetryWithSameKeyReplaysOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := domain.UserOwner("u1")
	_, err := h.svc.AddItem(ctx, owner, "p1", 2)
	require.NoError(t, err)

	in := CheckoutInput{Owner: owner, ShippingAddress: "1 Main St", PaymentMethod: payment.MethodCOD, IdempotencyKey: "k1"}
	first, err := h.svc.Checkout(ctx, in)
	require.NoError(t, err)

	second, err := h.svc.Checkout(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	p, err := h.products.Products().FindActive(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 8, p.StockQuantity)

	in.IdempotencyKey = "k2"
	_, err = h.svc.Checkout(ctx, in)
	assert.ErrorIs(t, err, domorder.ErrNoItems)
}

func TestGetWithoutMutationReturnsSameView(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := domain.SessionOwner("s1")
	_, err := h.svc.AddItem(ctx, owner, "p1", 2)
	require.NoError(t, err)
	_, err = h.svc.AddItem(ctx, owner, "p2", 1)
	require.NoError(t, err)

	first, err := h.svc.Get(ctx, owner)
	require.NoError(t, err)
	second, err := h.svc.Get(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestConcurrentAddItemNeverExceedsStock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := domain.UserOwner("u1")

	var ok atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.svc.AddItem(ctx, owner, "p1", 1); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), ok.Load())
	v, err := h.svc.Get(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p1": 10}, quantities(v))
}

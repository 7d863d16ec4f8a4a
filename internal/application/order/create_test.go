package order

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/Zhima-Mochi/minishop-commerce/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/user"
)

func TestCreateOrderCommitsAggregate(t *testing.T) {
	f := newFixture(t)

	o, err := f.create.Execute(context.Background(), userOrder(
		LineInput{ProductID: "p1", Quantity: 2},
		LineInput{ProductID: "p2", Quantity: 1},
	))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Equal(t, int64(2*1000+2500), o.TotalAmount)
	assert.Equal(t, o.ItemsTotal(), o.TotalAmount)
	require.Len(t, o.Items, 2)
	require.NotNil(t, o.Payment)
	assert.Equal(t, payment.StatusPending, o.Payment.Status)
	assert.Equal(t, o.TotalAmount, o.Payment.Amount)
	assert.Equal(t, payment.MethodCreditCard, o.Payment.Method)

	assert.Equal(t, 8, f.stock(t, "p1"))
	assert.Equal(t, 4, f.stock(t, "p2"))
	assert.Equal(t, []string{"order.created"}, f.pub.names())
}

func TestCreateOrderPricing(t *testing.T) {
	t.Run("catalog price by default", func(t *testing.T) {
		f := newFixture(t)
		o, err := f.create.Execute(context.Background(), userOrder(LineInput{ProductID: "p1", Quantity: 1, Price: 1}))
		require.NoError(t, err)
		assert.Equal(t, int64(1000), o.Items[0].Price)
		assert.Equal(t, int64(1000), o.TotalAmount)
	})

	t.Run("client price when trusted", func(t *testing.T) {
		f := newFixture(t, WithClientPrices(true))
		o, err := f.create.Execute(context.Background(), userOrder(LineInput{ProductID: "p1", Quantity: 3, Price: 7}))
		require.NoError(t, err)
		assert.Equal(t, int64(7), o.Items[0].Price)
		assert.Equal(t, int64(21), o.TotalAmount)
	})
}

func TestCreateOrderForGuest(t *testing.T) {
	f := newFixture(t)

	o, err := f.create.Execute(context.Background(), CreateOrderInput{
		GuestEmail:    "guest@example.com",
		PaymentMethod: payment.MethodCOD,
		Items:         []LineInput{{ProductID: "p1", Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Empty(t, o.UserID)
	assert.Equal(t, "guest@example.com", o.GuestEmail)
}

func TestCreateOrderValidation(t *testing.T) {
	cases := []struct {
		name string
		cmd  CreateOrderInput
		want error
	}{
		{"no owner", CreateOrderInput{PaymentMethod: payment.MethodCOD, Items: []LineInput{{ProductID: "p1", Quantity: 1}}}, domain.ErrInvalidOwner},
		{"both owners", CreateOrderInput{UserID: "u1", GuestEmail: "a@b.c", PaymentMethod: payment.MethodCOD, Items: []LineInput{{ProductID: "p1", Quantity: 1}}}, domain.ErrInvalidOwner},
		{"no items", userOrder(), domain.ErrNoItems},
		{"zero quantity", userOrder(LineInput{ProductID: "p1", Quantity: 0}), domain.ErrInvalidQuantity},
		{"blank product", userOrder(LineInput{ProductID: "  ", Quantity: 1}), domain.ErrInvalidItem},
		{"unknown user", CreateOrderInput{UserID: "ghost", PaymentMethod: payment.MethodCOD, Items: []LineInput{{ProductID: "p1", Quantity: 1}}}, user.ErrNotFound},
		{"bad method", CreateOrderInput{UserID: "u1", PaymentMethod: "barter", Items: []LineInput{{ProductID: "p1", Quantity: 1}}}, payment.ErrInvalidMethod},
		{"missing product", userOrder(LineInput{ProductID: "nope", Quantity: 1}), product.ErrNotFound},
		{"inactive product", userOrder(LineInput{ProductID: "p3", Quantity: 1}), product.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.create.Execute(context.Background(), tc.cmd)
			require.ErrorIs(t, err, tc.want)
			assert.NotErrorIs(t, err, ErrRepository)
			assert.Zero(t, f.orderCount(t))
			assert.Equal(t, 10, f.stock(t, "p1"))
		})
	}
}

func TestCreateOrderInsufficientStockLeavesStockUntouched(t *testing.T) {
	f := newFixture(t)

	_, err := f.create.Execute(context.Background(), userOrder(
		LineInput{ProductID: "p1", Quantity: 2},
		LineInput{ProductID: "p2", Quantity: 6},
	))
	var stockErr *product.StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "p2", stockErr.ProductID)
	assert.Equal(t, 5, stockErr.Available)
	assert.Equal(t, 6, stockErr.Requested)

	assert.Equal(t, 10, f.stock(t, "p1"))
	assert.Equal(t, 5, f.stock(t, "p2"))
	assert.Zero(t, f.orderCount(t))
	assert.Empty(t, f.pub.names())
}

func TestCreateOrderChecksCombinedQuantityOfDuplicateLines(t *testing.T) {
	f := newFixture(t)

	_, err := f.create.Execute(context.Background(), userOrder(
		LineInput{ProductID: "p2", Quantity: 3},
		LineInput{ProductID: "p2", Quantity: 3},
	))
	var stockErr *product.StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 6, stockErr.Requested)
	assert.Equal(t, 5, f.stock(t, "p2"))
}

type failingGuard struct {
	inner   StockGuard
	failOn  string
	failure error
}

func (g failingGuard) Reserve(ctx context.Context, productID string, quantity int) (*product.Product, error) {
	if productID == g.failOn {
		return nil, g.failure
	}
	return g.inner.Reserve(ctx, productID, quantity)
}

func (g failingGuard) Release(ctx context.Context, productID string, quantity int) error {
	return g.inner.Release(ctx, productID, quantity)
}

func TestCreateOrderRollsBackOnBackendFailure(t *testing.T) {
	var base *fixture
	backend := errors.New("disk on fire")
	base = newFixtureWithGuard(t, func(repo product.Repository) StockGuard {
		return failingGuard{inner: newGuardFor(repo), failOn: "p2", failure: backend}
	})

	_, err := base.create.Execute(context.Background(), userOrder(
		LineInput{ProductID: "p1", Quantity: 2},
		LineInput{ProductID: "p2", Quantity: 1},
	))
	require.ErrorIs(t, err, ErrRepository)
	require.ErrorIs(t, err, backend)

	assert.Equal(t, 10, base.stock(t, "p1"))
	assert.Equal(t, 5, base.stock(t, "p2"))
	assert.Zero(t, base.orderCount(t))
}

func TestCreateOrderIdempotentReplay(t *testing.T) {
	f := newFixture(t)
	cmd := userOrder(LineInput{ProductID: "p1", Quantity: 2})
	cmd.IdempotencyKey = "checkout-1"

	first, err := f.create.Execute(context.Background(), cmd)
	require.NoError(t, err)
	second, err := f.create.Execute(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 8, f.stock(t, "p1"))
	assert.Equal(t, 1, f.orderCount(t))

	other := cmd
	other.UserID = "u2"
	third, err := f.create.Execute(context.Background(), other)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestCreateOrderConcurrentNeverOversells(t *testing.T) {
	f := newFixture(t)

	var placed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.create.Execute(context.Background(), userOrder(LineInput{ProductID: "p1", Quantity: 1}))
			if err == nil {
				placed.Add(1)
				return
			}
			assert.ErrorIs(t, err, product.ErrInsufficientStock)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), placed.Load())
	assert.Zero(t, f.stock(t, "p1"))
	assert.Equal(t, 10, f.orderCount(t))
}

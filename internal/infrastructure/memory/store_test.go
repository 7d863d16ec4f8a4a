package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/txn"
)

func seedProduct(t *testing.T, s *Store, id string, stock int, active bool) {
	t.Helper()
	require.NoError(t, s.Products().Put(context.Background(), &product.Product{
		ID: id, Name: id, Price: 1000, StockQuantity: stock, IsActive: active,
	}))
}

func TestProductRepositoryDecrementRejectsOversell(t *testing.T) {
	s := NewStore()
	seedProduct(t, s, "p1", 3, true)
	repo := s.Products()
	ctx := context.Background()

	_, err := repo.Decrement(ctx, "p1", 4)
	var stockErr *product.StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 3, stockErr.Available)
	assert.Equal(t, 4, stockErr.Requested)
	assert.ErrorIs(t, err, product.ErrInsufficientStock)

	p, err := repo.FindActive(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.StockQuantity)

	p, err = repo.Decrement(ctx, "p1", 3)
	require.NoError(t, err)
	assert.Equal(t, 0, p.StockQuantity)
}

func TestProductRepositoryHidesInactiveProducts(t *testing.T) {
	s := NewStore()
	seedProduct(t, s, "p1", 3, false)
	ctx := context.Background()

	_, err := s.Products().FindActive(ctx, "p1")
	assert.ErrorIs(t, err, product.ErrNotFound)
	_, err = s.Products().Decrement(ctx, "p1", 1)
	assert.ErrorIs(t, err, product.ErrNotFound)

	p, err := s.Products().Increment(ctx, "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, 5, p.StockQuantity)
}

func TestProductRepositoryConcurrentDecrementNeverOversells(t *testing.T) {
	s := NewStore()
	seedProduct(t, s, "p1", 25, true)
	repo := s.Products()

	var reserved atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Decrement(context.Background(), "p1", 1); err == nil {
				reserved.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(25), reserved.Load())
	p, err := repo.FindActive(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.StockQuantity)
}

func TestStoreWithinTxRollsBackOnError(t *testing.T) {
	s := NewStore()
	seedProduct(t, s, "p1", 5, true)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		o := &order.Order{ID: "o1", UserID: "u1", Status: order.StatusPending, TotalAmount: 2000}
		require.NoError(t, tx.Orders().InsertHeader(ctx, o))
		require.NoError(t, tx.Orders().InsertItem(ctx, &order.Item{ID: "i1", OrderID: "o1", ProductID: "p1", Quantity: 2, Price: 1000}))
		_, err := tx.Products().Decrement(ctx, "p1", 2)
		require.NoError(t, err)

		staged, err := tx.Orders().Get(ctx, "o1")
		require.NoError(t, err)
		assert.Len(t, staged.Items, 1)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Orders().Get(ctx, "o1")
	assert.ErrorIs(t, err, order.ErrNotFound)
	p, err := s.Products().FindActive(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.StockQuantity)
}

func TestStoreWithinTxCommitsAggregate(t *testing.T) {
	s := NewStore()
	seedProduct(t, s, "p1", 5, true)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		o := &order.Order{ID: "o1", UserID: "u1", Status: order.StatusPending, TotalAmount: 2000, IdempotencyKey: "k1"}
		if err := tx.Orders().InsertHeader(ctx, o); err != nil {
			return err
		}
		if err := tx.Orders().InsertItem(ctx, &order.Item{ID: "i1", OrderID: "o1", ProductID: "p1", Quantity: 2, Price: 1000}); err != nil {
			return err
		}
		if _, err := tx.Products().Decrement(ctx, "p1", 2); err != nil {
			return err
		}
		return tx.Orders().InsertPayment(ctx, payment.New("pay1", "o1", payment.MethodCOD, 2000))
	})
	require.NoError(t, err)

	got, err := s.Orders().Get(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)
	require.NotNil(t, got.Payment)
	assert.Equal(t, payment.StatusPending, got.Payment.Status)

	replay, err := s.Orders().FindByIdempotency(ctx, "user:u1", "k1")
	require.NoError(t, err)
	assert.Equal(t, "o1", replay.ID)

	_, err = s.Orders().FindByIdempotency(ctx, "user:u2", "k1")
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestOrderRepositoryListAndStats(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := s.Orders()

	for i, st := range []order.Status{order.StatusPending, order.StatusShipped, order.StatusCancelled} {
		o := &order.Order{ID: string(rune('a' + i)), UserID: "u1", Status: st, TotalAmount: 100}
		require.NoError(t, repo.InsertHeader(ctx, o))
	}
	require.NoError(t, repo.InsertHeader(ctx, &order.Order{ID: "z", UserID: "u2", Status: order.StatusDelivered, TotalAmount: 50}))

	page, err := repo.List(ctx, order.ListQuery{Page: 1, Limit: 2, UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Orders, 2)

	page, err = repo.List(ctx, order.ListQuery{Page: 5, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Empty(t, page.Orders)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalOrders)
	assert.Equal(t, int64(250), stats.TotalRevenue)
	assert.Equal(t, 1, stats.CancelledOrders)
	assert.Equal(t, 1, stats.DeliveredOrders)
}

func TestOrderRepositoryUpdateStatusComparesCurrentStatus(t *testing.T) {
	s := NewStore()
	repo := s.Orders()
	ctx := context.Background()
	require.NoError(t, repo.InsertHeader(ctx, &order.Order{ID: "o1", UserID: "u1", Status: order.StatusPending}))

	require.NoError(t, repo.UpdateStatus(ctx, "o1", order.StatusPending, order.StatusCancelled))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, "o1", order.StatusPending, order.StatusShipped), order.ErrInvalidTransition)
	assert.ErrorIs(t, repo.UpdateStatus(ctx, "nope", order.StatusPending, order.StatusShipped), order.ErrNotFound)

	got, err := repo.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, got.Status)
}

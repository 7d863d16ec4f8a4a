package inventory

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/Zhima-Mochi/minishop-commerce/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-commerce/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/minishop-commerce/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-commerce/internal/infrastructure/observability/prometrics"
)

func newGuard(t *testing.T, stock int) (*Guard, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.Products().Put(context.Background(), &domain.Product{
		ID: "p1", Name: "Widget", Price: 1500, StockQuantity: stock, IsActive: true,
	}))
	return NewGuard(store.Products(), nil), store
}

func TestGuardReserveDecrementsStock(t *testing.T) {
	g, _ := newGuard(t, 5)

	p, err := g.Reserve(context.Background(), "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, p.StockQuantity)
}

func TestGuardReserveInsufficientStock(t *testing.T) {
	g, store := newGuard(t, 2)

	_, err := g.Reserve(context.Background(), "p1", 3)
	var stockErr *domain.StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 3, stockErr.Requested)

	p, err := store.Products().FindActive(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.StockQuantity)
}

func TestGuardReserveRejectsBadInput(t *testing.T) {
	g, _ := newGuard(t, 2)

	_, err := g.Reserve(context.Background(), "p1", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = g.Reserve(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGuardReleaseMissingProductIsNotAnError(t *testing.T) {
	g, _ := newGuard(t, 2)

	assert.NoError(t, g.Release(context.Background(), "missing", 1))
}

func TestGuardReleaseRestocks(t *testing.T) {
	g, store := newGuard(t, 2)

	require.NoError(t, g.Release(context.Background(), "p1", 3))
	p, err := store.Products().FindActive(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.StockQuantity)
}

func TestGuardConcurrentReservationsNeverExceedStock(t *testing.T) {
	const stock = 10
	g, store := newGuard(t, stock)

	var ok atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.Reserve(context.Background(), "p1", 1); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(stock), ok.Load())
	p, err := store.Products().FindActive(context.Background(), "p1")
	require.NoError(t, err)
	assert.Zero(t, p.StockQuantity)
}

func TestGuardCountsMovedUnits(t *testing.T) {
	reg := prometheus.NewRegistry()
	counters, histograms := infraobs.Instruments(prometrics.New(reg, "", ""))
	store := memory.NewStore()
	require.NoError(t, store.Products().Put(context.Background(), &domain.Product{
		ID: "p1", Name: "Widget", Price: 1500, StockQuantity: 5, IsActive: true,
	}))
	g := NewGuard(store.Products(), infraobs.New(nil, nil, counters, histograms))

	_, err := g.Reserve(context.Background(), "p1", 3)
	require.NoError(t, err)
	_, err = g.Reserve(context.Background(), "p1", 9)
	require.Error(t, err)
	require.NoError(t, g.Release(context.Background(), "p1", 1))

	expected := `
# HELP inventory_stock_units_total Stock units reserved or released by the inventory guard.
# TYPE inventory_stock_units_total counter
inventory_stock_units_total{direction="released"} 1
inventory_stock_units_total{direction="reserved"} 3
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "inventory_stock_units_total"))
}

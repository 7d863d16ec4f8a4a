package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-commerce/internal/application"
	domain "github.com/Zhima-Mochi/minishop-commerce/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-commerce/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	inventoryService   = "inventory-service"
	useCaseReserve     = "inventory.reserve"
	useCaseRelease     = "inventory.release"
	reserveSpanName    = "ReserveStock"
	releaseSpanName    = "ReleaseStock"
	statusNotFound     = "PRODUCT_NOT_FOUND"
	statusInsufficient = "INSUFFICIENT_STOCK"
)

// Guard is the only path through which product stock changes. The check and
// the decrement happen in a single repository call so concurrent reservations
// can never drive stock below zero.
type Guard struct {
	repo  domain.Repository
	obs   *application.Instruments
	units observability.Counter // inventory_stock_units_total{direction}
}

func NewGuard(repo domain.Repository, tel observability.Observability) *Guard {
	_, _, metrics := observability.Resolve(tel)
	return &Guard{
		repo:  repo,
		obs:   application.NewInstruments(tel, inventoryService),
		units: metrics.Counter(observability.MStockUnits),
	}
}

// WithRepository returns a guard bound to repo, usually a transaction-scoped
// repository, sharing the receiver's instruments.
func (g *Guard) WithRepository(repo domain.Repository) *Guard {
	return &Guard{repo: repo, obs: g.obs, units: g.units}
}

// Reserve decrements stock by quantity and returns the product after the move.
func (g *Guard) Reserve(ctx context.Context, productID string, quantity int) (_ *domain.Product, err error) {
	ctx, run := g.obs.Begin(ctx, useCaseReserve, reserveSpanName,
		attribute.String("product.id", productID),
		attribute.Int("product.quantity", quantity),
	)
	run.Annotate(
		observability.F("product_id", productID),
		observability.F("quantity", quantity),
	)
	defer func() { run.End(err) }()

	if quantity <= 0 {
		run.Fail("QUANTITY_INVALID")
		return nil, domain.ErrInvalidQuantity
	}

	p, err := g.repo.Decrement(ctx, productID, quantity)
	if err != nil {
		var stockErr *domain.StockError
		switch {
		case errors.As(err, &stockErr):
			run.Fail(statusInsufficient)
			run.Annotate(observability.F("available", stockErr.Available))
		case errors.Is(err, domain.ErrNotFound):
			run.Fail(statusNotFound)
		default:
			run.Fail("DECREMENT_FAILED")
		}
		return nil, fmt.Errorf("inventory: reserve %s: %w", productID, err)
	}

	g.units.Add(float64(quantity), observability.L("direction", "reserved"))
	run.Span().AddEvent("inventory.reserved",
		trace.WithAttributes(
			attribute.String("product.id", productID),
			attribute.Int("product.stock", p.StockQuantity),
		),
	)
	return p, nil
}

// Release returns quantity to stock. A product that no longer exists is
// logged and skipped so cancellations can still complete.
func (g *Guard) Release(ctx context.Context, productID string, quantity int) (err error) {
	ctx, run := g.obs.Begin(ctx, useCaseRelease, releaseSpanName,
		attribute.String("product.id", productID),
		attribute.Int("product.quantity", quantity),
	)
	run.Annotate(
		observability.F("product_id", productID),
		observability.F("quantity", quantity),
	)
	defer func() { run.End(err) }()

	if quantity <= 0 {
		run.Fail("QUANTITY_INVALID")
		return domain.ErrInvalidQuantity
	}

	if _, err := g.repo.Increment(ctx, productID, quantity); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			run.Mark(statusNotFound)
			run.Logger().Warn("inventory_release_missing_product",
				observability.F("product_id", productID),
				observability.F("quantity", quantity),
			)
			return nil
		}
		run.Fail("INCREMENT_FAILED")
		return fmt.Errorf("inventory: release %s: %w", productID, err)
	}
	g.units.Add(float64(quantity), observability.L("direction", "released"))
	return nil
}

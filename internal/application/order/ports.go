package order

import (
	"context"

	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/product"
)

type IDGenerator interface {
	NewID() string
}

// StockGuard reserves and releases stock against a specific repository.
type StockGuard interface {
	Reserve(ctx context.Context, productID string, quantity int) (*product.Product, error)
	Release(ctx context.Context, productID string, quantity int) error
}

// GuardFactory binds a stock guard to a transaction-scoped product repository.
type GuardFactory func(repo product.Repository) StockGuard

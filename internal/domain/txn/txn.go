// Package txn describes the unit of work spanning orders and catalog stock.
package txn

import (
	"context"

	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/product"
)

// Tx exposes repositories bound to one transaction.
type Tx interface {
	Orders() order.Repository
	Products() product.Repository
}

// Manager runs fn atomically: every write made through tx is committed when
// fn returns nil and discarded otherwise.
type Manager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

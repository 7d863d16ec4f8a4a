package product

import "context"

// Repository is the catalog collaborator consumed by carts, orders and the
// inventory guard. Decrement and Increment must be atomic per product.
type Repository interface {
	// FindActive returns ErrNotFound for missing and inactive products alike.
	FindActive(ctx context.Context, id string) (*Product, error)
	// Decrement removes quantity if the product is active and has enough stock,
	// returning the post-decrement product or a *StockError.
	Decrement(ctx context.Context, id string, quantity int) (*Product, error)
	// Increment adds quantity regardless of the active flag.
	Increment(ctx context.Context, id string, quantity int) (*Product, error)
}

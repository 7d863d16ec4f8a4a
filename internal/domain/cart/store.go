package cart

import "context"

// Store keeps carts keyed by owner with single-writer-per-key semantics:
// concurrent Mutate calls for the same owner are serialised.
type Store interface {
	// Find returns ErrNotFound when the owner has no cart.
	Find(ctx context.Context, owner Owner) (*Cart, error)
	// GetOrCreate returns the owner's cart, storing an empty one on first access.
	GetOrCreate(ctx context.Context, owner Owner) (*Cart, error)
	// Mutate applies fn to the owner's cart (created if missing) and stores the
	// result. Nothing is written when fn fails.
	Mutate(ctx context.Context, owner Owner, fn func(c *Cart) error) (*Cart, error)
	Delete(ctx context.Context, owner Owner) error
	// Merge atomically folds the cart of from into the cart of into and deletes
	// the cart of from. merged is false when from had no cart or an empty one,
	// in which case into is returned unchanged.
	Merge(ctx context.Context, from, into Owner) (result *Cart, merged bool, err error)
}

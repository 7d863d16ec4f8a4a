package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	domain "github.com/Zhima-Mochi/minishop-commerce/internal/domain/product"
)

// ProductRepository reads committed products and stages stock moves in the
// surrounding transaction, if any.
type ProductRepository struct {
	store *Store
	state *txState
}

// Put inserts or replaces a catalog product. Used for seeding.
func (r *ProductRepository) Put(ctx context.Context, p *domain.Product) error {
	_ = ctx
	if p == nil || p.ID == "" {
		return fmt.Errorf("product repository: id is required")
	}
	if p.StockQuantity < 0 {
		return domain.ErrInvalidQuantity
	}
	item := p.Clone()
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = time.Now().UTC()
	}
	write := func(st *txState) error {
		st.products[item.ID] = item
		return nil
	}
	if r.state != nil {
		return write(r.state)
	}
	return r.store.autocommit(write)
}

// List returns every product ordered by id.
func (r *ProductRepository) List(ctx context.Context) ([]*domain.Product, error) {
	_ = ctx

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*domain.Product, 0, len(r.store.products))
	for _, p := range r.store.products {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ProductRepository) FindActive(ctx context.Context, id string) (*domain.Product, error) {
	_ = ctx
	p, ok := r.lookup(r.state, id)
	if !ok || !p.IsActive {
		return nil, domain.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *ProductRepository) Decrement(ctx context.Context, id string, quantity int) (*domain.Product, error) {
	_ = ctx
	var out *domain.Product
	err := r.write(func(st *txState) error {
		p, ok := r.lookup(st, id)
		if !ok || !p.IsActive {
			return domain.ErrNotFound
		}
		next := p.Clone()
		if err := next.Deduct(quantity); err != nil {
			return err
		}
		st.products[id] = next
		out = next.Clone()
		return nil
	})
	return out, err
}

func (r *ProductRepository) Increment(ctx context.Context, id string, quantity int) (*domain.Product, error) {
	_ = ctx
	var out *domain.Product
	err := r.write(func(st *txState) error {
		p, ok := r.lookup(st, id)
		if !ok {
			return domain.ErrNotFound
		}
		next := p.Clone()
		if err := next.Restock(quantity); err != nil {
			return err
		}
		st.products[id] = next
		out = next.Clone()
		return nil
	})
	return out, err
}

func (r *ProductRepository) write(fn func(st *txState) error) error {
	if r.state != nil {
		return fn(r.state)
	}
	return r.store.autocommit(fn)
}

// lookup prefers the staged copy over the committed one.
func (r *ProductRepository) lookup(st *txState, id string) (*domain.Product, bool) {
	if st != nil {
		if p, ok := st.products[id]; ok {
			return p, true
		}
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	p, ok := r.store.products[id]
	return p, ok
}

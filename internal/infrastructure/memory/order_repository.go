package memory

import (
	"context"
	"fmt"
	"sort"

	domain "github.com/Zhima-Mochi/minishop-commerce/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/payment"
)

// OrderRepository stores whole order aggregates. Inside a transaction the
// header, items and payment are staged and become visible together on commit.
type OrderRepository struct {
	store *Store
	state *txState
}

func (r *OrderRepository) InsertHeader(ctx context.Context, o *domain.Order) error {
	_ = ctx
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	return r.write(func(st *txState) error {
		if _, exists := r.lookup(st, o.ID); exists {
			return domain.ErrConflict
		}
		if key := idempotencyKey(o); key != "" {
			if _, exists := r.lookupIdempotency(st, key); exists {
				return domain.ErrConflict
			}
			st.idempotency[key] = o.ID
		}
		header := o.Clone()
		header.Items = nil
		header.Payment = nil
		st.orders[o.ID] = header
		return nil
	})
}

func (r *OrderRepository) InsertItem(ctx context.Context, item *domain.Item) error {
	_ = ctx
	if item == nil || item.ID == "" {
		return fmt.Errorf("order repository: item id is required")
	}

	return r.write(func(st *txState) error {
		o, err := r.staged(st, item.OrderID)
		if err != nil {
			return err
		}
		for _, it := range o.Items {
			if it.ID == item.ID {
				return domain.ErrConflict
			}
		}
		o.Items = append(o.Items, *item)
		return nil
	})
}

func (r *OrderRepository) InsertPayment(ctx context.Context, p *payment.Payment) error {
	_ = ctx
	if p == nil || p.ID == "" {
		return fmt.Errorf("order repository: payment id is required")
	}

	return r.write(func(st *txState) error {
		o, err := r.staged(st, p.OrderID)
		if err != nil {
			return err
		}
		if o.Payment != nil {
			return domain.ErrConflict
		}
		o.Payment = p.Clone()
		return nil
	})
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx
	o, ok := r.lookup(r.state, id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *OrderRepository) FindByIdempotency(ctx context.Context, ownerKey, key string) (*domain.Order, error) {
	_ = ctx
	if key == "" {
		return nil, domain.ErrNotFound
	}
	id, ok := r.lookupIdempotency(r.state, ownerKey+"|"+key)
	if !ok {
		return nil, domain.ErrNotFound
	}
	o, found := r.lookup(r.state, id)
	if !found {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.Status) error {
	_ = ctx
	return r.write(func(st *txState) error {
		o, err := r.staged(st, id)
		if err != nil {
			return err
		}
		if o.Status != from {
			return fmt.Errorf("%w: status is %s, expected %s", domain.ErrInvalidTransition, o.Status, from)
		}
		o.Status = to
		return nil
	})
}

func (r *OrderRepository) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	_ = ctx
	if p == nil {
		return fmt.Errorf("order repository: payment is required")
	}
	return r.write(func(st *txState) error {
		o, err := r.staged(st, p.OrderID)
		if err != nil {
			return err
		}
		if o.Payment == nil || o.Payment.ID != p.ID {
			return domain.ErrNotFound
		}
		o.Payment = p.Clone()
		return nil
	})
}

func (r *OrderRepository) List(ctx context.Context, q domain.ListQuery) (domain.Page, error) {
	_ = ctx
	q = q.Normalize()

	all := r.snapshot()
	filtered := all[:0]
	for _, o := range all {
		if q.UserID != "" && o.UserID != q.UserID {
			continue
		}
		filtered = append(filtered, o)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].CreatedAt.Equal(filtered[j].CreatedAt) {
			return filtered[i].ID > filtered[j].ID
		}
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	page := domain.Page{Total: len(filtered), Page: q.Page, Limit: q.Limit, Orders: []*domain.Order{}}
	start := q.Offset()
	if start >= len(filtered) {
		return page, nil
	}
	end := start + q.Limit
	if end > len(filtered) {
		end = len(filtered)
	}
	page.Orders = append(page.Orders, filtered[start:end]...)
	return page, nil
}

func (r *OrderRepository) Stats(ctx context.Context) (domain.Stats, error) {
	_ = ctx
	var stats domain.Stats
	for _, o := range r.snapshot() {
		stats.Count(o)
	}
	return stats, nil
}

// snapshot clones every committed order.
func (r *OrderRepository) snapshot() []*domain.Order {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*domain.Order, 0, len(r.store.orders))
	for _, o := range r.store.orders {
		out = append(out, o.Clone())
	}
	return out
}

func (r *OrderRepository) write(fn func(st *txState) error) error {
	if r.state != nil {
		return fn(r.state)
	}
	return r.store.autocommit(fn)
}

// staged returns a writable copy of the order held in st, copying the
// committed aggregate into st on first touch.
func (r *OrderRepository) staged(st *txState, id string) (*domain.Order, error) {
	if o, ok := st.orders[id]; ok {
		return o, nil
	}
	o, ok := r.lookup(nil, id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := o.Clone()
	st.orders[id] = clone
	return clone, nil
}

func (r *OrderRepository) lookup(st *txState, id string) (*domain.Order, bool) {
	if st != nil {
		if o, ok := st.orders[id]; ok {
			return o, true
		}
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	o, ok := r.store.orders[id]
	return o, ok
}

func (r *OrderRepository) lookupIdempotency(st *txState, key string) (string, bool) {
	if st != nil {
		if id, ok := st.idempotency[key]; ok {
			return id, true
		}
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, ok := r.store.idempotency[key]
	return id, ok
}

func idempotencyKey(o *domain.Order) string {
	if o.IdempotencyKey == "" {
		return ""
	}
	return o.Owner().Key() + "|" + o.IdempotencyKey
}

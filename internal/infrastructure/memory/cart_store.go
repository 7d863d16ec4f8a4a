package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-commerce/internal/domain/cart"
)

// CartStore keeps carts in process. Each key has its own mutex so writers to
// one cart never block writers to another.
type CartStore struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart
	locks sync.Map // key -> *sync.Mutex
}

func NewCartStore() *CartStore {
	return &CartStore{carts: make(map[string]*domain.Cart)}
}

func (s *CartStore) Find(ctx context.Context, owner domain.Owner) (*domain.Cart, error) {
	_ = ctx
	key, err := owner.Key()
	if err != nil {
		return nil, err
	}
	c, ok := s.load(key)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (s *CartStore) GetOrCreate(ctx context.Context, owner domain.Owner) (*domain.Cart, error) {
	return s.Mutate(ctx, owner, func(*domain.Cart) error { return nil })
}

func (s *CartStore) Mutate(ctx context.Context, owner domain.Owner, fn func(c *domain.Cart) error) (*domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resolved, err := owner.Resolve()
	if err != nil {
		return nil, err
	}
	key, _ := resolved.Key()

	unlock := s.lock(key)
	defer unlock()

	c, ok := s.load(key)
	if !ok {
		c = domain.New(resolved)
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	s.store(key, c)
	return c.Clone(), nil
}

func (s *CartStore) Delete(ctx context.Context, owner domain.Owner) error {
	_ = ctx
	key, err := owner.Key()
	if err != nil {
		return err
	}

	unlock := s.lock(key)
	defer unlock()

	s.mu.Lock()
	delete(s.carts, key)
	s.mu.Unlock()
	return nil
}

func (s *CartStore) Merge(ctx context.Context, from, into domain.Owner) (*domain.Cart, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	fromKey, err := from.Key()
	if err != nil {
		return nil, false, err
	}
	intoOwner, err := into.Resolve()
	if err != nil {
		return nil, false, err
	}
	intoKey, _ := intoOwner.Key()

	// Lock both keys in a fixed order so concurrent merges cannot deadlock.
	first, second := fromKey, intoKey
	if second < first {
		first, second = second, first
	}
	unlockFirst := s.lock(first)
	defer unlockFirst()
	if second != first {
		unlockSecond := s.lock(second)
		defer unlockSecond()
	}

	target, ok := s.load(intoKey)
	if !ok {
		target = domain.New(intoOwner)
	}
	anon, ok := s.load(fromKey)
	if !ok || anon.IsEmpty() || fromKey == intoKey {
		s.store(intoKey, target)
		return target.Clone(), false, nil
	}

	target.Absorb(anon)

	s.mu.Lock()
	s.carts[intoKey] = target.Clone()
	delete(s.carts, fromKey)
	s.mu.Unlock()

	return target, true, nil
}

func (s *CartStore) lock(key string) func() {
	m, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *CartStore) load(key string) (*domain.Cart, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.carts[key]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

func (s *CartStore) store(key string, c *domain.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.carts[key] = c.Clone()
}

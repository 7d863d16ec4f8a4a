package memory

import (
	"context"
	"sync"

	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/txn"
)

// Store is an in-process catalog and order store with serialisable
// transactions: writers queue on txMu, stage their changes, and publish them
// under mu only on commit, so readers never observe a partial transaction.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	products    map[string]*product.Product
	orders      map[string]*order.Order
	idempotency map[string]string
}

func NewStore() *Store {
	return &Store{
		products:    make(map[string]*product.Product),
		orders:      make(map[string]*order.Order),
		idempotency: make(map[string]string),
	}
}

// Products returns a repository that commits each write on its own.
func (s *Store) Products() *ProductRepository {
	return &ProductRepository{store: s}
}

// Orders returns a repository that commits each write on its own.
func (s *Store) Orders() *OrderRepository {
	return &OrderRepository{store: s}
}

// WithinTx implements txn.Manager.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx txn.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	st := newTxState()
	if err := fn(ctx, &memTx{store: s, state: st}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.commit(st)
	return nil
}

// autocommit runs a single repository write as its own transaction.
func (s *Store) autocommit(fn func(st *txState) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	st := newTxState()
	if err := fn(st); err != nil {
		return err
	}
	s.commit(st)
	return nil
}

func (s *Store) commit(st *txState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range st.products {
		s.products[id] = p
	}
	for id, o := range st.orders {
		s.orders[id] = o
	}
	for k, id := range st.idempotency {
		s.idempotency[k] = id
	}
}

type txState struct {
	products    map[string]*product.Product
	orders      map[string]*order.Order
	idempotency map[string]string
}

func newTxState() *txState {
	return &txState{
		products:    make(map[string]*product.Product),
		orders:      make(map[string]*order.Order),
		idempotency: make(map[string]string),
	}
}

type memTx struct {
	store *Store
	state *txState
}

func (t *memTx) Orders() order.Repository {
	return &OrderRepository{store: t.store, state: t.state}
}

func (t *memTx) Products() product.Repository {
	return &ProductRepository{store: t.store, state: t.state}
}

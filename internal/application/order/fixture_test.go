package order

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/minishop-commerce/internal/application/inventory"
	domoutbox "github.com/Zhima-Mochi/minishop-commerce/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-commerce/internal/infrastructure/memory"
)

type seqIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

func (s *seqIDs) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%03d", s.prefix, s.n)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventName())
	}
	return out
}

type fixture struct {
	store     *memory.Store
	create    *CreateOrderUseCase
	lifecycle *LifecycleService
	pub       *recordingPublisher
}

func newFixture(t *testing.T, opts ...CreateOrderOption) *fixture {
	t.Helper()
	return newFixtureWithGuard(t, nil, opts...)
}

func newFixtureWithGuard(t *testing.T, factory GuardFactory, opts ...CreateOrderOption) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	for _, p := range []*product.Product{
		{ID: "p1", Name: "Mug", Price: 1000, StockQuantity: 10, IsActive: true},
		{ID: "p2", Name: "Tee", Price: 2500, StockQuantity: 5, IsActive: true},
		{ID: "p3", Name: "Retired", Price: 500, StockQuantity: 50, IsActive: false},
	} {
		require.NoError(t, store.Products().Put(ctx, p))
	}

	guard := inventory.NewGuard(store.Products(), nil)
	if factory == nil {
		factory = func(repo product.Repository) StockGuard { return guard.WithRepository(repo) }
	}
	pub := &recordingPublisher{}
	users := memory.NewUserDirectory("u1", "u2")

	return &fixture{
		store:     store,
		create:    NewCreateOrderUseCase(store.Orders(), store, users, factory, &seqIDs{prefix: "ord"}, pub, nil, opts...),
		lifecycle: NewLifecycleService(store.Orders(), store, factory, pub, nil),
		pub:       pub,
	}
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.store.Products().FindActive(context.Background(), id)
	require.NoError(t, err)
	return p.StockQuantity
}

func (f *fixture) orderCount(t *testing.T) int {
	t.Helper()
	stats, err := f.store.Orders().Stats(context.Background())
	require.NoError(t, err)
	return stats.TotalOrders
}

func userOrder(items ...LineInput) CreateOrderInput {
	return CreateOrderInput{
		UserID:          "u1",
		ShippingAddress: "1 Main St",
		PaymentMethod:   payment.MethodCreditCard,
		Items:           items,
	}
}

func newGuardFor(repo product.Repository) StockGuard {
	return inventory.NewGuard(repo, nil)
}

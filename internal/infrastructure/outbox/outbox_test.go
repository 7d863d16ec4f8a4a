package outbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domoutbox "github.com/Zhima-Mochi/minishop-commerce/internal/domain/outbox"
)

type testEvent struct{ name string }

func (e testEvent) EventName() string { return e.name }

func TestBusFansOutToAllSubscribers(t *testing.T) {
	bus := NewBus(nil, nil)
	var mu sync.Mutex
	got := map[string]int{}
	var wg sync.WaitGroup
	wg.Add(3)
	record := func(tag string) domoutbox.Handler {
		return func(_ context.Context, e domoutbox.Event) error {
			defer wg.Done()
			mu.Lock()
			got[tag+":"+e.EventName()]++
			mu.Unlock()
			return nil
		}
	}
	bus.Subscribe("order.created", record("a"))
	bus.Subscribe("order.created", record("b"))
	bus.Subscribe("order.cancelled", record("a"))
	bus.Start(context.Background())

	require.NoError(t, bus.Publish(context.Background(), testEvent{"order.created"}))
	require.NoError(t, bus.Publish(context.Background(), testEvent{"order.cancelled"}))
	require.NoError(t, bus.Publish(context.Background(), testEvent{"order.unheard"}))
	wg.Wait()

	assert.Equal(t, map[string]int{
		"a:order.created":   1,
		"b:order.created":   1,
		"a:order.cancelled": 1,
	}, got)
	bus.Stop(context.Background())
}

func TestBusSurvivesFailingHandlers(t *testing.T) {
	bus := NewBus(nil, nil, WithHandlerTimeout(time.Second))
	var calls atomic.Int64
	bus.Subscribe("e", func(context.Context, domoutbox.Event) error {
		calls.Add(1)
		panic("boom")
	})
	bus.Subscribe("e", func(context.Context, domoutbox.Event) error {
		calls.Add(1)
		return errors.New("nope")
	})
	bus.Start(context.Background())

	require.NoError(t, bus.Publish(context.Background(), testEvent{"e"}))
	require.NoError(t, bus.Publish(context.Background(), testEvent{"e"}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	bus.Stop(ctx)
	assert.Equal(t, int64(4), calls.Load())
}

func TestPublishAfterStopFails(t *testing.T) {
	bus := NewBus(nil, nil)
	bus.Start(context.Background())
	bus.Stop(context.Background())

	err := bus.Publish(context.Background(), testEvent{"e"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPublishHonoursContextWhenQueueIsFull(t *testing.T) {
	bus := NewBus(nil, nil, WithQueueSize(1))
	require.NoError(t, bus.Publish(context.Background(), testEvent{"e"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := bus.Publish(ctx, testEvent{"e"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// Package redisstore keeps carts in Redis so they survive restarts and are
// shared between replicas.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domain "github.com/Zhima-Mochi/minishop-commerce/internal/domain/cart"
)

const (
	defaultPrefix  = "minishop:cart:"
	defaultRetries = 8
)

// ErrContention is returned when optimistic retries are exhausted because
// other writers kept changing the cart.
var ErrContention = errors.New("redisstore: cart modified concurrently")

type Option func(*CartStore)

func WithPrefix(prefix string) Option {
	return func(s *CartStore) { s.prefix = prefix }
}

func WithRetries(n int) Option {
	return func(s *CartStore) {
		if n > 0 {
			s.retries = n
		}
	}
}

// CartStore stores each cart as one JSON value. Writers use WATCH/MULTI so a
// concurrent write to the same cart aborts and replays the mutation; mutation
// functions may therefore run more than once.
type CartStore struct {
	client  redis.UniversalClient
	ttl     time.Duration
	prefix  string
	retries int
}

// NewCartStore builds a store whose carts expire ttl after their last write.
// A zero ttl keeps carts forever.
func NewCartStore(client redis.UniversalClient, ttl time.Duration, opts ...Option) *CartStore {
	s := &CartStore{client: client, ttl: ttl, prefix: defaultPrefix, retries: defaultRetries}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CartStore) Find(ctx context.Context, owner domain.Owner) (*domain.Cart, error) {
	key, err := s.key(owner)
	if err != nil {
		return nil, err
	}
	return s.read(ctx, s.client, key)
}

func (s *CartStore) GetOrCreate(ctx context.Context, owner domain.Owner) (*domain.Cart, error) {
	return s.Mutate(ctx, owner, func(*domain.Cart) error { return nil })
}

func (s *CartStore) Mutate(ctx context.Context, owner domain.Owner, fn func(c *domain.Cart) error) (*domain.Cart, error) {
	resolved, err := owner.Resolve()
	if err != nil {
		return nil, err
	}
	key, _ := s.key(resolved)

	var out *domain.Cart
	err = s.watch(ctx, func(tx *redis.Tx) error {
		c, err := s.read(ctx, tx, key)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			c = domain.New(resolved)
		case err != nil:
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("redisstore: encode cart: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		out = c
		return nil
	}, key)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *CartStore) Delete(ctx context.Context, owner domain.Owner) error {
	key, err := s.key(owner)
	if err != nil {
		return err
	}
	return s.client.Del(ctx, key).Err()
}

func (s *CartStore) Merge(ctx context.Context, from, into domain.Owner) (*domain.Cart, bool, error) {
	fromKey, err := s.key(from)
	if err != nil {
		return nil, false, err
	}
	intoOwner, err := into.Resolve()
	if err != nil {
		return nil, false, err
	}
	intoKey, _ := s.key(intoOwner)

	var (
		out    *domain.Cart
		merged bool
	)
	err = s.watch(ctx, func(tx *redis.Tx) error {
		merged = false
		target, err := s.read(ctx, tx, intoKey)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			target = domain.New(intoOwner)
		case err != nil:
			return err
		}

		anon, err := s.read(ctx, tx, fromKey)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			anon = nil
		case err != nil:
			return err
		}

		absorb := anon != nil && !anon.IsEmpty() && fromKey != intoKey
		if absorb {
			target.Absorb(anon)
		}
		data, err := json.Marshal(target)
		if err != nil {
			return fmt.Errorf("redisstore: encode cart: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, intoKey, data, s.ttl)
			if absorb {
				p.Del(ctx, fromKey)
			}
			return nil
		})
		if err != nil {
			return err
		}
		out, merged = target, absorb
		return nil
	}, fromKey, intoKey)
	if err != nil {
		return nil, false, err
	}
	return out, merged, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// watch runs fn under WATCH on keys, replaying it when another client wrote
// one of the keys before EXEC.
func (s *CartStore) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < s.retries; attempt++ {
		err := s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return ErrContention
}

func (s *CartStore) read(ctx context.Context, c getter, key string) (*domain.Cart, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var out domain.Cart
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("redisstore: decode cart %s: %w", key, err)
	}
	if out.Lines == nil {
		out.Lines = []domain.Line{}
	}
	return &out, nil
}

func (s *CartStore) key(owner domain.Owner) (string, error) {
	k, err := owner.Key()
	if err != nil {
		return "", err
	}
	return s.prefix + k, nil
}

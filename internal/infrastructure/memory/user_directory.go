package memory

import (
	"context"
	"sync"
)

// UserDirectory is a set of known user ids.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[string]struct{}
}

func NewUserDirectory(ids ...string) *UserDirectory {
	d := &UserDirectory{users: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		d.users[id] = struct{}{}
	}
	return d
}

func (d *UserDirectory) Add(ctx context.Context, id string) error {
	_ = ctx
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[id] = struct{}{}
	return nil
}

func (d *UserDirectory) Exists(ctx context.Context, id string) (bool, error) {
	_ = ctx
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.users[id]
	return ok, nil
}

// Package id provides the identifier generators used across the service.
package id

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// UUID generates random RFC 4122 identifiers.
type UUID struct{}

func (UUID) NewID() string { return uuid.NewString() }

// ULID generates lexicographically sortable identifiers, so newer orders sort
// after older ones. Safe for concurrent use.
type ULID struct {
	mu      sync.Mutex
	entropy io.Reader
}

func NewULID() *ULID {
	return &ULID{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *ULID) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

package service

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// idGenerator mints message ids. Within one millisecond the monotonic
// reader makes every id greater than the previous one.
type idGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func newIDGenerator() *idGenerator {
	return &idGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *idGenerator) next(at time.Time) (ulid.ULID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.New(ulid.Timestamp(at), g.entropy)
}

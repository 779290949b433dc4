package fetch

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is the single shared clock gate between all outbound requests.
// Acquire suspends the caller until at least the configured interval has
// elapsed since the last grant to any caller; grants are strictly
// serialized regardless of how many goroutines are waiting.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter creates a gate enforcing minInterval between grants. The
// underlying token bucket has burst 1, so the first grant is immediate and
// every subsequent grant is spaced by at least minInterval.
func NewLimiter(minInterval time.Duration) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// Acquire blocks until a grant is available or the context is cancelled.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces outbound API requests so that no more than the configured
// number leave the process in any rolling 60-second window. It is shared
// by all fetch workers; only the request itself is gated, never the
// surrounding work.
type Limiter struct {
	lim      *rate.Limiter
	interval time.Duration
}

// New creates a limiter allowing perMinute requests per minute.
// Panics if perMinute is not positive; the config layer validates this
// before the limiter is constructed.
func New(perMinute int) *Limiter {
	if perMinute <= 0 {
		panic(fmt.Sprintf("ratelimit: perMinute must be positive, got %d", perMinute))
	}
	interval := time.Minute / time.Duration(perMinute)
	return &Limiter{
		lim:      rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}
}

// Acquire blocks until the caller may issue one request, or until ctx is
// done. Waiters are served in FIFO order, so no worker starves while
// others proceed.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.lim.Wait(ctx)
}

// Interval returns the minimum spacing between consecutive requests.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

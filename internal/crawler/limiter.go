package crawler

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// limiter bounds the number of simultaneously in-flight fetch tasks.
// Tasks beyond the cap exist as goroutines but block in acquire until a
// running task releases its slot.
type limiter struct {
	sem *semaphore.Weighted
}

// newLimiter returns a limiter with the given number of slots.
func newLimiter(capacity int) *limiter {
	return &limiter{sem: semaphore.NewWeighted(int64(capacity))}
}

// acquire blocks until a slot is free or the context is cancelled.
// release must be called exactly once per successful acquire, on every
// exit path of the holder.
func (l *limiter) acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

// release frees a slot taken by acquire.
func (l *limiter) release() {
	l.sem.Release(1)
}

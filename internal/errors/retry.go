package errors

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Backoff describes exponential retry delays: Base, 2*Base, 4*Base and so
// on, capped at Max.
type Backoff struct {
	// Retries is the number of attempts after the first one.
	Retries int
	Base    time.Duration
	Max     time.Duration

	// Jitter scales each delay by a random factor in [0.5, 1).
	Jitter bool
}

// Delay returns the wait before retry n (0-based).
func (b Backoff) Delay(n int) time.Duration {
	d := b.Base
	for range n {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			d = b.Max
			break
		}
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	if b.Jitter {
		d = time.Duration(float64(d) * (0.5 + rand.Float64()*0.5))
	}
	return d
}

// WithRetry calls fn until it succeeds, the retries are exhausted or ctx
// ends. fn receives the 1-based attempt number. A NextorError that is not
// Retryable stops the loop and is returned unchanged; other errors are
// retried.
func WithRetry[T any](ctx context.Context, b Backoff, fn func(attempt int) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := fn(attempt)
		if err == nil {
			return v, nil
		}
		if ne, ok := As(err); ok && !ne.Retryable {
			return zero, err
		}
		lastErr = err

		if attempt > b.Retries {
			break
		}

		timer := time.NewTimer(b.Delay(attempt - 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, fmt.Errorf("failed after %d retries: %w", b.Retries, lastErr)
}

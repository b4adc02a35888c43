// Package retry wraps retryable calls with a linear, attempt-indexed
// backoff. The policy lives here rather than inline in control flow so it
// can be exercised with a fake clock.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Defaults for dependency-check retries.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 60 * time.Second
)

// Policy is a linear backoff: attempt n sleeps baseDelay*n before
// retrying. With the defaults that is 60s, 120s, 180s.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration

	// RetryIf decides whether an error is worth retrying. Nil retries
	// everything.
	RetryIf func(error) bool

	clock Clock
}

// NewPolicy creates a policy with the default schedule.
func NewPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		clock:      systemClock{},
	}
}

// WithClock overrides the clock. For tests.
func (p Policy) WithClock(clock Clock) Policy {
	p.clock = clock
	return p
}

// Do invokes fn until it succeeds, the retry budget is exhausted, or the
// context ends. The first call does not sleep; each retry n sleeps
// BaseDelay*n first. The last error is returned on exhaustion.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	clock := p.clock
	if clock == nil {
		clock = systemClock{}
	}

	var last error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * p.BaseDelay
			if err := clock.Sleep(ctx, delay); err != nil {
				return errors.Join(err, last)
			}
		}
		last = fn(ctx)
		if last == nil {
			return nil
		}
		if p.RetryIf != nil && !p.RetryIf(last) {
			return last
		}
	}
	return fmt.Errorf("retries exhausted after %d attempts: %w", p.MaxRetries+1, last)
}

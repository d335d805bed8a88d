package engine

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds how often a failing step is re-attempted. Zero fields take the defaults.
type RetryPolicy struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

// DefaultRetryPolicy is exponential from 500ms, capped at 30s, three attempts in total.
var DefaultRetryPolicy = RetryPolicy{
	Attempts: 3,
	Base:     500 * time.Millisecond,
	Max:      30 * time.Second,
}

func (p RetryPolicy) backoff() retry.Backoff {
	b := retry.NewExponential(p.Base)
	b = retry.WithCappedDuration(p.Max, b)

	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	return retry.WithMaxRetries(uint64(attempts-1), b)
}

// attempt runs fn under the policy and reports how many times it ran. Permanent errors and
// context cancellation stop immediately.
func (p RetryPolicy) attempt(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	attempts := 0

	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempts++

		err := fn(ctx, attempts)
		if err == nil {
			return nil
		}

		if isPermanent(err) || ctx.Err() != nil {
			return err
		}

		return retry.RetryableError(err)
	})

	return attempts, err
}

package retry

import (
	"context"
	"time"

	"github.com/upb/character-chat/services"
)

// Policy controls how transient pipeline failures are retried.
// MaxAttempts of 1 performs a single attempt and never retries.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Retryable decides whether an error is worth another attempt.
	// Defaults to services.IsRetryable.
	Retryable func(error) bool
}

// NoRetry performs exactly one attempt
func NoRetry() Policy {
	return Policy{MaxAttempts: 1}
}

// Do runs fn until it succeeds, returns a non-retryable error, the
// attempts are exhausted or ctx is done. The last error from fn is returned
// unchanged.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = services.IsRetryable
	}

	backoff := p.InitialBackoff
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || attempt == attempts || !retryable(err) {
			return err
		}

		if backoff > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return err
			case <-timer.C:
			}
			backoff *= 2
			if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
				backoff = p.MaxBackoff
			}
		} else if ctx.Err() != nil {
			return err
		}
	}
	return err
}

package services

import (
	"context"
	"errors"
	"time"

	"github.com/jpillora/backoff"

	"github.com/gridops/condor-spider/internal/core/domain"
)

// RetryPolicy is the explicit retry configuration consumed by the
// delivery path. Retries apply only to transient destination failures.
type RetryPolicy struct {
	// MaxAttempts is the total number of delivery attempts per batch.
	MaxAttempts int

	// BaseDelay is the first backoff delay.
	BaseDelay time.Duration

	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration

	// Factor multiplies the delay after each failed attempt.
	Factor float64
}

// DefaultRetryPolicy mirrors the original spider's delivery behaviour:
// a handful of attempts with second-scale exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Factor:      2,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.Factor <= 1 {
		p.Factor = d.Factor
	}
	return p
}

// transient reports whether a delivery error is worth retrying.
func transient(err error) bool {
	return errors.Is(err, domain.ErrDestinationUnavailable) ||
		errors.Is(err, domain.ErrDestinationTimeout)
}

// attemptWithRetry runs fn until it succeeds, fails permanently, or the
// attempt budget runs out. The last error is returned on exhaustion.
func attemptWithRetry(ctx context.Context, policy RetryPolicy, fn func(context.Context) error) error {
	policy = policy.withDefaults()
	b := &backoff.Backoff{
		Min:    policy.BaseDelay,
		Max:    policy.MaxDelay,
		Factor: policy.Factor,
		Jitter: true,
	}

	var err error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil || !transient(err) {
			return err
		}
		if attempt == policy.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
	return err
}

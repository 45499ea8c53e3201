package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	goretry "github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

// Policy is the retry behaviour applied to one fallible operation.
// The delay after the n-th failed attempt is BaseDelay * 2^(n-1), plus a
// uniformly random [0, 1s) when Jitter is set.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Jitter      bool
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		Jitter:      true,
	}
}

func (p Policy) Delay(attempt int, random func() float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if p.Jitter && random != nil {
		delay += time.Duration(random() * float64(time.Second))
	}
	return delay
}

// ErrExhausted is returned when every attempt failed with a retryable error.
type ErrExhausted struct {
	Attempts int
	Err      error
}

func (e ErrExhausted) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e ErrExhausted) Unwrap() error {
	return e.Err
}

// Retrier applies a Policy around operations.
type Retrier struct {
	Policy Policy
	Logger logrus.FieldLogger

	random func() float64
}

func New(policy Policy, logger logrus.FieldLogger) *Retrier {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	return &Retrier{
		Policy: policy,
		Logger: logger,
		random: rand.Float64,
	}
}

// Do calls fn until it succeeds, returns an error isRetryable rejects, or the
// policy runs out of attempts. Sleeping between attempts honours ctx.
func (r *Retrier) Do(ctx context.Context, name string, isRetryable func(error) bool, fn func(ctx context.Context) error) error {
	attempts := 0
	var lastErr error

	backoff := goretry.BackoffFunc(func() (time.Duration, bool) {
		if attempts >= r.Policy.MaxAttempts {
			return 0, true
		}
		delay := r.Policy.Delay(attempts, r.random)
		r.Logger.WithFields(logrus.Fields{
			"operation": name,
			"attempt":   fmt.Sprintf("%d/%d", attempts, r.Policy.MaxAttempts),
		}).Warnf("error: %v, sleeping %s before retrying", lastErr, delay.Round(time.Millisecond))
		return delay, false
	})

	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if isRetryable(err) {
			return goretry.RetryableError(err)
		}
		return err
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	if lastErr != nil && attempts >= r.Policy.MaxAttempts && isRetryable(lastErr) {
		return ErrExhausted{Attempts: attempts, Err: lastErr}
	}
	return err
}

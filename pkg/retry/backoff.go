package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	errs "conflictmap/pkg/errors"
)

// BackoffStrategy returns how long to wait before a retry attempt.
// Attempt 1 is the first retry; attempts below 1 wait nothing.
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff grows the delay by Multiplier per attempt up to MaxDelay
// and spreads it by JitterFactor in both directions
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

// DefaultExponentialBackoff waits 1s, 2s, 4s ... up to a minute with 10% jitter
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NextDelay implements BackoffStrategy
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	if eb.MaxDelay > 0 {
		delay = math.Min(delay, float64(eb.MaxDelay))
	}
	if eb.JitterFactor > 0 {
		delay += delay * eb.JitterFactor * (2*rand.Float64() - 1)
	}
	return time.Duration(math.Max(delay, 0))
}

// ConstantBackoff waits the same delay before every attempt
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay implements BackoffStrategy
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait sleeps for delay or until ctx is done
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ByErrorType picks a backoff by the type of a pipeline error. Untyped errors
// and types without an entry use Default.
type ByErrorType struct {
	Strategies map[errs.ErrorType]BackoffStrategy
	Default    BackoffStrategy
}

// NewByErrorType backs off longest on rate limits, longer on server errors and
// uses base for everything else
func NewByErrorType(base BackoffStrategy) *ByErrorType {
	return &ByErrorType{
		Strategies: map[errs.ErrorType]BackoffStrategy{
			errs.ErrorTypeNetwork: base,
			errs.ErrorTypeRateLimit: &ExponentialBackoff{
				BaseDelay:    30 * time.Second,
				MaxDelay:     5 * time.Minute,
				Multiplier:   1.5,
				JitterFactor: 0.3,
			},
			errs.ErrorTypeServerError: &ExponentialBackoff{
				BaseDelay:    5 * time.Second,
				MaxDelay:     time.Minute,
				Multiplier:   2.0,
				JitterFactor: 0.1,
			},
		},
		Default: base,
	}
}

// ForError returns the strategy for err
func (b *ByErrorType) ForError(err error) BackoffStrategy {
	var pipeErr *errs.Error
	if errors.As(err, &pipeErr) {
		if s, ok := b.Strategies[pipeErr.Type]; ok {
			return s
		}
	}
	return b.Default
}

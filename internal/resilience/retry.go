package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls how a provider call is retried. Rate-limited failures back
// off exponentially up to MaxAttempts. A timeout is retried once, after
// TimeoutDelay, on a fresh call. Permanent failures return immediately.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first.
	// Default: 3.
	MaxAttempts int

	// BaseDelay is the backoff before the first rate-limit retry. It doubles
	// on every further retry. Default: 1s.
	BaseDelay time.Duration

	// MaxDelay caps any single backoff. Default: 30s.
	MaxDelay time.Duration

	// TimeoutDelay is the pause before the single timeout retry.
	// Default: 250ms.
	TimeoutDelay time.Duration

	// JitterFraction adds random jitter as a fraction of the computed
	// rate-limit delay. Default: 0.
	JitterFraction float64

	// Classify maps an error to a retry decision. Default: DefaultClassify.
	Classify Classifier

	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, d Decision, delay time.Duration, err error)

	// OnTimeout is called when a timeout triggers the fresh-call retry.
	OnTimeout func(err error)
}

// DefaultPolicy returns the policy used for provider calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		TimeoutDelay: 250 * time.Millisecond,
		Classify:     DefaultClassify,
	}
}

// Do executes fn under the retry policy p. Context cancellation stops
// retries immediately and returns the last error.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for calls that return a value. The last error is returned
// unwrapped so callers can classify it.
func DoVal[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var (
		zero           T
		lastErr        error
		rateRetries    int
		timeoutRetried bool
	)
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}

		d := p.Classify(err)
		if !d.Retryable || attempt == p.MaxAttempts {
			return zero, lastErr
		}

		var delay time.Duration
		switch d.Class {
		case ClassTimeout:
			if timeoutRetried {
				return zero, lastErr
			}
			timeoutRetried = true
			delay = p.TimeoutDelay
			if p.OnTimeout != nil {
				p.OnTimeout(err)
			}
		default:
			delay = p.backoff(rateRetries)
			rateRetries++
		}
		if d.Backoff > 0 {
			delay = min(d.Backoff, p.MaxDelay)
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, d, delay, err)
		}

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, lastErr
			case <-timer.C:
			}
		}
	}

	return zero, lastErr
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.TimeoutDelay < 0 {
		p.TimeoutDelay = 0
	}
	if p.JitterFraction < 0 {
		p.JitterFraction = 0
	}
	if p.Classify == nil {
		p.Classify = DefaultClassify
	}
	return p
}

// backoff returns the delay before the n-th rate-limit retry, counting
// from zero.
func (p Policy) backoff(n int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(2, float64(n))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	if p.JitterFraction > 0 {
		jitterRange := delay * p.JitterFraction
		delay += (rand.Float64()*2 - 1) * jitterRange
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(service, operation string) func(int, Decision, time.Duration, error) {
	return func(attempt int, d Decision, delay time.Duration, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Stringer("class", d.Class),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}
}

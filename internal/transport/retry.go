package transport

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Fantasim/vaultscan/internal/config"
)

// Backoff selects how the delay between attempts grows.
type Backoff string

const (
	BackoffLinear      Backoff = config.BackoffLinear
	BackoffExponential Backoff = config.BackoffExponential
)

// ParseBackoff maps a config value to a Backoff, defaulting to exponential.
func ParseBackoff(s string) Backoff {
	if strings.EqualFold(s, config.BackoffLinear) {
		return BackoffLinear
	}
	return BackoffExponential
}

// Policy configures Retry.
type Policy struct {
	Attempts  int           // total attempts, values below 1 are treated as 1
	Base      time.Duration // backoff base
	Backoff   Backoff
	Max       time.Duration // cap for a single delay, 0 = uncapped
	Retryable func(error) bool
}

// Delay returns the wait before retry number retry (0-based):
// Base*(retry+1) for linear, Base*2^retry for exponential.
func (p Policy) Delay(retry int) time.Duration {
	if p.Base <= 0 || retry < 0 {
		return 0
	}

	var d time.Duration
	switch p.Backoff {
	case BackoffLinear:
		d = p.Base * time.Duration(retry+1)
	default:
		if retry > 30 {
			retry = 30
		}
		d = p.Base * time.Duration(1<<uint(retry))
	}

	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	return d
}

func (p Policy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return DefaultRetryable(err)
}

// DefaultRetryable rejects errors that another attempt cannot fix.
func DefaultRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled):
		return false
	case IsNotEnabled(err):
		return false
	case errors.Is(err, config.ErrMalformedResponse):
		return false
	case errors.Is(err, config.ErrCircuitOpen):
		return false
	}
	return true
}

// Retry invokes op until it succeeds or the policy's attempts are exhausted.
// The last observed error is returned.
func Retry[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		zero    T
		lastErr error
	)

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := p.Delay(attempt - 1)
			if hint := config.GetRetryAfter(lastErr); hint > delay {
				delay = hint
				if p.Max > 0 && delay > p.Max {
					delay = p.Max
				}
			}

			slog.Debug("retrying provider call",
				"attempt", attempt+1,
				"maxAttempts", attempts,
				"delay", delay,
				"error", lastErr,
			)

			if err := sleep(ctx, delay); err != nil {
				return zero, lastErr
			}
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if ctx.Err() != nil || !p.retryable(err) {
			break
		}
	}

	return zero, lastErr
}

// Call bundles the per-call timeout with the retry policy around it.
type Call struct {
	Timeout time.Duration
	Policy  Policy
}

// NewCall builds the default Call from configuration.
func NewCall(cfg *config.Config) Call {
	return Call{
		Timeout: cfg.CallTimeout,
		Policy: Policy{
			Attempts: cfg.RetryAttempts,
			Base:     cfg.BackoffBase,
			Backoff:  ParseBackoff(cfg.BackoffPolicy),
			Max:      config.MaxBackoffDelay,
		},
	}
}

// Do runs op with the call's per-attempt timeout inside its retry policy.
func Do[T any](ctx context.Context, c Call, op func(ctx context.Context) (T, error)) (T, error) {
	return Retry(ctx, c.Policy, func(ctx context.Context) (T, error) {
		return CallWithTimeout(ctx, c.Timeout, op)
	})
}

// WorstCase returns the longest a single Do can take, excluding Retry-After hints.
func (c Call) WorstCase() time.Duration {
	attempts := c.Policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	total := c.Timeout * time.Duration(attempts)
	for i := 0; i < attempts-1; i++ {
		total += c.Policy.Delay(i)
	}
	return total
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

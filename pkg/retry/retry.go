package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"redditetl/pkg/config"
	errs "redditetl/pkg/errors"
	"redditetl/pkg/logger"
)

// ErrAttemptsExhausted wraps the last error once every attempt has failed
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Policy describes how a single operation is retried. It is a plain value
// so callers can build, copy and adjust it before use.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first
	MaxAttempts int
	Backoff     Backoff
	// RetryIf decides whether an error is worth another attempt
	RetryIf func(error) bool
	// OnRetry is called before sleeping ahead of each retry
	OnRetry func(attempt int, err error, delay time.Duration)
	Logger  logger.Logger
	// Sleep replaces Wait, mainly so tests do not block
	Sleep func(ctx context.Context, d time.Duration) error
}

// FromConfig builds the fixed-delay policy used for connecting to the API
func FromConfig(cfg config.RetryConfig, log logger.Logger) Policy {
	return Policy{
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     ConstantBackoff{Delay: cfg.Delay},
		RetryIf:     DefaultRetryIf,
		Logger:      log,
	}
}

// Transient builds an exponential policy for individual API requests
func Transient(maxAttempts int, log logger.Logger) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     DefaultRetryIf,
		Logger:      log,
	}
}

// DefaultRetryIf retries typed errors marked retryable and any untyped
// error other than context cancellation
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}

	return true
}

// Do runs op until it succeeds, returns a non-retryable error, runs out of
// attempts, or ctx is cancelled
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Backoff == nil {
		p.Backoff = ConstantBackoff{}
	}
	if p.RetryIf == nil {
		p.RetryIf = DefaultRetryIf
	}
	if p.Logger == nil {
		p.Logger = logger.NewNopLogger()
	}
	if p.Sleep == nil {
		p.Sleep = Wait
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				p.Logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err

		if !p.RetryIf(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.Backoff.NextDelay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		p.Logger.WithError(err).WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": p.MaxAttempts,
			"delay":        delay,
		})

		if err := p.Sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}

	p.Logger.WithError(lastErr).ErrorWithFields("max retry attempts exceeded", map[string]interface{}{
		"attempts": p.MaxAttempts,
	})
	return fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, p.MaxAttempts, lastErr)
}

// DoWithResult is Do for operations that produce a value
func DoWithResult[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, p, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/domain/shared/domainerr"
)

const (
	defaultMaxAttempts  = 4
	defaultBaseDelay    = 20 * time.Millisecond
	defaultJitterFactor = 0.3
)

var (
	ErrInvalidMaxAttempts  = errors.New("middleware: max attempts must be positive")
	ErrNegativeBaseDelay   = errors.New("middleware: base delay must not be negative")
	ErrInvalidJitterFactor = errors.New("middleware: jitter factor must be between 0.0 and 1.0")
)

type retryConfig struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
	logger       *slog.Logger
}

type RetryOption func(*retryConfig) error

func WithMaxAttempts(attempts int) RetryOption {
	return func(c *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		c.maxAttempts = attempts
		return nil
	}
}

// WithBaseDelay sets the first backoff; later ones double.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(c *retryConfig) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}
		c.baseDelay = delay
		return nil
	}
}

func WithJitterFactor(factor float64) RetryOption {
	return func(c *retryConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}
		c.jitterFactor = factor
		return nil
	}
}

func WithRetryLogger(logger *slog.Logger) RetryOption {
	return func(c *retryConfig) error {
		c.logger = logger
		return nil
	}
}

// RetryWithExponentialBackoff runs fn until it succeeds, fails with a
// non-transient error, or attempts run out. Conflicts are never retried: a
// rejected commit is an answer, not a failure.
func RetryWithExponentialBackoff(ctx context.Context, fn func(ctx context.Context) error, options ...RetryOption) error {
	cfg := &retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}
	for _, opt := range options {
		if err := opt(cfg); err != nil {
			return err
		}
	}

	var lastErr error
	for attempt := 0; attempt < cfg.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := cfg.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * cfg.jitterFactor //nolint:gosec // jitter only
			select {
			case <-time.After(delay + time.Duration(jitter)):
			case <-ctx.Done():
				return errors.Join(lastErr, ctx.Err())
			}
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, domainerr.ErrTransient) {
			return lastErr
		}
		if cfg.logger != nil && attempt < cfg.maxAttempts-1 {
			cfg.logger.WarnContext(ctx, "retrying after transient failure", "attempt", attempt+1, "error", lastErr)
		}
	}
	return lastErr
}

// Retry re-dispatches commands that failed with a transient error. It must sit
// outside Transaction so every attempt runs in a fresh unit of work.
func Retry(options ...RetryOption) CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			var res any
			err := RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
				var err error
				res, err = next.Dispatch(ctx, cmd)
				return err
			}, options...)
			if err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}

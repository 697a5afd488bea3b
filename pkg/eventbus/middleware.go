package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Middleware wraps handler invocation. Middleware sees the call but never
// changes a handler's identity, run-once, or propagation policy; those are
// read from the registered handler.
type Middleware func(next Handler) Handler

// chain applies middlewares so the first one is outermost.
func chain(h Handler, middlewares []Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// LoggingMiddleware logs each invocation at debug level.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, env Envelope) error {
			start := time.Now()
			err := next.Handle(ctx, env)
			logger.Debug("handler invoked",
				slog.String("event", env.EventName()),
				slog.String("envelope_id", env.ID()),
				slog.Duration("duration", time.Since(start)),
				slog.Bool("failed", err != nil),
			)
			return err
		})
	}
}

// TimeoutMiddleware gives each invocation a context with deadline d. Handlers
// that honor ctx can use it to bound their work; the worker does not abandon
// a handler that ignores it.
func TimeoutMiddleware(d time.Duration) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, env Envelope) error {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next.Handle(ctx, env)
		})
	}
}

// RetryConfig configures RetryMiddleware.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	MaxAttempts int

	// InitialBackoff is the starting backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffFactor is the multiplier applied to backoff after each attempt.
	BackoffFactor float64

	// Jitter is the random jitter factor (0.0-1.0).
	Jitter float64

	// Retryable reports whether err is worth another attempt. By default
	// every error except context cancellation is retried.
	Retryable func(error) bool
}

// DefaultRetry retries twice with a short backoff.
var DefaultRetry = RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: 50 * time.Millisecond,
	MaxBackoff:     time.Second,
	BackoffFactor:  2.0,
	Jitter:         0.1,
}

// RetryMiddleware re-invokes a handler that returns an error, within the same
// delivery. Backoff sleeps on the worker goroutine and so delays every queued
// envelope; keep budgets small. Panics are not retried.
func RetryMiddleware(cfg RetryConfig) Middleware {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = 1
	}
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}
	}

	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, env Envelope) error {
			backoff := cfg.InitialBackoff
			var err error
			for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
				if err = next.Handle(ctx, env); err == nil || !retryable(err) {
					return err
				}
				if attempt == cfg.MaxAttempts-1 {
					break
				}

				wait := backoff
				if cfg.Jitter > 0 {
					wait += time.Duration(float64(backoff) * cfg.Jitter * (rand.Float64()*2 - 1))
				}
				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					return err
				case <-timer.C:
				}

				backoff = time.Duration(float64(backoff) * cfg.BackoffFactor)
				if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
					backoff = cfg.MaxBackoff
				}
			}
			return err
		})
	}
}

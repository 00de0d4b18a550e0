package xcqrs

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker"
	"github.com/trickstertwo/xlog"
)

// Chain composes middlewares around a handler in order.
// The first middleware is outermost: first to run pre-call, last post-call.
func Chain(h HandlerFunc, mws ...Middleware) HandlerFunc {
	if len(mws) == 0 {
		return h
	}
	wrapped := h
	// Apply in reverse so that first middleware wraps last.
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		wrapped = mws[i](wrapped)
	}
	return wrapped
}

// RecoveryMiddleware converts handler panics into errors so a failed dispatch
// never wedges the bus.
func RecoveryMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, msg Message) (res any, err error) {
			defer func() {
				if r := recover(); r != nil {
					res = nil
					err = fmt.Errorf("panic recovered: %v", r)
				}
			}()
			return next(ctx, msg)
		}
	}
}

// RetryConfig controls retry behavior for dispatch middleware.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first execution.
	MaxAttempts int
	// Backoff computes the base wait before the next attempt.
	Backoff func(attempt int) time.Duration
	// RetryIf, when provided, returns true if the error should be retried.
	// If nil, all errors are retried (bounded by MaxAttempts).
	RetryIf func(err error) bool
	// Jitter adds up to [0, Jitter] random delay to the base backoff.
	Jitter time.Duration
}

// RetryMiddleware provides bounded, selective retries around a dispatch.
// Retrying a command re-runs its handler; idempotency is the handler's concern.
func RetryMiddleware(cfg RetryConfig) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, msg Message) (any, error) {
			attempts := cfg.MaxAttempts
			if attempts < 1 {
				attempts = 1
			}
			shouldRetry := cfg.RetryIf
			if shouldRetry == nil {
				shouldRetry = func(error) bool { return true }
			}

			var lastErr error
			for i := 1; i <= attempts; i++ {
				res, err := next(ctx, msg)
				if err == nil {
					return res, nil
				}
				lastErr = err
				if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return nil, lastErr
				}
				if i == attempts || !shouldRetry(lastErr) {
					return nil, lastErr
				}
				if cfg.Backoff != nil {
					wait := cfg.Backoff(i)
					if cfg.Jitter > 0 {
						wait += time.Duration(rand.Int63n(int64(cfg.Jitter)))
					}
					select {
					case <-ctx.Done():
						return nil, lastErr
					case <-time.After(wait):
					}
				}
			}
			return nil, lastErr
		}
	}
}

// TimeoutMiddleware enforces a maximum processing time for a dispatch.
// When exceeded it returns context.DeadlineExceeded.
func TimeoutMiddleware(d time.Duration) Middleware {
	if d <= 0 {
		// No-op if duration invalid.
		return func(next HandlerFunc) HandlerFunc { return next }
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, msg Message) (any, error) {
			tctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			type outcome struct {
				res any
				err error
			}
			outCh := make(chan outcome, 1)
			go func() {
				defer func() {
					if r := recover(); r != nil {
						outCh <- outcome{err: fmt.Errorf("panic recovered: %v", r)}
					}
				}()
				res, err := next(tctx, msg)
				outCh <- outcome{res: res, err: err}
			}()

			select {
			case <-tctx.Done():
				return nil, tctx.Err()
			case out := <-outCh:
				return out.res, out.err
			}
		}
	}
}

// LoggingMiddleware emits a structured log line per dispatch using the logger
// and clock the bus injected into the context.
func LoggingMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, msg Message) (any, error) {
			lg, ok := LoggerFromContext(ctx)
			if !ok {
				return next(ctx, msg)
			}
			clock, hasClock := ClockFromContext(ctx)
			var start time.Time
			if hasClock {
				start = clock.Now()
			}

			res, err := next(ctx, msg)

			ev := lg.With(
				xlog.Str("kind", msg.Kind().String()),
				xlog.Str("name", msg.Name()),
				xlog.Str("message_id", msg.ID()),
			)
			if hasClock {
				ev = ev.With(xlog.Dur("duration", clock.Since(start)))
			}
			if err != nil {
				ev.Warn().Err(err).Msg("xcqrs dispatch failed")
			} else {
				ev.Debug().Msg("xcqrs dispatch")
			}
			return res, err
		}
	}
}

// CircuitBreakerMiddleware short-circuits dispatches once the breaker trips.
func CircuitBreakerMiddleware(settings gobreaker.Settings) Middleware {
	cb := gobreaker.NewCircuitBreaker(settings)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, msg Message) (any, error) {
			return cb.Execute(func() (any, error) {
				return next(ctx, msg)
			})
		}
	}
}

// DefaultCircuitBreakerSettings trips after five consecutive failures and
// probes again after 30 seconds.
func DefaultCircuitBreakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "xcqrs_dispatch",
		Timeout:     30 * time.Second,
		MaxRequests: 1,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
}

// ValidationMiddleware validates the source struct of reflectively built
// messages before the handler runs. Messages built from an explicit field
// table pass through unchecked.
func ValidationMiddleware(v *validator.Validate) Middleware {
	if v == nil {
		return func(next HandlerFunc) HandlerFunc { return next }
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, msg Message) (any, error) {
			if src := msg.env().source; src != nil && isStruct(src) {
				if err := v.StructCtx(ctx, src); err != nil {
					return nil, fmt.Errorf("validate %s %q: %w", msg.Kind(), msg.Name(), err)
				}
			}
			return next(ctx, msg)
		}
	}
}

func isStruct(v any) bool {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	return rv.IsValid() && rv.Kind() == reflect.Struct
}

package xcqrs

import (
	"context"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// ctxKey is the base for all context keys in xcqrs (prevents collisions).
type ctxKey string

const (
	loggerCtxKey   ctxKey = "xcqrs:logger"
	clockCtxKey    ctxKey = "xcqrs:clock"
	bufferCtxKey   ctxKey = "xcqrs:events"
	queueCtxKey    ctxKey = "xcqrs:pending"
	notifierCtxKey ctxKey = "xcqrs:notifier"
)

func injectLogger(ctx context.Context, l *xlog.Logger) context.Context {
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerCtxKey, l)
}

// LoggerFromContext retrieves the logger the bus injected for this dispatch.
func LoggerFromContext(ctx context.Context) (*xlog.Logger, bool) {
	if v := ctx.Value(loggerCtxKey); v != nil {
		if l, ok := v.(*xlog.Logger); ok && l != nil {
			return l, true
		}
	}
	return nil, false
}

func injectClock(ctx context.Context, c xclock.Clock) context.Context {
	if c == nil {
		return ctx
	}
	return context.WithValue(ctx, clockCtxKey, c)
}

// ClockFromContext retrieves the clock the bus injected for this dispatch.
func ClockFromContext(ctx context.Context) (xclock.Clock, bool) {
	if v := ctx.Value(clockCtxKey); v != nil {
		if c, ok := v.(xclock.Clock); ok && c != nil {
			return c, true
		}
	}
	return nil, false
}

func injectEventBuffer(ctx context.Context, b *eventBuffer) context.Context {
	return context.WithValue(ctx, bufferCtxKey, b)
}

func eventBufferFromContext(ctx context.Context) (*eventBuffer, bool) {
	if v := ctx.Value(bufferCtxKey); v != nil {
		if b, ok := v.(*eventBuffer); ok && b != nil {
			return b, true
		}
	}
	return nil, false
}

func injectPendingQueue(ctx context.Context, q *pendingQueue) context.Context {
	return context.WithValue(ctx, queueCtxKey, q)
}

func pendingQueueFromContext(ctx context.Context) (*pendingQueue, bool) {
	if v := ctx.Value(queueCtxKey); v != nil {
		if q, ok := v.(*pendingQueue); ok && q != nil {
			return q, true
		}
	}
	return nil, false
}

func injectNotifier(ctx context.Context, fn func(BusEvent)) context.Context {
	if fn == nil {
		return ctx
	}
	return context.WithValue(ctx, notifierCtxKey, fn)
}

func notify(ctx context.Context, e BusEvent) {
	if v := ctx.Value(notifierCtxKey); v != nil {
		if fn, ok := v.(func(BusEvent)); ok && fn != nil {
			fn(e)
		}
	}
}

package xcqrs

import (
	"context"
	"strconv"
	"sync"

	"github.com/trickstertwo/xlog"
)

// pendingQueue holds commands dispatched while another command is executing.
// It lives for one outermost command dispatch and travels in its context.
type pendingQueue struct {
	mu     sync.Mutex
	items  []Message
	closed bool
}

// push enqueues a nested command. Returns false once the owning dispatch has
// finished draining, so a stale context cannot park commands forever.
func (q *pendingQueue) push(m Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, m)
	return true
}

func (q *pendingQueue) pop() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		q.closed = true
		return nil, false
	}
	m := q.items[0]
	q.items = q.items[1:]
	return m, true
}

// discard closes the queue and drops whatever is left. Used when a command in
// the cascade fails: its successors are abandoned, not run half-configured.
func (q *pendingQueue) discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	q.closed = true
	return n
}

// NewLockingMiddleware serializes command execution. While a command is
// executing, nested command dispatches (from its handler, an event listener,
// or a query run during that window) are enqueued FIFO and drained before the
// outermost dispatch returns. Queries pass through untouched and may reenter
// arbitrarily. Concurrent external submissions serialize on the mutex.
//
// A failing command releases the lock and discards its remaining queue
// segment; the error propagates to the outermost caller.
func NewLockingMiddleware() Middleware {
	var mu sync.Mutex
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, msg Message) (any, error) {
			if msg.Kind() != KindCommand {
				return next(ctx, msg)
			}

			if q, ok := pendingQueueFromContext(ctx); ok && q.push(msg) {
				notify(ctx, BusEvent{
					Type:        CommandEnqueued,
					MessageID:   msg.ID(),
					MessageName: msg.Name(),
					MessageKind: msg.Kind(),
				})
				return nil, nil
			}

			mu.Lock()
			defer mu.Unlock()

			q := &pendingQueue{}
			ctx = injectPendingQueue(ctx, q)

			if _, err := next(ctx, msg); err != nil {
				abandon(ctx, q)
				return nil, err
			}
			for {
				nested, ok := q.pop()
				if !ok {
					return nil, nil
				}
				if _, err := next(ctx, nested); err != nil {
					abandon(ctx, q)
					return nil, err
				}
			}
		}
	}
}

func abandon(ctx context.Context, q *pendingQueue) {
	n := q.discard()
	if n == 0 {
		return
	}
	if lg, ok := LoggerFromContext(ctx); ok {
		lg.With(xlog.Str("discarded", strconv.Itoa(n))).
			Warn().
			Msg("xcqrs: command failed, queued commands discarded")
	}
}

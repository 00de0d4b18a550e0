package xcqrs

import (
	"context"
	"fmt"
	"sync"
)

// eventBuffer accumulates domain events raised during one command dispatch.
// A sealed buffer counts raise attempts instead of accepting them; it is
// installed for query dispatches so a violation is reported even when the
// handler swallows the Raise error.
type eventBuffer struct {
	mu       sync.Mutex
	pending  []*DomainEvent
	sealed   bool
	rejected int
}

func newEventBuffer() *eventBuffer       { return &eventBuffer{} }
func newSealedEventBuffer() *eventBuffer { return &eventBuffer{sealed: true} }

func (b *eventBuffer) raise(e *DomainEvent) error {
	if e == nil {
		return ErrNilMessage
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		b.rejected++
		return fmt.Errorf("raise %q outside a command dispatch: %w", e.Name(), ErrContractViolation)
	}
	b.pending = append(b.pending, e)
	return nil
}

// release drains the buffer, keeping list order.
func (b *eventBuffer) release() []*DomainEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending
	b.pending = nil
	return out
}

func (b *eventBuffer) rejections() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rejected
}

// Raise records a domain event against the command dispatch in ctx. It fails
// with ErrContractViolation outside a command window, query handlers included.
func Raise(ctx context.Context, e *DomainEvent) error {
	buf, ok := eventBufferFromContext(ctx)
	if !ok {
		if e == nil {
			return ErrNilMessage
		}
		return fmt.Errorf("raise %q outside a dispatch: %w", e.Name(), ErrContractViolation)
	}
	return buf.raise(e)
}

// NewDomainEventMiddleware drains and publishes the events a command raised,
// in list order, via pub. Events raised by listeners (returned or via Raise)
// are published recursively; the entire cascade completes before the command
// dispatch returns, and therefore before the lock releases.
//
// For queries it installs a sealed buffer and fails with ErrContractViolation
// if the handler attempted to raise anything.
func NewDomainEventMiddleware(pub EventPublisher) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, msg Message) (any, error) {
			switch msg.Kind() {
			case KindQuery:
				buf := newSealedEventBuffer()
				res, err := next(injectEventBuffer(ctx, buf), msg)
				if err != nil {
					return nil, err
				}
				if n := buf.rejections(); n > 0 {
					return nil, fmt.Errorf("query %q raised %d event(s): %w", msg.Name(), n, ErrContractViolation)
				}
				return res, nil

			case KindCommand:
				buf := newEventBuffer()
				ctx = injectEventBuffer(ctx, buf)

				res, err := next(ctx, msg)
				if err != nil {
					return nil, err
				}
				if res != nil {
					return nil, fmt.Errorf("command %q returned %T: %w", msg.Name(), res, ErrContractViolation)
				}

				for {
					batch := buf.release()
					if len(batch) == 0 {
						return nil, nil
					}
					for _, e := range batch {
						more, err := pub.Publish(ctx, e)
						notify(ctx, BusEvent{
							Type:        EventPublished,
							MessageID:   msg.ID(),
							MessageName: msg.Name(),
							MessageKind: msg.Kind(),
							EventName:   e.Name(),
							Err:         err,
						})
						if err != nil {
							return nil, fmt.Errorf("publish %q: %w", e.Name(), err)
						}
						for _, m := range more {
							if m != nil {
								_ = buf.raise(m)
							}
						}
					}
				}

			default:
				return next(ctx, msg)
			}
		}
	}
}

package xcqrs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// Bus is the central Facade routing every message to exactly one handler
// through the configured middleware chain and resolution pipeline.
type Bus struct {
	extractor   NameExtractor
	locator     HandlerLocator
	inflector   MethodInflector
	publisher   EventPublisher
	middlewares []Middleware
	invoke      HandlerFunc // pre-composed chain around resolveAndInvoke

	clock  xclock.Clock
	logger *xlog.Logger

	observerPool *ObserverPool
	observersMu  sync.RWMutex
	observers    []Observer

	metrics   *busMetrics
	closed    atomic.Bool
	closeOnce sync.Once
}

// busMetrics uses lock-free atomics for dispatch telemetry.
type busMetrics struct {
	commandCount  atomic.Uint64
	queryCount    atomic.Uint64
	eventCount    atomic.Uint64
	enqueuedCount atomic.Uint64
	errorCount    atomic.Uint64
	dispatchNs    atomic.Int64
}

// Dispatch routes a message to its handler. Commands run serialized behind
// the locking middleware and return (nil, err) once their full event cascade
// and queued successors have completed; queries return the handler's result
// immediately and may reenter arbitrarily. Domain events are published, not
// dispatched, and are rejected with ErrContractViolation.
func (b *Bus) Dispatch(ctx context.Context, msg Message) (any, error) {
	if b.closed.Load() {
		return nil, ErrBusClosed
	}
	if msg == nil {
		return nil, ErrNilMessage
	}
	if ctx == nil {
		ctx = context.Background()
	}

	kind := msg.Kind()
	switch kind {
	case KindCommand:
		b.metrics.commandCount.Add(1)
	case KindQuery:
		b.metrics.queryCount.Add(1)
	default:
		b.metrics.errorCount.Add(1)
		return nil, fmt.Errorf("dispatch %s %q: only commands and queries are dispatched: %w",
			kind, msg.Name(), ErrContractViolation)
	}

	ctx = injectLogger(ctx, b.logger)
	ctx = injectClock(ctx, b.clock)
	ctx = injectNotifier(ctx, b.record)

	start := b.clock.Now()
	b.record(BusEvent{
		Type:        DispatchStart,
		MessageID:   msg.ID(),
		MessageName: msg.Name(),
		MessageKind: kind,
	})

	res, err := b.invoke(ctx, msg)

	duration := b.clock.Since(start)
	b.recordDispatchTime(duration.Nanoseconds())
	b.record(BusEvent{
		Type:        DispatchDone,
		MessageID:   msg.ID(),
		MessageName: msg.Name(),
		MessageKind: kind,
		Duration:    duration,
		Err:         err,
	})

	if err != nil {
		b.metrics.errorCount.Add(1)
		return nil, err
	}
	if kind == KindCommand {
		// Command handler return values never reach the caller.
		return nil, nil
	}
	return res, nil
}

// resolveAndInvoke is the innermost link of the chain: name extraction,
// handler location, method inflection, invocation.
func (b *Bus) resolveAndInvoke(ctx context.Context, msg Message) (any, error) {
	name := b.extractor.Extract(msg)
	handler, err := b.locator.Locate(name)
	if err != nil {
		return nil, err
	}
	fn, err := b.inflector.Inflect(handler, name)
	if err != nil {
		return nil, err
	}
	return fn(ctx, msg)
}

// NameExtractor returns the configured name extraction strategy.
func (b *Bus) NameExtractor() NameExtractor { return b.extractor }

// HandlerLocator returns the configured handler location strategy.
func (b *Bus) HandlerLocator() HandlerLocator { return b.locator }

// MethodInflector returns the configured method inflection strategy.
func (b *Bus) MethodInflector() MethodInflector { return b.inflector }

// EventPublisher returns the configured publisher.
func (b *Bus) EventPublisher() EventPublisher { return b.publisher }

// Middlewares returns a copy of the active middleware list, outermost first.
func (b *Bus) Middlewares() []Middleware {
	out := make([]Middleware, len(b.middlewares))
	copy(out, b.middlewares)
	return out
}

// GetMetrics returns current bus metrics.
func (b *Bus) GetMetrics() Metrics {
	var dropped uint64
	if b.observerPool != nil {
		dropped = b.observerPool.Stats().Dropped
	}
	return Metrics{
		Commands:          b.metrics.commandCount.Load(),
		Queries:           b.metrics.queryCount.Load(),
		EventsPublished:   b.metrics.eventCount.Load(),
		CommandsEnqueued:  b.metrics.enqueuedCount.Load(),
		Errors:            b.metrics.errorCount.Load(),
		EventsDropped:     dropped,
		AvgDispatchTimeMs: float64(b.metrics.dispatchNs.Load()) / 1e6,
	}
}

// Close shuts the bus down idempotently. In-flight dispatches finish; new
// dispatches fail with ErrBusClosed.
func (b *Bus) Close(_ context.Context) error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		if b.observerPool != nil {
			if err := b.observerPool.Close(5 * time.Second); err != nil {
				b.logger.Warn().Err(err).Msg("xcqrs: observer pool shutdown timeout")
				closeErr = err
			}
		}
	})
	return closeErr
}

// AddObserver registers an observer (thread-safe).
func (b *Bus) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	b.observersMu.Lock()
	b.observers = append(b.observers, obs)
	b.observersMu.Unlock()
}

// RemoveObserver removes an observer.
func (b *Bus) RemoveObserver(obs Observer) {
	if obs == nil {
		return
	}
	b.observersMu.Lock()
	defer b.observersMu.Unlock()
	for i, o := range b.observers {
		if o == obs {
			b.observers = append(b.observers[:i], b.observers[i+1:]...)
			break
		}
	}
}

// record bumps counters and forwards the event to observers asynchronously.
func (b *Bus) record(e BusEvent) {
	switch e.Type {
	case EventPublished:
		if e.Err == nil {
			b.metrics.eventCount.Add(1)
		}
	case CommandEnqueued:
		b.metrics.enqueuedCount.Add(1)
	}

	if b.observerPool == nil {
		return
	}
	b.observersMu.RLock()
	n := len(b.observers)
	if n == 0 {
		b.observersMu.RUnlock()
		return
	}
	observers := make([]Observer, n)
	copy(observers, b.observers)
	b.observersMu.RUnlock()

	b.observerPool.Notify(e, observers)
}

// recordDispatchTime keeps an exponential moving average of dispatch latency.
func (b *Bus) recordDispatchTime(ns int64) {
	const alpha = 0.2 // weight of the newest sample
	current := b.metrics.dispatchNs.Load()
	if current == 0 {
		b.metrics.dispatchNs.Store(ns)
		return
	}
	b.metrics.dispatchNs.Store(int64(float64(ns)*alpha + float64(current)*(1-alpha)))
}

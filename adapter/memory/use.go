package memory

import (
	"fmt"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xcqrs"
)

// Use builds a Bus wired to a fresh in-process listener registry and installs
// it as the process-wide default. Mirrors the xlog "Use" pattern: explicit
// construction with global install.
//
// Example:
//
//	bus, registry := memory.Use(
//	    memory.WithLogger(logger),
//	    memory.WithLocator(locator),
//	)
//	_ = registry.Register("CustomerRegistered", onCustomerRegistered)
func Use(opts ...Option) (*xcqrs.Bus, *Registry) {
	registry := NewRegistry()

	bb := xcqrs.NewBusBuilder().WithPublisher(registry)
	for _, o := range opts {
		if o != nil {
			o(bb)
		}
	}

	bus, err := bb.Build()
	if err != nil {
		panic(fmt.Errorf("memory.Use: %w", err))
	}

	xcqrs.SetDefault(bus)
	return bus, registry
}

// Option configures the xcqrs.Bus when calling Use.
type Option func(*xcqrs.BusBuilder)

// WithLogger injects a custom xlog logger.
func WithLogger(l *xlog.Logger) Option {
	return func(b *xcqrs.BusBuilder) { b.WithLogger(l) }
}

// WithClock injects a custom xclock clock.
func WithClock(c xclock.Clock) Option {
	return func(b *xcqrs.BusBuilder) { b.WithClock(c) }
}

// WithLocator replaces the handler location strategy.
func WithLocator(l xcqrs.HandlerLocator) Option {
	return func(b *xcqrs.BusBuilder) { b.WithHandlerLocator(l) }
}

// WithNameExtractor replaces the name extraction strategy.
func WithNameExtractor(e xcqrs.NameExtractor) Option {
	return func(b *xcqrs.BusBuilder) { b.WithNameExtractor(e) }
}

// WithMethodInflector replaces the method inflection strategy.
func WithMethodInflector(i xcqrs.MethodInflector) Option {
	return func(b *xcqrs.BusBuilder) { b.WithMethodInflector(i) }
}

// WithMiddleware appends user middlewares (validation, retry, timeout, etc).
func WithMiddleware(mw ...xcqrs.Middleware) Option {
	return func(b *xcqrs.BusBuilder) { b.WithMiddleware(mw...) }
}

// WithObserver attaches observers for lifecycle events.
func WithObserver(obs ...xcqrs.Observer) Option {
	return func(b *xcqrs.BusBuilder) { b.WithObserver(obs...) }
}

// WithObserverPool configures the async observer pool.
func WithObserverPool(workers, bufferSize int) Option {
	return func(b *xcqrs.BusBuilder) { b.WithObserverPool(workers, bufferSize) }
}

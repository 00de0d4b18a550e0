package xcqrs

import (
	"context"
)

// Handler executes the logic for one command or query type.
// Command handlers return a nil result; query handlers return exactly one.
type Handler interface {
	Handle(ctx context.Context, msg Message) (any, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, msg Message) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, msg Message) (any, error) { return f(ctx, msg) }

// Middleware composes dispatch concerns around a HandlerFunc.
type Middleware func(next HandlerFunc) HandlerFunc

// NameExtractor is the Strategy mapping a message to its logical name.
type NameExtractor interface {
	Extract(msg Message) string
}

// NameExtractorFunc is an Adapter that lets a function satisfy NameExtractor.
type NameExtractorFunc func(msg Message) string

func (f NameExtractorFunc) Extract(msg Message) string { return f(msg) }

// HandlerLocator is the Strategy mapping a logical name to a handler value.
// The value may be a Handler, a callable, or any type a MethodInflector can
// resolve a method on.
type HandlerLocator interface {
	Locate(name string) (any, error)
}

// LocatorFunc is an Adapter that lets a factory function satisfy HandlerLocator.
type LocatorFunc func(name string) (any, error)

func (f LocatorFunc) Locate(name string) (any, error) { return f(name) }

// MethodInflector is the Strategy mapping a located handler and logical name
// to the invocation to run.
type MethodInflector interface {
	Inflect(handler any, name string) (HandlerFunc, error)
}

// BusAware locators receive the bus after construction so the handlers they
// build can dispatch nested messages.
type BusAware interface {
	SetBus(b *Bus)
}

// Listener consumes one published domain event and may return further events,
// which are published in turn before the dispatch that raised them returns.
type Listener func(ctx context.Context, e *DomainEvent) ([]*DomainEvent, error)

// EventPublisher fans a domain event out to registered listeners and reports
// any events those listeners raised.
type EventPublisher interface {
	Publish(ctx context.Context, e *DomainEvent) ([]*DomainEvent, error)
}

// ListenerRegistry is the capability concrete fan-out adapters satisfy.
// Discovery conventions live in the adapters, not here.
type ListenerRegistry interface {
	EventPublisher
	Register(eventName string, l Listener) error
}

// Observer receives bus lifecycle events. Implementations should be non-blocking.
type Observer interface {
	OnEvent(e BusEvent)
}

// API is the complete xcqrs dispatch surface.
type API interface {
	Dispatch(ctx context.Context, msg Message) (any, error)
	Close(ctx context.Context) error
	GetMetrics() Metrics
	AddObserver(obs Observer)
	RemoveObserver(obs Observer)
}

var _ API = (*Bus)(nil)

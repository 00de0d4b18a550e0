package xcqrs

import (
	"context"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// BusBuilder constructs Bus instances (Builder pattern). Every strategy is
// independently replaceable; zero configuration yields a working bus with the
// standard command discipline (locking + domain events).
type BusBuilder struct {
	extractor NameExtractor
	locator   HandlerLocator
	inflector MethodInflector
	publisher EventPublisher

	userMW  []Middleware
	fullMW  []Middleware
	fullSet bool

	observers   []Observer
	logger      *xlog.Logger
	clock       xclock.Clock
	poolWorkers int
	poolBuffer  int
}

// NewBusBuilder returns a builder with sensible defaults.
func NewBusBuilder() *BusBuilder {
	return &BusBuilder{}
}

// WithNameExtractor replaces the name extraction strategy.
func (bb *BusBuilder) WithNameExtractor(e NameExtractor) *BusBuilder {
	bb.extractor = e
	return bb
}

// WithHandlerLocator replaces the handler location strategy.
func (bb *BusBuilder) WithHandlerLocator(l HandlerLocator) *BusBuilder {
	bb.locator = l
	return bb
}

// WithMethodInflector replaces the method inflection strategy.
func (bb *BusBuilder) WithMethodInflector(i MethodInflector) *BusBuilder {
	bb.inflector = i
	return bb
}

// WithPublisher sets the event publisher domain events fan out through.
func (bb *BusBuilder) WithPublisher(p EventPublisher) *BusBuilder {
	bb.publisher = p
	return bb
}

// WithMiddleware appends user middlewares after the standard pair
// (locking, domain events). Order is significant: first listed is outermost.
func (bb *BusBuilder) WithMiddleware(mw ...Middleware) *BusBuilder {
	if len(mw) == 0 {
		return bb
	}
	bb.userMW = append(bb.userMW, mw...)
	return bb
}

// WithMiddlewareList replaces the entire middleware list, standard pair
// included. An empty list disables all cross-cutting behavior: no command
// locking, no event publishing. Compose NewLockingMiddleware and
// NewDomainEventMiddleware back in explicitly when ordering around them.
// Panic recovery around the handler invocation is not part of the list and
// stays active regardless, so a panicking handler always surfaces as an error.
func (bb *BusBuilder) WithMiddlewareList(mws ...Middleware) *BusBuilder {
	bb.fullMW = mws
	bb.fullSet = true
	return bb
}

// WithObserver attaches observers for bus lifecycle events.
func (bb *BusBuilder) WithObserver(obs ...Observer) *BusBuilder {
	for _, o := range obs {
		if o != nil {
			bb.observers = append(bb.observers, o)
		}
	}
	return bb
}

// WithLogger injects a custom xlog logger.
func (bb *BusBuilder) WithLogger(l *xlog.Logger) *BusBuilder {
	bb.logger = l
	return bb
}

// WithClock injects a custom xclock clock.
func (bb *BusBuilder) WithClock(c xclock.Clock) *BusBuilder {
	bb.clock = c
	return bb
}

// WithObserverPool sizes the async observer dispatch pool.
func (bb *BusBuilder) WithObserverPool(workers, bufferSize int) *BusBuilder {
	bb.poolWorkers = workers
	bb.poolBuffer = bufferSize
	return bb
}

func (bb *BusBuilder) Build() (*Bus, error) {
	extractor := bb.extractor
	if extractor == nil {
		extractor = TypeNameExtractor{}
	}
	locator := bb.locator
	if locator == nil {
		locator = NewMapLocator()
	}
	inflector := bb.inflector
	if inflector == nil {
		inflector = HandleInflector{}
	}
	publisher := bb.publisher
	if publisher == nil {
		publisher = NopPublisher{}
	}

	clk := bb.clock
	if clk == nil {
		clk = xclock.Default()
	}
	lg := bb.logger
	if lg == nil {
		lg = xlog.Default()
	}

	var mws []Middleware
	if bb.fullSet {
		mws = bb.fullMW
	} else {
		mws = append([]Middleware{
			NewLockingMiddleware(),
			NewDomainEventMiddleware(publisher),
		}, bb.userMW...)
	}

	b := &Bus{
		extractor:   extractor,
		locator:     locator,
		inflector:   inflector,
		publisher:   publisher,
		middlewares: mws,
		clock:       clk,
		logger:      lg,
		metrics:     &busMetrics{},
	}

	// Panic recovery sits innermost so a handler panic surfaces as an error
	// and still unwinds through locking.
	core := RecoveryMiddleware()(HandlerFunc(b.resolveAndInvoke))
	b.invoke = Chain(core, mws...)

	b.observerPool = NewObserverPool(context.Background(), bb.poolWorkers, bb.poolBuffer)

	// Attach logging observer first for dependable telemetry unless already
	// supplied externally.
	hasLoggingObserver := false
	for _, o := range bb.observers {
		if _, ok := o.(LoggingObserver); ok {
			hasLoggingObserver = true
			break
		}
	}
	if !hasLoggingObserver {
		b.AddObserver(LoggingObserver{Logger: lg})
	}
	for _, o := range bb.observers {
		b.AddObserver(o)
	}

	if aware, ok := locator.(BusAware); ok {
		aware.SetBus(b)
	}

	return b, nil
}

// New constructs a Bus via Builder and returns a close func for convenience.
func New(init func(b *BusBuilder)) (*Bus, func() error, error) {
	bb := NewBusBuilder()
	if init != nil {
		init(bb)
	}
	bus, err := bb.Build()
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() error { return bus.Close(context.Background()) }
	return bus, closeFn, nil
}

package xcqrs

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// TypeNameExtractor is the default name extraction Strategy: the message's
// short type name stamped at construction.
type TypeNameExtractor struct{}

func (TypeNameExtractor) Extract(msg Message) string { return msg.Name() }

// SelfNamingExtractor honors a SelfNaming source struct and falls back to the
// type name otherwise.
type SelfNamingExtractor struct{}

func (SelfNamingExtractor) Extract(msg Message) string {
	if sn, ok := msg.env().source.(SelfNaming); ok {
		return sn.MessageName()
	}
	return msg.Name()
}

// MapLocator is the default handler location Strategy: an explicit
// name -> factory table built at startup.
type MapLocator struct {
	mu        sync.RWMutex
	factories map[string]func() any
}

func NewMapLocator() *MapLocator {
	return &MapLocator{factories: make(map[string]func() any)}
}

// Register binds a handler factory to a logical name. A fresh handler is
// built per dispatch, so factories may capture per-dispatch state.
func (l *MapLocator) Register(name string, factory func() any) error {
	if name == "" {
		return fmt.Errorf("xcqrs: locator registration with empty name")
	}
	if factory == nil {
		return fmt.Errorf("xcqrs: locator registration %q with nil factory", name)
	}
	l.mu.Lock()
	l.factories[name] = factory
	l.mu.Unlock()
	return nil
}

// RegisterFunc binds a plain function handler to a logical name.
func (l *MapLocator) RegisterFunc(name string, fn HandlerFunc) error {
	if fn == nil {
		return fmt.Errorf("xcqrs: locator registration %q with nil handler", name)
	}
	return l.Register(name, func() any { return fn })
}

func (l *MapLocator) Locate(name string) (any, error) {
	l.mu.RLock()
	f, ok := l.factories[name]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrHandlerNotFound, name)
	}
	return f(), nil
}

// Names lists the registered logical names, sorted.
func (l *MapLocator) Names() []string {
	l.mu.RLock()
	names := lo.Keys(l.factories)
	l.mu.RUnlock()
	sort.Strings(names)
	return names
}

// SuffixLocator retains the naming convention Command -> CommandHandler and
// Query -> QueryHandler: handler factories are registered under the handler
// type name and looked up by substituting the suffix in the message's logical
// name. Factories receive the bus so handlers can dispatch nested messages.
type SuffixLocator struct {
	mu        sync.RWMutex
	factories map[string]func(b *Bus) any
	bus       *Bus
}

func NewSuffixLocator() *SuffixLocator {
	return &SuffixLocator{factories: make(map[string]func(b *Bus) any)}
}

func (l *SuffixLocator) SetBus(b *Bus) {
	l.mu.Lock()
	l.bus = b
	l.mu.Unlock()
}

// Register binds a factory under its handler name, e.g. "RegisterCustomerCommandHandler".
func (l *SuffixLocator) Register(handlerName string, factory func(b *Bus) any) error {
	if handlerName == "" {
		return fmt.Errorf("xcqrs: locator registration with empty handler name")
	}
	if factory == nil {
		return fmt.Errorf("xcqrs: locator registration %q with nil factory", handlerName)
	}
	l.mu.Lock()
	l.factories[handlerName] = factory
	l.mu.Unlock()
	return nil
}

func (l *SuffixLocator) Locate(name string) (any, error) {
	handlerName := HandlerNameFor(name)
	l.mu.RLock()
	f, ok := l.factories[handlerName]
	bus := l.bus
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (handler %q)", ErrHandlerNotFound, name, handlerName)
	}
	return f(bus), nil
}

// Names lists the registered handler names, sorted.
func (l *SuffixLocator) Names() []string {
	l.mu.RLock()
	names := lo.Keys(l.factories)
	l.mu.RUnlock()
	sort.Strings(names)
	return names
}

// HandlerNameFor substitutes Command -> CommandHandler or Query -> QueryHandler
// in the unqualified part of a logical name, preserving any dotted prefix.
func HandlerNameFor(name string) string {
	prefix := ""
	short := name
	if i := strings.LastIndex(name, "."); i >= 0 {
		prefix, short = name[:i+1], name[i+1:]
	}
	if strings.Contains(short, "Command") {
		return prefix + strings.Replace(short, "Command", "CommandHandler", 1)
	}
	if strings.Contains(short, "Query") {
		return prefix + strings.Replace(short, "Query", "QueryHandler", 1)
	}
	return prefix + short + "Handler"
}

// HandleInflector is the default method inflection Strategy: the fixed Handle
// method.
type HandleInflector struct{}

func (HandleInflector) Inflect(handler any, _ string) (HandlerFunc, error) {
	if h, ok := handler.(Handler); ok {
		return h.Handle, nil
	}
	if fn, err := adaptCallable(handler); err == nil {
		return fn, nil
	}
	return methodByName(handler, "Handle")
}

// NamedMethodInflector resolves a method named after the full logical name
// (default prefix "Handle"), letting one handler service several message types.
type NamedMethodInflector struct {
	Prefix string
}

func (i NamedMethodInflector) Inflect(handler any, name string) (HandlerFunc, error) {
	prefix := i.Prefix
	if prefix == "" {
		prefix = "Handle"
	}
	return methodByName(handler, prefix+name)
}

// SuffixStrippingInflector is NamedMethodInflector with a suffix removed from
// the logical name first, e.g. RegisterCustomerCommand -> HandleRegisterCustomer.
type SuffixStrippingInflector struct {
	Prefix string
	Suffix string
}

func (i SuffixStrippingInflector) Inflect(handler any, name string) (HandlerFunc, error) {
	prefix := i.Prefix
	if prefix == "" {
		prefix = "Handle"
	}
	return methodByName(handler, prefix+strings.TrimSuffix(name, i.Suffix))
}

// CallableInflector invokes the located handler directly as a callable.
type CallableInflector struct{}

func (CallableInflector) Inflect(handler any, name string) (HandlerFunc, error) {
	fn, err := adaptCallable(handler)
	if err != nil {
		return nil, fmt.Errorf("handler for %q is not callable: %w", name, ErrMethodNotFound)
	}
	return fn, nil
}

func methodByName(handler any, method string) (HandlerFunc, error) {
	if handler == nil {
		return nil, fmt.Errorf("nil handler for method %q: %w", method, ErrMethodNotFound)
	}
	m := reflect.ValueOf(handler).MethodByName(method)
	if !m.IsValid() {
		return nil, fmt.Errorf("%T has no method %q: %w", handler, method, ErrMethodNotFound)
	}
	fn, err := adaptCallable(m.Interface())
	if err != nil {
		return nil, fmt.Errorf("%T.%s: %w", handler, method, err)
	}
	return fn, nil
}

// adaptCallable normalizes supported handler signatures to HandlerFunc.
func adaptCallable(v any) (HandlerFunc, error) {
	switch f := v.(type) {
	case HandlerFunc:
		return f, nil
	case func(ctx context.Context, msg Message) (any, error):
		return f, nil
	case func(ctx context.Context, msg Message) error:
		return func(ctx context.Context, msg Message) (any, error) {
			return nil, f(ctx, msg)
		}, nil
	}
	return nil, fmt.Errorf("unsupported handler signature %T: %w", v, ErrMethodNotFound)
}

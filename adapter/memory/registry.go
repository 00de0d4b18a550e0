package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/trickstertwo/xcqrs"
)

// DefaultPrefix is the listener-key convention: an event named
// CustomerRegistered fans out to listeners registered as onCustomerRegistered.
const DefaultPrefix = "on"

// Registry implements xcqrs.ListenerRegistry with an in-process listener map.
// Fan-out is synchronous; the order listeners run in within one event is not
// part of the contract.
type Registry struct {
	prefix string

	mu        sync.RWMutex
	listeners map[string][]xcqrs.Listener
}

var _ xcqrs.ListenerRegistry = (*Registry)(nil)

// NewRegistry creates an empty registry with the default "on" prefix.
func NewRegistry() *Registry {
	return NewRegistryWithPrefix(DefaultPrefix)
}

// NewRegistryWithPrefix creates an empty registry with a custom listener-key
// prefix.
func NewRegistryWithPrefix(prefix string) *Registry {
	return &Registry{
		prefix:    prefix,
		listeners: make(map[string][]xcqrs.Listener),
	}
}

// ListenerKey returns the registry key for an event name, e.g.
// "CustomerRegistered" -> "onCustomerRegistered".
func (r *Registry) ListenerKey(eventName string) string {
	return r.prefix + eventName
}

// Register attaches a listener to an event name (the event's short type name,
// without prefix).
func (r *Registry) Register(eventName string, l xcqrs.Listener) error {
	if eventName == "" {
		return errors.New("memory: listener registration with empty event name")
	}
	if l == nil {
		return errors.New("memory: nil listener for " + eventName)
	}
	key := r.ListenerKey(eventName)
	r.mu.Lock()
	r.listeners[key] = append(r.listeners[key], l)
	r.mu.Unlock()
	return nil
}

// Publish fans the event out to every listener registered for it and returns
// the events those listeners raised. Unknown events are a no-op.
func (r *Registry) Publish(ctx context.Context, e *xcqrs.DomainEvent) ([]*xcqrs.DomainEvent, error) {
	if e == nil {
		return nil, xcqrs.ErrNilMessage
	}
	r.mu.RLock()
	ls := r.listeners[r.ListenerKey(e.Name())]
	r.mu.RUnlock()

	var raised []*xcqrs.DomainEvent
	for _, l := range ls {
		more, err := l(ctx, e)
		if err != nil {
			return nil, err
		}
		raised = append(raised, more...)
	}
	return raised, nil
}

// ListenerKeys lists the registered listener keys, sorted.
func (r *Registry) ListenerKeys() []string {
	r.mu.RLock()
	keys := lo.Keys(r.listeners)
	r.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

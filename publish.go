package xcqrs

import (
	"context"
	"fmt"
)

// NopPublisher drops every event. It is the builder default so a bus without
// listeners still honors the command contract.
type NopPublisher struct{}

func (NopPublisher) Publish(_ context.Context, _ *DomainEvent) ([]*DomainEvent, error) {
	return nil, nil
}

// CompositePublisher fans each event out to several publishers in order,
// e.g. an in-process listener registry mirrored to a Redis stream. Events
// raised by listeners of all branches are collected; the first error aborts.
type CompositePublisher struct {
	pubs []EventPublisher
}

func NewCompositePublisher(pubs ...EventPublisher) *CompositePublisher {
	kept := make([]EventPublisher, 0, len(pubs))
	for _, p := range pubs {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &CompositePublisher{pubs: kept}
}

func (c *CompositePublisher) Publish(ctx context.Context, e *DomainEvent) ([]*DomainEvent, error) {
	var raised []*DomainEvent
	for _, p := range c.pubs {
		more, err := p.Publish(ctx, e)
		if err != nil {
			return nil, fmt.Errorf("composite publish %q: %w", e.Name(), err)
		}
		raised = append(raised, more...)
	}
	return raised, nil
}

package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xcqrs"
)

func TestRegistry_ListenerKey(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, "onCustomerRegistered", r.ListenerKey("CustomerRegistered"))

	custom := NewRegistryWithPrefix("when")
	assert.Equal(t, "whenCustomerRegistered", custom.ListenerKey("CustomerRegistered"))
}

func TestRegistry_RegisterValidation(t *testing.T) {
	r := NewRegistry()
	require.Error(t, r.Register("", func(context.Context, *xcqrs.DomainEvent) ([]*xcqrs.DomainEvent, error) {
		return nil, nil
	}))
	require.Error(t, r.Register("CustomerRegistered", nil))
}

func TestRegistry_PublishFansOut(t *testing.T) {
	r := NewRegistry()

	calls := 0
	listener := func(_ context.Context, e *xcqrs.DomainEvent) ([]*xcqrs.DomainEvent, error) {
		calls++
		name, err := xcqrs.FieldAs[string](e, "name")
		if err != nil {
			return nil, err
		}
		assert.Equal(t, "Ada", name)
		return nil, nil
	}
	require.NoError(t, r.Register("CustomerRegistered", listener))
	require.NoError(t, r.Register("CustomerRegistered", listener))

	raised, err := r.Publish(context.Background(), xcqrs.NewEvent("CustomerRegistered", xcqrs.Fields{"name": "Ada"}))
	require.NoError(t, err)
	assert.Nil(t, raised)
	assert.Equal(t, 2, calls)
}

func TestRegistry_PublishCollectsRaisedEvents(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("CustomerRegistered", func(_ context.Context, e *xcqrs.DomainEvent) ([]*xcqrs.DomainEvent, error) {
		return []*xcqrs.DomainEvent{xcqrs.NewEvent("WelcomeMailQueued", e.Fields())}, nil
	}))

	raised, err := r.Publish(context.Background(), xcqrs.NewEvent("CustomerRegistered", xcqrs.Fields{"name": "Ada"}))
	require.NoError(t, err)
	require.Len(t, raised, 1)
	assert.Equal(t, "WelcomeMailQueued", raised[0].Name())
}

func TestRegistry_PublishUnknownEventIsNoop(t *testing.T) {
	r := NewRegistry()
	raised, err := r.Publish(context.Background(), xcqrs.NewEvent("NeverSeen", nil))
	require.NoError(t, err)
	assert.Nil(t, raised)
}

func TestRegistry_PublishNilEvent(t *testing.T) {
	r := NewRegistry()
	_, err := r.Publish(context.Background(), nil)
	require.ErrorIs(t, err, xcqrs.ErrNilMessage)
}

func TestRegistry_ListenerErrorAborts(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("listener failed")
	require.NoError(t, r.Register("E", func(context.Context, *xcqrs.DomainEvent) ([]*xcqrs.DomainEvent, error) {
		return nil, boom
	}))

	_, err := r.Publish(context.Background(), xcqrs.NewEvent("E", nil))
	require.ErrorIs(t, err, boom)
}

func TestRegistry_ListenerKeysSorted(t *testing.T) {
	r := NewRegistry()
	noop := func(context.Context, *xcqrs.DomainEvent) ([]*xcqrs.DomainEvent, error) { return nil, nil }
	require.NoError(t, r.Register("B", noop))
	require.NoError(t, r.Register("A", noop))

	assert.Equal(t, []string{"onA", "onB"}, r.ListenerKeys())
}

func TestUse_WiresRegistryAndDefault(t *testing.T) {
	locator := xcqrs.NewMapLocator()
	require.NoError(t, locator.RegisterFunc("RegisterCustomer", func(ctx context.Context, msg xcqrs.Message) (any, error) {
		name, err := xcqrs.FieldAs[string](msg, "name")
		if err != nil {
			return nil, err
		}
		return nil, xcqrs.Raise(ctx, xcqrs.NewEvent("CustomerRegistered", xcqrs.Fields{"name": name}))
	}))

	bus, registry := Use(WithLocator(locator))
	t.Cleanup(func() { _ = bus.Close(context.Background()) })
	assert.Same(t, bus, xcqrs.Default())

	var welcomed []string
	require.NoError(t, registry.Register("CustomerRegistered", func(_ context.Context, e *xcqrs.DomainEvent) ([]*xcqrs.DomainEvent, error) {
		name, _ := xcqrs.FieldAs[string](e, "name")
		welcomed = append(welcomed, name)
		return nil, nil
	}))

	_, err := xcqrs.Dispatch(context.Background(), xcqrs.NewCommand("RegisterCustomer", xcqrs.Fields{"name": "Ada"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada"}, welcomed)
}

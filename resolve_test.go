package xcqrs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeNameExtractor(t *testing.T) {
	cmd := NewCommand("RegisterCustomer", nil)
	assert.Equal(t, "RegisterCustomer", TypeNameExtractor{}.Extract(cmd))
}

func TestSelfNamingExtractor(t *testing.T) {
	named := CommandFrom(RegisterCustomer{Name: "Ada"})
	assert.Equal(t, "customers.Register", SelfNamingExtractor{}.Extract(named))

	// Field-table messages have no source to consult.
	plain := NewCommand("RegisterCustomer", Fields{"name": "Ada"})
	assert.Equal(t, "RegisterCustomer", SelfNamingExtractor{}.Extract(plain))
}

func TestMapLocator(t *testing.T) {
	l := NewMapLocator()

	require.Error(t, l.Register("", func() any { return nil }))
	require.Error(t, l.Register("X", nil))

	require.NoError(t, l.RegisterFunc("FindCustomer", func(context.Context, Message) (any, error) {
		return "dto", nil
	}))
	require.NoError(t, l.Register("RegisterCustomer", func() any {
		return HandlerFunc(func(context.Context, Message) (any, error) { return nil, nil })
	}))

	h, err := l.Locate("FindCustomer")
	require.NoError(t, err)
	require.NotNil(t, h)

	_, err = l.Locate("RemoveCustomer")
	require.ErrorIs(t, err, ErrHandlerNotFound)

	assert.Equal(t, []string{"FindCustomer", "RegisterCustomer"}, l.Names())
}

func TestHandlerNameFor(t *testing.T) {
	cases := map[string]string{
		"RegisterCustomerCommand": "RegisterCustomerCommandHandler",
		"FindCustomerQuery":       "FindCustomerQueryHandler",
		"billing.ChargeCommand":   "billing.ChargeCommandHandler",
		"RegisterCustomer":        "RegisterCustomerHandler",
	}
	for in, want := range cases {
		assert.Equal(t, want, HandlerNameFor(in), "input %q", in)
	}
}

func TestSuffixLocator(t *testing.T) {
	l := NewSuffixLocator()
	bus := &Bus{}
	l.SetBus(bus)

	var gotBus *Bus
	require.NoError(t, l.Register("RegisterCustomerCommandHandler", func(b *Bus) any {
		gotBus = b
		return HandlerFunc(func(context.Context, Message) (any, error) { return nil, nil })
	}))

	h, err := l.Locate("RegisterCustomerCommand")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Same(t, bus, gotBus)

	_, err = l.Locate("RemoveCustomerCommand")
	require.ErrorIs(t, err, ErrHandlerNotFound)

	assert.Equal(t, []string{"RegisterCustomerCommandHandler"}, l.Names())
}

type errOnlyHandler struct{ called bool }

func (h *errOnlyHandler) Handle(context.Context, Message) error {
	h.called = true
	return nil
}

type multiHandler struct{ hits []string }

func (h *multiHandler) HandleRegisterCustomer(context.Context, Message) (any, error) {
	h.hits = append(h.hits, "register")
	return nil, nil
}

func (h *multiHandler) HandleFindCustomer(context.Context, Message) (any, error) {
	h.hits = append(h.hits, "find")
	return "dto", nil
}

func TestHandleInflector(t *testing.T) {
	ctx := context.Background()
	msg := NewCommand("RegisterCustomer", nil)

	t.Run("handler interface", func(t *testing.T) {
		fn, err := HandleInflector{}.Inflect(&registerProbe{}, "RegisterCustomer")
		require.NoError(t, err)
		_, err = fn(ctx, msg)
		require.NoError(t, err)
	})

	t.Run("plain func", func(t *testing.T) {
		called := false
		fn, err := HandleInflector{}.Inflect(func(context.Context, Message) error {
			called = true
			return nil
		}, "RegisterCustomer")
		require.NoError(t, err)
		_, err = fn(ctx, msg)
		require.NoError(t, err)
		assert.True(t, called)
	})

	t.Run("handle method via reflection", func(t *testing.T) {
		h := &errOnlyHandler{}
		fn, err := HandleInflector{}.Inflect(h, "RegisterCustomer")
		require.NoError(t, err)
		_, err = fn(ctx, msg)
		require.NoError(t, err)
		assert.True(t, h.called)
	})

	t.Run("no handle method", func(t *testing.T) {
		_, err := HandleInflector{}.Inflect(struct{}{}, "RegisterCustomer")
		require.ErrorIs(t, err, ErrMethodNotFound)
	})

	t.Run("nil handler", func(t *testing.T) {
		_, err := HandleInflector{}.Inflect(nil, "RegisterCustomer")
		require.ErrorIs(t, err, ErrMethodNotFound)
	})
}

type registerProbe struct{}

func (registerProbe) Handle(context.Context, Message) (any, error) { return nil, nil }

func TestNamedMethodInflector(t *testing.T) {
	h := &multiHandler{}

	fn, err := NamedMethodInflector{}.Inflect(h, "RegisterCustomer")
	require.NoError(t, err)
	_, err = fn(context.Background(), NewCommand("RegisterCustomer", nil))
	require.NoError(t, err)

	fn, err = NamedMethodInflector{}.Inflect(h, "FindCustomer")
	require.NoError(t, err)
	res, err := fn(context.Background(), NewQuery("FindCustomer", nil))
	require.NoError(t, err)
	assert.Equal(t, "dto", res)

	assert.Equal(t, []string{"register", "find"}, h.hits)

	_, err = NamedMethodInflector{}.Inflect(h, "RemoveCustomer")
	require.ErrorIs(t, err, ErrMethodNotFound)
}

func TestSuffixStrippingInflector(t *testing.T) {
	h := &multiHandler{}

	fn, err := SuffixStrippingInflector{Suffix: "Command"}.Inflect(h, "RegisterCustomerCommand")
	require.NoError(t, err)
	_, err = fn(context.Background(), NewCommand("RegisterCustomerCommand", nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"register"}, h.hits)
}

func TestCallableInflector(t *testing.T) {
	fn, err := CallableInflector{}.Inflect(HandlerFunc(func(context.Context, Message) (any, error) {
		return 42, nil
	}), "FindCustomer")
	require.NoError(t, err)
	res, err := fn(context.Background(), NewQuery("FindCustomer", nil))
	require.NoError(t, err)
	assert.Equal(t, 42, res)

	_, err = CallableInflector{}.Inflect(&multiHandler{}, "FindCustomer")
	require.ErrorIs(t, err, ErrMethodNotFound)
}

package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ping struct{ Msg string }

func (ping) Key() string { return "test.ping" }

type other struct{}

func (other) Key() string { return "test.other" }

func Test_Dispatch_RoutesToTypedHandler(t *testing.T) {
	bus := NewInMemoryBus()
	RegisterHandler[ping, string](bus, "test.ping", HandlerFunc[ping, string](func(_ context.Context, cmd ping) (string, error) {
		return "pong:" + cmd.Msg, nil
	}))

	out, err := Dispatch[ping, string](context.Background(), bus, ping{Msg: "a"})

	require.NoError(t, err)
	assert.Equal(t, "pong:a", out)
	assert.Equal(t, []string{"test.ping"}, bus.Keys())
}

func Test_Dispatch_Errors(t *testing.T) {
	bus := NewInMemoryBus()
	RegisterHandler[ping, string](bus, "test.ping", HandlerFunc[ping, string](func(context.Context, ping) (string, error) {
		return "x", nil
	}))

	_, err := Dispatch[other, string](context.Background(), bus, other{})
	assert.ErrorIs(t, err, ErrHandlerNotFound)

	_, err = Dispatch[ping, int](context.Background(), bus, ping{})
	assert.ErrorIs(t, err, ErrResultType)

	_, err = Dispatch[ping, string](context.Background(), nil, ping{})
	assert.ErrorIs(t, err, ErrNilBus)
}

func Test_RegisterHandler_PanicsOnDuplicateKey(t *testing.T) {
	bus := NewInMemoryBus()
	h := HandlerFunc[ping, string](func(context.Context, ping) (string, error) { return "", nil })
	RegisterHandler[ping, string](bus, "test.ping", h)

	assert.Panics(t, func() { RegisterHandler[ping, string](bus, "test.ping", h) })
	assert.Panics(t, func() { RegisterHandler[ping, string](bus, "", h) })
}

package commands

import (
	"context"
	"errors"
	"fmt"
)

// Command is a write intent. Key routes it to exactly one handler and names
// the operation in logs, spans and stored idempotent replies.
type Command interface {
	Key() string
}

type Handler[C Command, R any] interface {
	Handle(ctx context.Context, cmd C) (R, error)
}

type HandlerFunc[C Command, R any] func(ctx context.Context, cmd C) (R, error)

func (f HandlerFunc[C, R]) Handle(ctx context.Context, cmd C) (R, error) { return f(ctx, cmd) }

// Bus is untyped so middlewares can sit between callers and handlers
// without knowing result types. Callers use Dispatch for the typed view.
type Bus interface {
	Dispatch(ctx context.Context, cmd Command) (any, error)
}

var (
	ErrNilBus          = errors.New("commands: nil bus")
	ErrHandlerNotFound = errors.New("commands: no handler registered")
	ErrInvalidCommand  = errors.New("commands: command does not fit handler")
	ErrResultType      = errors.New("commands: unexpected result type")
)

func Dispatch[C Command, R any](ctx context.Context, bus Bus, cmd C) (R, error) {
	if bus == nil {
		var zero R
		return zero, ErrNilBus
	}
	res, err := bus.Dispatch(ctx, cmd)
	if err != nil {
		var zero R
		return zero, err
	}
	return typed[R](cmd.Key(), res)
}

// typed treats a nil result as the zero value; idempotent replays of empty
// results come back that way.
func typed[R any](key string, res any) (R, error) {
	var zero R
	if res == nil {
		return zero, nil
	}
	if v, ok := res.(R); ok {
		return v, nil
	}
	return zero, fmt.Errorf("%w: %s returned %T, want %T", ErrResultType, key, res, zero)
}

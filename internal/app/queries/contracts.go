package queries

import (
	"context"
	"errors"
	"fmt"
)

// Query reads state and never writes. Key routes it to its handler.
type Query interface {
	Key() string
}

type Handler[Q Query, R any] interface {
	Handle(ctx context.Context, query Q) (R, error)
}

type HandlerFunc[Q Query, R any] func(ctx context.Context, query Q) (R, error)

func (f HandlerFunc[Q, R]) Handle(ctx context.Context, query Q) (R, error) { return f(ctx, query) }

type Bus interface {
	Ask(ctx context.Context, query Query) (any, error)
}

var (
	ErrNilBus          = errors.New("queries: nil bus")
	ErrHandlerNotFound = errors.New("queries: no handler registered")
	ErrInvalidQuery    = errors.New("queries: query does not fit handler")
	ErrResultType      = errors.New("queries: unexpected result type")
)

// Ask is the typed entry point used by transports.
func Ask[Q Query, R any](ctx context.Context, bus Bus, query Q) (R, error) {
	var zero R
	if bus == nil {
		return zero, ErrNilBus
	}
	res, err := bus.Ask(ctx, query)
	switch {
	case err != nil:
		return zero, err
	case res == nil:
		return zero, nil
	}
	v, ok := res.(R)
	if !ok {
		return zero, fmt.Errorf("%w: %s returned %T", ErrResultType, query.Key(), res)
	}
	return v, nil
}

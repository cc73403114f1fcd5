package queries

import (
	"context"
	"fmt"
)

// InMemoryBus routes each query to the handler registered under its key.
// Routes are fixed at startup.
type InMemoryBus struct {
	routes map[string]func(context.Context, Query) (any, error)
}

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{routes: map[string]func(context.Context, Query) (any, error){}}
}

func (b *InMemoryBus) Ask(ctx context.Context, query Query) (any, error) {
	if query == nil {
		return nil, ErrInvalidQuery
	}
	route, ok := b.routes[query.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, query.Key())
	}
	return route(ctx, query)
}

// RegisterHandler panics on an empty or already taken key.
func RegisterHandler[Q Query, R any](bus *InMemoryBus, key string, handler Handler[Q, R]) {
	switch {
	case bus == nil:
		panic("queries: nil bus")
	case handler == nil:
		panic("queries: nil handler for " + key)
	case key == "":
		panic("queries: empty key")
	}
	if _, taken := bus.routes[key]; taken {
		panic("queries: duplicate handler for " + key)
	}
	bus.routes[key] = func(ctx context.Context, raw Query) (any, error) {
		query, ok := raw.(Q)
		if !ok {
			return nil, fmt.Errorf("%w: %s got %T", ErrInvalidQuery, key, raw)
		}
		return handler.Handle(ctx, query)
	}
}

package cqrs

import "context"

// DefaultQueryBus is a simple implementation of the QueryBus interface.
type DefaultQueryBus struct {
	*Bus
}

// NewQueryBus creates a new DefaultQueryBus.
func NewQueryBus() *DefaultQueryBus {
	return &DefaultQueryBus{
		Bus: NewBus("query", 2),
	}
}

// Dispatch sends a query to its appropriate handler and returns the result.
func (b *DefaultQueryBus) Dispatch(ctx context.Context, query Query) (interface{}, error) {
	results, err := b.call(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := errorResult(results[1]); err != nil {
		return nil, err
	}
	return results[0].Interface(), nil
}

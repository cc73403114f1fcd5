package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"staybook/internal/domain/shared/domainerr"
)

var ErrStaleVersion = errors.New("mongo: concurrent update detected")

// classify maps driver failures onto the error taxonomy. Write conflicts
// between transactions and lost connections are retryable.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var se mongo.ServerError
	if errors.As(err, &se) && (se.HasErrorLabel("TransientTransactionError") || se.HasErrorCode(112)) {
		return domainerr.Transient(op, err)
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return domainerr.Transient(op, err)
	}
	return err
}

func stale(op string) error {
	return domainerr.Transient(op, ErrStaleVersion)
}

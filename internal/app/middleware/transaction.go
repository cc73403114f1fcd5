package middleware

import (
	"context"
	"errors"

	"staybook/internal/app/commands"
	"staybook/internal/app/uow"
)

// TxOptionsFor picks transaction options per command. Nil means defaults.
type TxOptionsFor func(cmd commands.Command) uow.TxOptions

// Transaction gives each dispatch its own unit of work, attached to the
// context handlers receive. Outbox records written by the handler share the
// unit, so they land or vanish together with the state change.
func Transaction(factory uow.UoWFactory, optsFor TxOptionsFor) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			var opts uow.TxOptions
			if optsFor != nil {
				opts = optsFor(cmd)
			}
			return inUnit(ctx, factory, opts, func(ctx context.Context) (any, error) {
				return next.Dispatch(ctx, cmd)
			})
		})
	}
}

func inUnit(ctx context.Context, factory uow.UoWFactory, opts uow.TxOptions, fn func(context.Context) (any, error)) (any, error) {
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	uctx := uow.Attach(ctx, unit)

	res, err := fn(uctx)
	if err == nil {
		if err = unit.Commit(uctx); err == nil {
			return res, nil
		}
	}
	// A cancelled request must still release the transaction.
	if rbErr := unit.Rollback(context.WithoutCancel(uctx)); rbErr != nil {
		err = errors.Join(err, rbErr)
	}
	return nil, err
}

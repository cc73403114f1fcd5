package middleware

import (
	"context"

	"staybook/internal/app/commands"
	"staybook/internal/app/queries"
)

// Validator rejects malformed messages before any storage is touched.
type Validator interface {
	Validate(ctx context.Context, message any) error
}

// Authorizer decides whether the principal in ctx may send message.
type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// guard is a check that either lets a message through or stops it with an
// error. Validation and authorization are both guards.
type guard func(ctx context.Context, message any) error

func (g guard) commands() CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := g(ctx, cmd); err != nil {
				return nil, err
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}

func (g guard) queries() QueryMiddleware {
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := g(ctx, q); err != nil {
				return nil, err
			}
			return next.Ask(ctx, q)
		})
	}
}

func validatorGuard(v Validator) guard {
	if v == nil {
		panic("middleware: validator required")
	}
	return v.Validate
}

func authorizerGuard(a Authorizer) guard {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return a.Authorize
}

func Validation(v Validator) CommandMiddleware { return validatorGuard(v).commands() }

func QueryValidation(v Validator) QueryMiddleware { return validatorGuard(v).queries() }

func Authorization(a Authorizer) CommandMiddleware { return authorizerGuard(a).commands() }

func QueryAuthorization(a Authorizer) QueryMiddleware { return authorizerGuard(a).queries() }

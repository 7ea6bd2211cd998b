package middleware

import (
	"context"
	"errors"

	"innkeep/internal/app/commands"
	"innkeep/internal/app/queries"
)

// ErrValidation is wrapped by Validator implementations; the HTTP edge
// answers it with 400.
var ErrValidation = errors.New("validation failed")

type Validator interface {
	Validate(ctx context.Context, message any) error
}

// Validation rejects malformed admin commands before any unit of work opens.
func Validation(v Validator) CommandMiddleware {
	check := validated(v)
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := check(ctx, cmd); err != nil {
				return nil, err
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}

// QueryValidation rejects malformed searches and catalog reads before they
// reach the cache or a repository.
func QueryValidation(v Validator) QueryMiddleware {
	check := validated(v)
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := check(ctx, q); err != nil {
				return nil, err
			}
			return next.Ask(ctx, q)
		})
	}
}

func validated(v Validator) func(ctx context.Context, message any) error {
	if v == nil {
		panic("middleware: validator required")
	}
	return v.Validate
}

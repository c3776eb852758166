// Package transaction runs repository calls inside a single Postgres transaction.
package transaction

import "context"

// Scope manages the lifecycle of a transaction. The transaction is committed
// if fn returns nil and rolled back otherwise. The ctx passed to fn carries the
// transaction so repositories join it.
type Scope interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}

// ExecuteWithResult runs fn in scope and returns its value.
func ExecuteWithResult[T any](ctx context.Context, scope Scope, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := scope.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}

package transaction

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresScope implements Scope on a pgx pool.
type PostgresScope struct {
	pool *pgxpool.Pool
	opts pgx.TxOptions
}

func NewPostgresScope(pool *pgxpool.Pool) *PostgresScope {
	return &PostgresScope{pool: pool}
}

// Execute begins a transaction unless ctx already carries one, in which case
// fn joins the outer transaction.
func (s *PostgresScope) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}
	tx, err := s.pool.BeginTx(ctx, s.opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

var _ Scope = (*PostgresScope)(nil)

// Detached returns ctx without any carried transaction, for writes that must
// survive a rollback of the surrounding scope.
func Detached(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, nil)
}

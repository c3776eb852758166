package ledger

import (
	"context"
	"io"
	"log"

	"learnstore/internal/domain"
	"learnstore/internal/transaction"

	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) Claim(ctx context.Context, e Entry) error {
	cmd, err := transaction.Conn(ctx, r.pool).Exec(ctx, `
INSERT INTO payment_transactions (processor_name, transaction_id, basket_id, amount_cents, currency)
VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5)
ON CONFLICT (processor_name, transaction_id) DO NOTHING
`, e.ProcessorName, e.TransactionID, e.BasketID, e.AmountCents, e.Currency)
	if err != nil {
		r.logger.Printf("ledger repo: claim processor=%s transaction_id=%s error=%v", e.ProcessorName, e.TransactionID, err)
		return err
	}
	if cmd.RowsAffected() == 0 {
		r.logger.Printf("ledger repo: claim processor=%s transaction_id=%s already claimed", e.ProcessorName, e.TransactionID)
		return domain.ErrAlreadyExists
	}
	return nil
}

func (r *postgresRepo) Exists(ctx context.Context, processorName, transactionID string) (bool, error) {
	var exists bool
	err := transaction.Conn(ctx, r.pool).QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM payment_transactions WHERE processor_name = $1 AND transaction_id = $2)
`, processorName, transactionID).Scan(&exists)
	return exists, err
}

func (r *postgresRepo) SaveSource(ctx context.Context, basketID string, s domain.PaymentSource) error {
	_, err := transaction.Conn(ctx, r.pool).Exec(ctx, `
INSERT INTO payment_sources (basket_id, source_type, label, card_type, reference, amount_allocated_cents, amount_debited_cents, currency)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8)
`, basketID, s.Type, s.Label, s.CardType, s.Reference, s.AmountAllocated, s.AmountDebited, s.Currency)
	return err
}

package ledger

import (
	"context"

	"learnstore/internal/domain"
)

// Entry is a settled processor transaction.
type Entry struct {
	ProcessorName string
	TransactionID string
	BasketID      string
	AmountCents   int64
	Currency      string
}

// Repository tracks which processor transactions have already been applied.
type Repository interface {
	// Claim records the entry; it fails with domain.ErrAlreadyExists when the
	// (processor, transaction id) pair was claimed before.
	Claim(ctx context.Context, entry Entry) error
	Exists(ctx context.Context, processorName, transactionID string) (bool, error)
	SaveSource(ctx context.Context, basketID string, source domain.PaymentSource) error
}

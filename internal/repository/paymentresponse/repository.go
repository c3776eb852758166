package paymentresponse

import (
	"context"

	"learnstore/internal/domain"
)

// Repository is the append-only audit trail of payment processor calls.
type Repository interface {
	Record(ctx context.Context, resp domain.PaymentProcessorResponse) (*domain.PaymentProcessorResponse, error)
	List(ctx context.Context, filter Filter) ([]domain.PaymentProcessorResponse, error)
}

// Filter narrows List; empty fields match everything.
type Filter struct {
	ProcessorName string
	TransactionID string
	BasketID      string
	Limit         int
}

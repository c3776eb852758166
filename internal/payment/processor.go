// Package payment adapts external payment processors to a single contract:
// confirm a payment against a basket, record every processor exchange, and
// refuse to apply the same processor transaction twice.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"

	"learnstore/internal/domain"
	"learnstore/internal/repository/ledger"
	"learnstore/internal/transaction"
)

// Payload is the confirmation posted by the client or the processor.
type Payload map[string]string

// Result describes a confirmed payment.
type Result struct {
	TransactionID string
	Source        domain.PaymentSource
	Event         domain.PaymentEvent
}

// Processor is implemented by every payment method.
type Processor interface {
	Name() string
	// TransactionID extracts the processor transaction id from payload.
	TransactionID(payload Payload) string
	// HandlePayment verifies payload against basket. It returns *Error for a
	// recoverable failure and *RedundantNotificationError when the transaction
	// was already applied; any other error is a transport failure.
	HandlePayment(ctx context.Context, payload Payload, basket *domain.Basket) (*Result, error)
	// IsRedundant reports whether the transaction in payload was already applied.
	IsRedundant(ctx context.Context, payload Payload) (bool, error)
}

// Recorder stores the audit trail of processor exchanges.
type Recorder interface {
	Record(ctx context.Context, resp domain.PaymentProcessorResponse) (*domain.PaymentProcessorResponse, error)
}

// Ledger tracks applied transactions and payment sources.
type Ledger interface {
	Claim(ctx context.Context, entry ledger.Entry) error
	Exists(ctx context.Context, processorName, transactionID string) (bool, error)
	SaveSource(ctx context.Context, basketID string, source domain.PaymentSource) error
}

// Deps are shared by every processor built by a Registry.
type Deps struct {
	Recorder  Recorder
	Ledger    Ledger
	Transport Transport
	// Scope wraps the ledger writes of settle; processor calls and audit rows
	// never run inside it.
	Scope  transaction.Scope
	Logger *log.Logger
}

// base carries the behavior common to all processors.
type base struct {
	name      string
	txnKey    string
	recorder  Recorder
	ledger    Ledger
	transport Transport
	scope     transaction.Scope
	logger    *log.Logger
}

func newBase(name, txnKey string, deps Deps) base {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return base{
		name:      name,
		txnKey:    txnKey,
		recorder:  deps.Recorder,
		ledger:    deps.Ledger,
		transport: deps.Transport,
		scope:     deps.Scope,
		logger:    logger,
	}
}

func (b *base) Name() string {
	return b.name
}

func (b *base) TransactionID(payload Payload) string {
	return payload[b.txnKey]
}

func (b *base) IsRedundant(ctx context.Context, payload Payload) (bool, error) {
	txnID := b.TransactionID(payload)
	if txnID == "" {
		return false, nil
	}
	return b.ledger.Exists(ctx, b.name, txnID)
}

// guard rejects payloads without a transaction id and transactions that were
// already applied, before any processor call is made.
func (b *base) guard(ctx context.Context, payload Payload, basket *domain.Basket) (string, error) {
	txnID := b.TransactionID(payload)
	if txnID == "" {
		b.record(ctx, "", basket, payload)
		return "", declined(b.name, "missing_transaction_id")
	}
	seen, err := b.ledger.Exists(ctx, b.name, txnID)
	if err != nil {
		return "", err
	}
	if seen {
		b.record(ctx, txnID, basket, payload)
		return "", &RedundantNotificationError{Processor: b.name, TransactionID: txnID}
	}
	return txnID, nil
}

// record writes one audit row. A failed write is logged with the identifiers
// needed to reconcile by hand and never fails the payment.
func (b *base) record(ctx context.Context, txnID string, basket *domain.Basket, response any) {
	raw, err := json.Marshal(response)
	if err != nil {
		raw, _ = json.Marshal(map[string]string{"marshal_error": err.Error()})
	}
	entry := domain.PaymentProcessorResponse{
		ProcessorName: b.name,
		TransactionID: txnID,
		Response:      raw,
	}
	basketID := ""
	if basket != nil && basket.ID != "" {
		basketID = basket.ID
		entry.BasketID = &basketID
	}
	if _, err := b.recorder.Record(ctx, entry); err != nil {
		b.logger.Printf("payment: RECONCILE audit write failed processor=%s transaction_id=%s basket_id=%s error=%v", b.name, txnID, basketID, err)
	}
}

// settle claims the transaction and stores the payment source in one
// transaction.
func (b *base) settle(ctx context.Context, basket *domain.Basket, res *Result) error {
	if b.scope == nil {
		return b.claim(ctx, basket, res)
	}
	return b.scope.Execute(ctx, func(ctx context.Context) error {
		return b.claim(ctx, basket, res)
	})
}

func (b *base) claim(ctx context.Context, basket *domain.Basket, res *Result) error {
	err := b.ledger.Claim(ctx, ledger.Entry{
		ProcessorName: b.name,
		TransactionID: res.TransactionID,
		BasketID:      basket.ID,
		AmountCents:   res.Event.AmountCents,
		Currency:      res.Source.Currency,
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		return &RedundantNotificationError{Processor: b.name, TransactionID: res.TransactionID}
	}
	if err != nil {
		return err
	}
	return b.ledger.SaveSource(ctx, basket.ID, res.Source)
}

func newResult(name, txnID, label, cardType string, basket *domain.Basket, amount int64) *Result {
	return &Result{
		TransactionID: txnID,
		Source: domain.PaymentSource{
			Type:            name,
			Label:           label,
			CardType:        cardType,
			Reference:       txnID,
			AmountAllocated: amount,
			AmountDebited:   amount,
			Currency:        basket.Currency,
		},
		Event: domain.PaymentEvent{
			Type:          "paid",
			ProcessorName: name,
			Reference:     txnID,
			AmountCents:   amount,
		},
	}
}

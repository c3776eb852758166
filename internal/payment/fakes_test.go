package payment

import (
	"bytes"
	"context"
	"log"
	"sync"

	"learnstore/internal/domain"
	"learnstore/internal/repository/ledger"
)

type inTxKey struct{}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(inTxKey{}).(bool)
	return v
}

// fakeScope marks the ctx handed to fn so fakes can tell what ran inside it.
type fakeScope struct {
	executes int
}

func (s *fakeScope) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	s.executes++
	return fn(context.WithValue(ctx, inTxKey{}, true))
}

type fakeRecorder struct {
	mu       sync.Mutex
	rows     []domain.PaymentProcessorResponse
	err      error
	rowsInTx int
}

func (f *fakeRecorder) Record(ctx context.Context, resp domain.PaymentProcessorResponse) (*domain.PaymentProcessorResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if inTx(ctx) {
		f.rowsInTx++
	}
	if f.err != nil {
		return nil, f.err
	}
	resp.ID = int64(len(f.rows) + 1)
	f.rows = append(f.rows, resp)
	return &resp, nil
}

type fakeLedger struct {
	claimed map[string]ledger.Entry
	sources map[string]domain.PaymentSource
	// writesOutsideTx counts Claim/SaveSource calls made without a scope.
	writesOutsideTx int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{claimed: map[string]ledger.Entry{}, sources: map[string]domain.PaymentSource{}}
}

func (f *fakeLedger) Claim(ctx context.Context, e ledger.Entry) error {
	if !inTx(ctx) {
		f.writesOutsideTx++
	}
	key := e.ProcessorName + "/" + e.TransactionID
	if _, ok := f.claimed[key]; ok {
		return domain.ErrAlreadyExists
	}
	f.claimed[key] = e
	return nil
}

func (f *fakeLedger) Exists(_ context.Context, processorName, transactionID string) (bool, error) {
	_, ok := f.claimed[processorName+"/"+transactionID]
	return ok, nil
}

func (f *fakeLedger) SaveSource(ctx context.Context, basketID string, source domain.PaymentSource) error {
	if !inTx(ctx) {
		f.writesOutsideTx++
	}
	f.sources[basketID] = source
	return nil
}

type harness struct {
	recorder *fakeRecorder
	ledger   *fakeLedger
	scope    *fakeScope
	logs     *bytes.Buffer
	deps     Deps
}

func newHarness() *harness {
	h := &harness{recorder: &fakeRecorder{}, ledger: newFakeLedger(), scope: &fakeScope{}, logs: &bytes.Buffer{}}
	h.deps = Deps{
		Recorder:  h.recorder,
		Ledger:    h.ledger,
		Transport: NewHTTPTransport(0),
		Scope:     h.scope,
		Logger:    log.New(h.logs, "", 0),
	}
	return h
}

func testBasket(priceCents int64) *domain.Basket {
	return &domain.Basket{
		ID:       "b-1",
		Currency: "USD",
		Status:   domain.BasketFrozen,
		Lines: []domain.Line{{
			ID:             "l-1",
			Product:        domain.Product{ID: "p-1", SKU: "SKU1", ProductClass: domain.ProductClassSeat},
			Quantity:       1,
			UnitPriceCents: priceCents,
		}},
	}
}

package checkout

import (
	"context"
	"errors"
	"sync"

	"learnstore/internal/domain"
	"learnstore/internal/notify"
	"learnstore/internal/payment"
)

type fakeBaskets struct {
	mu        sync.Mutex
	baskets   map[string]*domain.Basket
	discounts map[string][]domain.Discount
	// beforeFreeze runs under the lock just before an Open basket is frozen,
	// like a write committed by another request in between.
	beforeFreeze func(b *domain.Basket)
	reloadErr    error
	loads        int
}

func newFakeBaskets(bs ...*domain.Basket) *fakeBaskets {
	f := &fakeBaskets{baskets: map[string]*domain.Basket{}, discounts: map[string][]domain.Discount{}}
	for _, b := range bs {
		f.baskets[b.ID] = b
	}
	return f
}

func (f *fakeBaskets) GetByID(_ context.Context, _ string, id string) (*domain.Basket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loads > 1 && f.reloadErr != nil {
		return nil, f.reloadErr
	}
	b, ok := f.baskets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *b
	cp.Lines = append([]domain.Line(nil), b.Lines...)
	return &cp, nil
}

func (f *fakeBaskets) ReplaceDiscounts(_ context.Context, basketID string, discounts []domain.Discount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discounts[basketID] = discounts
	return nil
}

func (f *fakeBaskets) Transition(_ context.Context, basketID, from, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.baskets[basketID]
	if ok && f.beforeFreeze != nil && from == domain.BasketOpen && to == domain.BasketFrozen {
		f.beforeFreeze(b)
	}
	if !ok || b.Status != from {
		return domain.ErrBasketFrozen
	}
	b.Status = to
	return nil
}

func (f *fakeBaskets) status(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.baskets[id].Status
}

type fakeOrders struct {
	byBasket map[string]domain.Order
	err      error
}

func (f *fakeOrders) Create(_ context.Context, o domain.Order) (*domain.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.byBasket == nil {
		f.byBasket = map[string]domain.Order{}
	}
	if _, ok := f.byBasket[o.BasketID]; ok {
		return nil, domain.ErrAlreadyPlaced
	}
	f.byBasket[o.BasketID] = o
	return &o, nil
}

type fakeOffers struct {
	err     error
	percent int64
}

func (f *fakeOffers) Apply(_ context.Context, _ domain.Site, b *domain.Basket) error {
	if f.err != nil {
		return f.err
	}
	b.ResetOffers()
	if f.percent > 0 {
		var total int64
		for i := range b.Lines {
			d := b.Lines[i].UnitPriceCents * int64(b.Lines[i].Quantity) * f.percent / 100
			b.Lines[i].DiscountCents = d
			total += d
		}
		b.Discounts = append(b.Discounts, domain.Discount{OfferID: "o1", OfferName: "Bundle", AmountCents: total})
	}
	return nil
}

// fakeProcessor settles the transaction id found under "txn".
type fakeProcessor struct {
	applied map[string]bool
	err     error
	calls   int
	seen    *domain.Basket
}

func (f *fakeProcessor) Name() string { return "fake" }

func (f *fakeProcessor) TransactionID(p payment.Payload) string { return p["txn"] }

func (f *fakeProcessor) HandlePayment(_ context.Context, p payment.Payload, b *domain.Basket) (*payment.Result, error) {
	f.calls++
	f.seen = b
	if f.err != nil {
		return nil, f.err
	}
	if f.applied[p["txn"]] {
		return nil, &payment.RedundantNotificationError{Processor: "fake", TransactionID: p["txn"]}
	}
	if f.applied == nil {
		f.applied = map[string]bool{}
	}
	f.applied[p["txn"]] = true
	return &payment.Result{TransactionID: p["txn"]}, nil
}

func (f *fakeProcessor) IsRedundant(_ context.Context, p payment.Payload) (bool, error) {
	return f.applied[p["txn"]], nil
}

type fakeProcessors struct {
	p *fakeProcessor
}

func (f fakeProcessors) Resolve(_ domain.Site, name string) (payment.Processor, error) {
	if name != "fake" {
		return nil, payment.ErrUnknownProcessor
	}
	return f.p, nil
}

type inlineScope struct{}

func (inlineScope) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordingHandler struct {
	events []notify.OrderPlaced
	err    error
}

func (h *recordingHandler) Name() string { return "recording" }

func (h *recordingHandler) Handle(_ context.Context, ev notify.OrderPlaced) error {
	h.events = append(h.events, ev)
	return h.err
}

var errBoom = errors.New("boom")

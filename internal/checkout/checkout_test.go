package checkout

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnstore/internal/domain"
	"learnstore/internal/notify"
	"learnstore/internal/payment"
)

var testSite = domain.Site{ID: "site-1", Key: "edx", PartnerCode: "edx", LMSURL: "https://lms.example.com"}

var buyer = domain.User{Username: "ann", Email: "ann@example.com"}

func openBasket() *domain.Basket {
	return &domain.Basket{
		ID:       "b-1",
		SiteID:   testSite.ID,
		Owner:    buyer.Username,
		Currency: "USD",
		Status:   domain.BasketOpen,
		Lines: []domain.Line{{
			ID:             "l-1",
			Product:        domain.Product{ID: "p-1", SKU: "S1", ProductClass: domain.ProductClassSeat, CourseID: "course-v1:A+B+C", SeatType: "verified"},
			Quantity:       1,
			UnitPriceCents: 10000,
		}},
	}
}

type fixture struct {
	baskets   *fakeBaskets
	orders    *fakeOrders
	offers    *fakeOffers
	processor *fakeProcessor
	handler   *recordingHandler
	logs      *bytes.Buffer
	pipeline  *Pipeline
}

func newFixture(extra ...notify.Handler) *fixture {
	f := &fixture{
		baskets:   newFakeBaskets(openBasket()),
		orders:    &fakeOrders{},
		offers:    &fakeOffers{},
		processor: &fakeProcessor{},
		handler:   &recordingHandler{},
		logs:      &bytes.Buffer{},
	}
	logger := log.New(f.logs, "", 0)
	handlers := append(extra, f.handler)
	f.pipeline = New(Deps{
		Baskets:    f.baskets,
		Orders:     f.orders,
		Offers:     f.offers,
		Processors: fakeProcessors{p: f.processor},
		Notifier:   notify.New(logger, handlers...),
		Scope:      inlineScope{},
		Logger:     logger,
	})
	return f
}

func request(txn string) Request {
	return Request{Site: testSite, User: buyer, BasketID: "b-1", Processor: "fake", Payload: payment.Payload{"txn": txn}}
}

func TestPlace_Success(t *testing.T) {
	f := newFixture()
	f.offers.percent = 20

	out := f.pipeline.Place(context.Background(), request("t-1"))

	require.Equal(t, Success, out.Kind, "reason=%s err=%v", out.Reason, out.Err)
	assert.Equal(t, "EDX-b-1", out.OrderNumber)
	assert.Equal(t, http.StatusOK, out.HTTPStatus())
	assert.Equal(t, domain.BasketSubmitted, f.baskets.status("b-1"))

	order := f.orders.byBasket["b-1"]
	assert.Equal(t, int64(8000), order.TotalExclTaxCents, "offers are recomputed before payment")
	assert.Equal(t, int64(2000), order.DiscountCents)
	assert.Len(t, f.baskets.discounts["b-1"], 1)
	assert.Equal(t, int64(8000), f.processor.seen.TotalInclTaxCents())

	require.Len(t, f.handler.events, 1)
	assert.Equal(t, "EDX-b-1", f.handler.events[0].Order.Number)
}

func TestPlace_ReplayAfterOrderIsRedundant(t *testing.T) {
	f := newFixture()
	require.Equal(t, Success, f.pipeline.Place(context.Background(), request("t-1")).Kind)

	out := f.pipeline.Place(context.Background(), request("t-1"))

	assert.Equal(t, Redundant, out.Kind)
	assert.Equal(t, ReasonRedundantPayment, out.Reason)
	assert.Equal(t, http.StatusConflict, out.HTTPStatus())
	assert.Len(t, f.orders.byBasket, 1)
	assert.Equal(t, 1, f.processor.calls, "the processor is not called again")
	assert.Len(t, f.handler.events, 1)
}

func TestPlace_SecondPaymentForOrderedBasketFailsClosed(t *testing.T) {
	f := newFixture()
	require.Equal(t, Success, f.pipeline.Place(context.Background(), request("t-1")).Kind)

	out := f.pipeline.Place(context.Background(), request("t-2"))

	assert.Equal(t, Fatal, out.Kind)
	assert.Equal(t, ReasonAlreadyOrdered, out.Reason)
	assert.Equal(t, http.StatusConflict, out.HTTPStatus())
	assert.Equal(t, 1, f.processor.calls)
	assert.Len(t, f.orders.byBasket, 1)
}

func TestPlace_DeclinedReopensBasket(t *testing.T) {
	f := newFixture()
	f.processor.err = &payment.Error{Processor: "fake", Reason: "card_declined"}

	out := f.pipeline.Place(context.Background(), request("t-1"))

	assert.Equal(t, Declined, out.Kind)
	assert.Equal(t, ReasonPaymentDeclined, out.Reason)
	assert.Equal(t, http.StatusBadRequest, out.HTTPStatus())
	assert.Equal(t, domain.BasketOpen, f.baskets.status("b-1"))
	assert.Empty(t, f.orders.byBasket)
	assert.Empty(t, f.handler.events)

	f.processor.err = nil
	assert.Equal(t, Success, f.pipeline.Place(context.Background(), request("t-1")).Kind, "the basket is usable for retry")
}

func TestPlace_RedundantFromProcessor(t *testing.T) {
	f := newFixture()
	f.processor.applied = map[string]bool{"t-1": true}

	out := f.pipeline.Place(context.Background(), request("t-1"))

	assert.Equal(t, Redundant, out.Kind)
	assert.Equal(t, domain.BasketOpen, f.baskets.status("b-1"))
	assert.Empty(t, f.orders.byBasket)
}

func TestPlace_TransportFailureIsFatalAndLogged(t *testing.T) {
	f := newFixture()
	f.processor.err = errors.New("dial tcp: i/o timeout")

	out := f.pipeline.Place(context.Background(), request("t-9"))

	assert.Equal(t, Fatal, out.Kind)
	assert.Equal(t, ReasonPaymentFailed, out.Reason)
	assert.Equal(t, http.StatusInternalServerError, out.HTTPStatus())
	assert.Contains(t, f.logs.String(), "checkout: RECONCILE payment failed basket_id=b-1 user=ann processor=fake transaction_id=t-9")
	assert.Equal(t, domain.BasketOpen, f.baskets.status("b-1"))
}

func TestPlace_OrderCreationFailureKeepsBasketFrozen(t *testing.T) {
	f := newFixture()
	f.orders.err = errBoom

	out := f.pipeline.Place(context.Background(), request("t-1"))

	assert.Equal(t, Fatal, out.Kind)
	assert.Equal(t, ReasonOrderCreationFailed, out.Reason)
	assert.ErrorIs(t, out.Err, errBoom)
	assert.Contains(t, f.logs.String(), "checkout: RECONCILE order creation failed basket_id=b-1 user=ann transaction_id=t-1")
	assert.Equal(t, domain.BasketFrozen, f.baskets.status("b-1"))
	assert.Empty(t, f.handler.events)
}

func TestPlace_ConcurrentOrderLosesRace(t *testing.T) {
	f := newFixture()
	f.orders.byBasket = map[string]domain.Order{"b-1": {Number: "EDX-b-1"}}

	out := f.pipeline.Place(context.Background(), request("t-1"))

	assert.Equal(t, Fatal, out.Kind)
	assert.Equal(t, ReasonAlreadyOrdered, out.Reason)
	assert.ErrorIs(t, out.Err, domain.ErrAlreadyPlaced)
}

func TestPlace_FanOutFailureDoesNotFailCheckout(t *testing.T) {
	failing := &recordingHandler{err: errors.New("credit provider missing")}
	f := newFixture(failing)

	out := f.pipeline.Place(context.Background(), request("t-1"))

	assert.Equal(t, Success, out.Kind)
	assert.Len(t, failing.events, 1)
	assert.Len(t, f.handler.events, 1, "later handlers still run")
	assert.Contains(t, f.logs.String(), "notify: handler failed")
	assert.Equal(t, domain.BasketSubmitted, f.baskets.status("b-1"))
}

func TestPlace_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Request)
		reason string
	}{
		{"missing basket", func(r *Request) { r.BasketID = "nope" }, ReasonBasketNotFound},
		{"other owner", func(r *Request) { r.User = domain.User{Username: "bob"} }, ReasonBasketNotFound},
		{"unknown processor", func(r *Request) { r.Processor = "bitcoin" }, ReasonUnknownProcessor},
		{"no processor", func(r *Request) { r.Processor = "" }, ReasonInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			req := request("t-1")
			tc.mutate(&req)

			out := f.pipeline.Place(context.Background(), req)

			assert.Equal(t, Rejected, out.Kind)
			assert.Equal(t, tc.reason, out.Reason)
			assert.Equal(t, http.StatusBadRequest, out.HTTPStatus())
			assert.Zero(t, f.processor.calls)
			assert.Equal(t, domain.BasketOpen, f.baskets.status("b-1"))
		})
	}
}

func TestPlace_OffersUnavailable(t *testing.T) {
	f := newFixture()
	f.offers.err = errBoom

	out := f.pipeline.Place(context.Background(), request("t-1"))

	assert.Equal(t, Fatal, out.Kind)
	assert.Equal(t, ReasonOffersUnavailable, out.Reason)
	assert.Zero(t, f.processor.calls)
	assert.Equal(t, domain.BasketOpen, f.baskets.status("b-1"))
}

func TestPlace_BasketLocked(t *testing.T) {
	f := newFixture()
	f.baskets.baskets["b-1"].Status = domain.BasketFrozen

	out := f.pipeline.Place(context.Background(), request("t-1"))

	assert.Equal(t, Fatal, out.Kind)
	assert.Equal(t, ReasonBasketLocked, out.Reason)
	assert.Equal(t, http.StatusConflict, out.HTTPStatus())
	assert.Zero(t, f.processor.calls)
}

func TestPlace_LineAddedBeforeFreezeIsPaidAndOrdered(t *testing.T) {
	f := newFixture()
	f.baskets.beforeFreeze = func(b *domain.Basket) {
		b.Lines = append(b.Lines, domain.Line{
			ID:             "l-2",
			Product:        domain.Product{ID: "p-2", SKU: "S2", ProductClass: domain.ProductClassSeat, CourseID: "course-v1:A+D+E", SeatType: "verified"},
			Quantity:       1,
			UnitPriceCents: 5000,
		})
	}

	out := f.pipeline.Place(context.Background(), request("t-1"))

	require.Equal(t, Success, out.Kind, "reason=%s err=%v", out.Reason, out.Err)
	assert.Equal(t, int64(15000), f.processor.seen.TotalInclTaxCents(), "payment covers the frozen lines")
	order := f.orders.byBasket["b-1"]
	assert.Len(t, order.Lines, 2)
	assert.Equal(t, int64(15000), order.TotalInclTaxCents)
	assert.Equal(t, domain.BasketSubmitted, f.baskets.status("b-1"))
}

func TestPlace_LinesRemovedBeforeFreezeReopensBasket(t *testing.T) {
	f := newFixture()
	f.baskets.beforeFreeze = func(b *domain.Basket) { b.Lines = nil }

	out := f.pipeline.Place(context.Background(), request("t-1"))

	assert.Equal(t, Rejected, out.Kind)
	assert.Equal(t, ReasonInvalidRequest, out.Reason)
	assert.Zero(t, f.processor.calls)
	assert.Equal(t, domain.BasketOpen, f.baskets.status("b-1"))
}

func TestPlace_ReloadFailureReopensBasket(t *testing.T) {
	f := newFixture()
	f.baskets.reloadErr = errBoom

	out := f.pipeline.Place(context.Background(), request("t-1"))

	assert.Equal(t, Fatal, out.Kind)
	assert.Equal(t, ReasonInternalError, out.Reason)
	assert.Zero(t, f.processor.calls)
	assert.Equal(t, domain.BasketOpen, f.baskets.status("b-1"))
}

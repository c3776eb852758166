package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"learnstore/internal/analytics"
	"learnstore/internal/checkout"
	"learnstore/internal/domain"
	"learnstore/internal/repository/paymentresponse"
	basketsvc "learnstore/internal/service/basket"
)

type stubBasketSvc struct {
	basket     *domain.Basket
	err        error
	lastAdd    basketsvc.AddInput
	lastUser   domain.User
	lastChange basketsvc.ChangeQuantityInput
}

func (s *stubBasketSvc) AddItems(_ context.Context, _ domain.Site, user domain.User, in basketsvc.AddInput) (*domain.Basket, error) {
	s.lastAdd = in
	s.lastUser = user
	return s.basket, s.err
}

func (s *stubBasketSvc) Get(_ context.Context, _ domain.Site, user domain.User, _ string) (*domain.Basket, error) {
	s.lastUser = user
	return s.basket, s.err
}

func (s *stubBasketSvc) ChangeQuantity(_ context.Context, _ domain.Site, _ domain.User, _ string, in basketsvc.ChangeQuantityInput) (*domain.Basket, error) {
	s.lastChange = in
	return s.basket, s.err
}

type stubCheckout struct {
	outcome checkout.Outcome
	last    checkout.Request
}

func (s *stubCheckout) Place(_ context.Context, req checkout.Request) checkout.Outcome {
	s.last = req
	return s.outcome
}

type stubAudit struct {
	rows   []domain.PaymentProcessorResponse
	filter paymentresponse.Filter
}

func (s *stubAudit) List(_ context.Context, f paymentresponse.Filter) ([]domain.PaymentProcessorResponse, error) {
	s.filter = f
	return s.rows, nil
}

type stubTracker struct {
	events []string
	props  []map[string]any
}

func (s *stubTracker) TrackSilently(_ context.Context, _ domain.Site, _ domain.User, name string, props map[string]any) {
	s.events = append(s.events, name)
	s.props = append(s.props, props)
}

func newTestRouter(t *testing.T, basket *stubBasketSvc, co *stubCheckout, audit *stubAudit, tr *stubTracker) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	deps := Deps{
		SiteRepo:  &stubSiteRepo{site: &domain.Site{ID: "site-1", Key: "edx"}},
		BasketSvc: basket,
		Checkout:  co,
		Audit:     audit,
		Now:       func() time.Time { return time.Unix(1700000000, 500000000) },
	}
	if tr != nil {
		deps.Tracker = tr
	}
	router, err := buildRouter(logDiscard(), nil, deps)
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	return router
}

func staff(req *http.Request) *http.Request {
	authed(req).Header.Set(rolesHeader, "learner, Staff")
	return req
}

func authed(req *http.Request) *http.Request {
	req.Header.Set(userHeader, "ann")
	req.Header.Set(emailHeader, "ann@example.com")
	return req
}

func TestAddItemsHandler(t *testing.T) {
	svc := &stubBasketSvc{basket: &domain.Basket{ID: "b1"}}
	router := newTestRouter(t, svc, &stubCheckout{}, &stubAudit{}, nil)

	req := authed(httptest.NewRequest(http.MethodGet, "/sites/edx/api/v1/basket/add?sku=S1&sku=S2", nil))
	req.AddCookie(&http.Cookie{Name: "sailthru_bid", Value: "bid-1"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.lastAdd.SKUs) != 2 || svc.lastAdd.MessageID != "bid-1" || svc.lastUser.Username != "ann" {
		t.Fatalf("unexpected add input: %+v user=%+v", svc.lastAdd, svc.lastUser)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["basket_id"] != "b1" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestAddItemsHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{basketsvc.ErrNoSKUs, http.StatusBadRequest},
		{basketsvc.ErrProductsNotFound, http.StatusBadRequest},
		{basketsvc.ErrNothingAvailable, http.StatusBadRequest},
		{basketsvc.ErrAlreadyPurchased, http.StatusNotAcceptable},
		{domain.ErrBasketFrozen, http.StatusConflict},
	}
	for _, tc := range cases {
		router := newTestRouter(t, &stubBasketSvc{err: tc.err}, &stubCheckout{}, &stubAudit{}, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/sites/edx/api/v1/basket/add?sku=S1", nil)))
		if rec.Code != tc.code {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.code, rec.Code)
		}
	}
}

func TestBasketRoutesRequireUser(t *testing.T) {
	router := newTestRouter(t, &stubBasketSvc{}, &stubCheckout{}, &stubAudit{}, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sites/edx/api/v1/baskets/b1", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestGetBasketNotFound(t *testing.T) {
	router := newTestRouter(t, &stubBasketSvc{err: domain.ErrNotFound}, &stubCheckout{}, &stubAudit{}, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/sites/edx/api/v1/baskets/b1", nil)))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestChangeQuantityHandler(t *testing.T) {
	svc := &stubBasketSvc{basket: &domain.Basket{ID: "b1"}}
	router := newTestRouter(t, svc, &stubCheckout{}, &stubAudit{}, nil)

	req := authed(httptest.NewRequest(http.MethodPost, "/sites/edx/api/v1/baskets/b1/lines", strings.NewReader(`{"lineId":"l1","quantity":0}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if svc.lastChange.LineID != "l1" || svc.lastChange.Quantity != 0 {
		t.Fatalf("unexpected change input: %+v", svc.lastChange)
	}
}

func TestCheckoutHandler(t *testing.T) {
	cases := []struct {
		name    string
		outcome checkout.Outcome
		code    int
		reason  string
	}{
		{"success", checkout.Outcome{Kind: checkout.Success, OrderNumber: "EDX-b1"}, http.StatusOK, ""},
		{"declined", checkout.Outcome{Kind: checkout.Declined, Reason: checkout.ReasonPaymentDeclined}, http.StatusBadRequest, checkout.ReasonPaymentDeclined},
		{"redundant", checkout.Outcome{Kind: checkout.Redundant, Reason: checkout.ReasonRedundantPayment}, http.StatusConflict, checkout.ReasonRedundantPayment},
		{"already ordered", checkout.Outcome{Kind: checkout.Fatal, Reason: checkout.ReasonAlreadyOrdered}, http.StatusConflict, checkout.ReasonAlreadyOrdered},
		{"fatal", checkout.Outcome{Kind: checkout.Fatal, Reason: checkout.ReasonPaymentFailed}, http.StatusInternalServerError, checkout.ReasonPaymentFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			co := &stubCheckout{outcome: tc.outcome}
			tr := &stubTracker{}
			router := newTestRouter(t, &stubBasketSvc{}, co, &stubAudit{}, tr)

			body := `{"basket_id":"b1","payment_processor":"ios-iap","payment":{"transaction_id":"1000","receipt":"R"}}`
			req := authed(httptest.NewRequest(http.MethodPost, "/sites/edx/api/v1/checkout", strings.NewReader(body)))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, rec.Code, rec.Body.String())
			}
			var resp map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if tc.outcome.Kind == checkout.Success && resp["order_number"] != "EDX-b1" {
				t.Fatalf("unexpected success body: %v", resp)
			}
			if resp["reason"] != tc.reason {
				t.Fatalf("expected reason %q, got %q", tc.reason, resp["reason"])
			}
			if co.last.Processor != "ios-iap" || co.last.Payload["transaction_id"] != "1000" || co.last.User.Username != "ann" {
				t.Fatalf("unexpected checkout request: %+v", co.last)
			}
			if len(tr.events) != 1 || tr.events[0] != analytics.MobileCoursePurchaseViewCalled {
				t.Fatalf("expected view event, got %v", tr.events)
			}
			if tr.props[0]["emitted_at"] != 1700000000.5 {
				t.Fatalf("unexpected emitted_at: %v", tr.props[0]["emitted_at"])
			}
		})
	}
}

func TestCheckoutHandler_MissingBasket(t *testing.T) {
	co := &stubCheckout{}
	router := newTestRouter(t, &stubBasketSvc{}, co, &stubAudit{}, nil)

	req := authed(httptest.NewRequest(http.MethodPost, "/sites/edx/api/v1/checkout", strings.NewReader(`{"payment_processor":"paypal"}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if co.last.BasketID != "" {
		t.Fatalf("pipeline must not run without a basket id")
	}
}

func TestPaymentResponsesHandler(t *testing.T) {
	basketID := "b1"
	audit := &stubAudit{rows: []domain.PaymentProcessorResponse{
		{ID: 1, ProcessorName: "paypal", TransactionID: "PAY-1", BasketID: &basketID, Response: json.RawMessage(`{"state":"approved"}`)},
	}}
	router := newTestRouter(t, &stubBasketSvc{}, &stubCheckout{}, audit, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, staff(httptest.NewRequest(http.MethodGet, "/sites/edx/api/v1/payment-responses?transaction_id=PAY-1&processor=paypal&limit=5", nil)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if audit.filter.TransactionID != "PAY-1" || audit.filter.ProcessorName != "paypal" || audit.filter.Limit != 5 {
		t.Fatalf("unexpected filter: %+v", audit.filter)
	}
	var body struct {
		Count   int                               `json:"count"`
		Results []domain.PaymentProcessorResponse `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 || string(body.Results[0].Response) != `{"state":"approved"}` {
		t.Fatalf("unexpected body: %+v", body)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, staff(httptest.NewRequest(http.MethodGet, "/sites/edx/api/v1/payment-responses", nil)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 without filter, got %d", rec.Code)
	}
}

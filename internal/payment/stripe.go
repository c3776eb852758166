package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"learnstore/internal/domain"
)

// StripeProcessor confirms a PaymentIntent created by the client.
type StripeProcessor struct {
	base
	cfg ProcessorConfig
}

func NewStripe(cfg ProcessorConfig, deps Deps) *StripeProcessor {
	return &StripeProcessor{base: newBase(Stripe, "payment_intent_id", deps), cfg: cfg}
}

type stripeIntent struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Error    *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	PaymentMethod *struct {
		Card struct {
			Brand string `json:"brand"`
			Last4 string `json:"last4"`
		} `json:"card"`
	} `json:"payment_method"`
}

func (p *StripeProcessor) HandlePayment(ctx context.Context, payload Payload, basket *domain.Basket) (*Result, error) {
	txnID, err := p.guard(ctx, payload, basket)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Add("expand[]", "payment_method")
	resp, err := p.transport.Do(ctx, Request{
		Method: http.MethodPost,
		URL:    p.apiURL() + "/v1/payment_intents/" + url.PathEscape(txnID) + "/confirm",
		Headers: map[string]string{
			"Authorization":   "Bearer " + p.cfg.SecretKey,
			"Content-Type":    "application/x-www-form-urlencoded",
			"Idempotency-Key": basket.ID + ":" + txnID,
		},
		Body: []byte(form.Encode()),
	})
	if err != nil {
		p.record(ctx, txnID, basket, map[string]string{"error": err.Error()})
		return nil, err
	}
	p.record(ctx, txnID, basket, json.RawMessage(resp.Body))
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("stripe: confirm status %d", resp.StatusCode)
	}

	var intent stripeIntent
	if err := json.Unmarshal(resp.Body, &intent); err != nil {
		return nil, &Error{Processor: p.name, Reason: "invalid_response", Err: err}
	}
	if resp.StatusCode >= 300 {
		reason := fmt.Sprintf("confirm_status_%d", resp.StatusCode)
		if intent.Error != nil && intent.Error.Code != "" {
			reason = intent.Error.Code
		}
		return nil, declined(p.name, reason)
	}
	if intent.Status != "succeeded" {
		return nil, declined(p.name, "status_"+intent.Status)
	}
	if intent.Amount != basket.TotalInclTaxCents() || !strings.EqualFold(intent.Currency, basket.Currency) {
		p.logger.Printf("stripe: amount mismatch transaction_id=%s basket_id=%s charged=%s expected=%s", txnID, basket.ID, formatCents(intent.Amount), formatCents(basket.TotalInclTaxCents()))
		return nil, declined(p.name, "amount_mismatch")
	}

	var label, brand string
	if intent.PaymentMethod != nil {
		label = intent.PaymentMethod.Card.Last4
		brand = intent.PaymentMethod.Card.Brand
	}
	res := newResult(p.name, txnID, label, brand, basket, intent.Amount)
	if err := p.settle(ctx, basket, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *StripeProcessor) apiURL() string {
	if p.cfg.APIURL != "" {
		return strings.TrimRight(p.cfg.APIURL, "/")
	}
	return "https://api.stripe.com"
}

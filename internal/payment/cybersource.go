package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"learnstore/internal/domain"
)

// CyberSourceProcessor verifies signed Secure Acceptance notifications.
type CyberSourceProcessor struct {
	base
	cfg ProcessorConfig
}

func NewCyberSource(cfg ProcessorConfig, deps Deps) *CyberSourceProcessor {
	return &CyberSourceProcessor{base: newBase(CyberSource, "transaction_id", deps), cfg: cfg}
}

func (p *CyberSourceProcessor) HandlePayment(ctx context.Context, payload Payload, basket *domain.Basket) (*Result, error) {
	txnID, err := p.guard(ctx, payload, basket)
	if err != nil {
		return nil, err
	}
	p.record(ctx, txnID, basket, payload)

	if !p.validSignature(payload) {
		return nil, declined(p.name, "invalid_signature")
	}
	if decision := payload["decision"]; decision != "ACCEPT" {
		p.logger.Printf("cybersource: decision=%s reason_code=%s basket_id=%s transaction_id=%s", decision, payload["reason_code"], basket.ID, txnID)
		return nil, declined(p.name, "decision_"+strings.ToLower(decision))
	}
	amount, err := toCents(payload["req_amount"])
	if err != nil {
		return nil, &Error{Processor: p.name, Reason: "invalid_amount", Err: err}
	}
	if amount != basket.TotalInclTaxCents() || !strings.EqualFold(payload["req_currency"], basket.Currency) {
		return nil, declined(p.name, "amount_mismatch")
	}

	res := newResult(p.name, txnID, payload["req_card_number"], payload["req_card_type"], basket, amount)
	if err := p.settle(ctx, basket, res); err != nil {
		return nil, err
	}
	return res, nil
}

// validSignature checks the HMAC-SHA256 over the fields listed in
// signed_field_names, in that order.
func (p *CyberSourceProcessor) validSignature(payload Payload) bool {
	expected := Sign(payload, p.cfg.SecretKey)
	got := payload["signature"]
	return expected != "" && hmac.Equal([]byte(expected), []byte(got))
}

// Sign computes the Secure Acceptance signature of payload.
func Sign(payload Payload, secretKey string) string {
	names := payload["signed_field_names"]
	if names == "" || secretKey == "" {
		return ""
	}
	fields := strings.Split(names, ",")
	pairs := make([]string, 0, len(fields))
	for _, f := range fields {
		pairs = append(pairs, f+"="+payload[f])
	}
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(strings.Join(pairs, ",")))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

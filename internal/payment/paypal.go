package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"learnstore/internal/domain"
)

// PayPalProcessor executes an approved PayPal payment.
type PayPalProcessor struct {
	base
	cfg ProcessorConfig
}

func NewPayPal(cfg ProcessorConfig, deps Deps) *PayPalProcessor {
	return &PayPalProcessor{base: newBase(PayPal, "paymentId", deps), cfg: cfg}
}

type paypalPayment struct {
	ID    string `json:"id"`
	State string `json:"state"`
	Payer struct {
		PayerInfo struct {
			Email string `json:"email"`
		} `json:"payer_info"`
	} `json:"payer"`
	Transactions []struct {
		Amount struct {
			Total    string `json:"total"`
			Currency string `json:"currency"`
		} `json:"amount"`
	} `json:"transactions"`
}

func (p *PayPalProcessor) HandlePayment(ctx context.Context, payload Payload, basket *domain.Basket) (*Result, error) {
	txnID, err := p.guard(ctx, payload, basket)
	if err != nil {
		return nil, err
	}
	payerID := payload["PayerID"]
	if payerID == "" {
		p.record(ctx, txnID, basket, payload)
		return nil, declined(p.name, "missing_payer_id")
	}

	token, err := p.accessToken(ctx, txnID, basket)
	if err != nil {
		return nil, err
	}

	body, _ := json.Marshal(map[string]string{"payer_id": payerID})
	req := Request{
		Method: http.MethodPost,
		URL:    p.apiURL() + "/v1/payments/payment/" + url.PathEscape(txnID) + "/execute",
		Headers: map[string]string{
			"Authorization": "Bearer " + token,
			"Content-Type":  "application/json",
		},
		Body: body,
	}

	attempts := p.cfg.RetryAttempts + 1
	var (
		payment paypalPayment
		lastErr error
	)
	for i := 0; i < attempts; i++ {
		resp, err := p.transport.Do(ctx, req)
		if err != nil {
			p.record(ctx, txnID, basket, map[string]string{"error": err.Error()})
			lastErr = err
			p.logger.Printf("paypal: execute attempt=%d transaction_id=%s error=%v", i+1, txnID, err)
			continue
		}
		p.record(ctx, txnID, basket, json.RawMessage(resp.Body))
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("paypal: execute status %d", resp.StatusCode)
			continue
		}
		lastErr = nil
		if resp.StatusCode >= 300 {
			return nil, declined(p.name, fmt.Sprintf("execute_status_%d", resp.StatusCode))
		}
		if err := json.Unmarshal(resp.Body, &payment); err != nil {
			return nil, &Error{Processor: p.name, Reason: "invalid_response", Err: err}
		}
		break
	}
	if lastErr != nil {
		return nil, lastErr
	}
	if payment.State != "approved" {
		p.logger.Printf("paypal: execute transaction_id=%s basket_id=%s state=%s", txnID, basket.ID, payment.State)
		return nil, declined(p.name, "state_"+strings.ToLower(payment.State))
	}
	if len(payment.Transactions) == 0 {
		return nil, declined(p.name, "missing_transaction")
	}
	amount, err := toCents(payment.Transactions[0].Amount.Total)
	if err != nil {
		return nil, &Error{Processor: p.name, Reason: "invalid_amount", Err: err}
	}
	if amount != basket.TotalInclTaxCents() || !strings.EqualFold(payment.Transactions[0].Amount.Currency, basket.Currency) {
		return nil, declined(p.name, "amount_mismatch")
	}

	res := newResult(p.name, txnID, payment.Payer.PayerInfo.Email, "", basket, amount)
	if err := p.settle(ctx, basket, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *PayPalProcessor) accessToken(ctx context.Context, txnID string, basket *domain.Basket) (string, error) {
	creds := base64.StdEncoding.EncodeToString([]byte(p.cfg.ClientID + ":" + p.cfg.ClientSecret))
	resp, err := p.transport.Do(ctx, Request{
		Method: http.MethodPost,
		URL:    p.apiURL() + "/v1/oauth2/token",
		Headers: map[string]string{
			"Authorization": "Basic " + creds,
			"Content-Type":  "application/x-www-form-urlencoded",
		},
		Body: []byte("grant_type=client_credentials"),
	})
	if err != nil {
		p.record(ctx, txnID, basket, map[string]string{"error": err.Error(), "step": "token"})
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		p.record(ctx, txnID, basket, json.RawMessage(resp.Body))
		return "", fmt.Errorf("paypal: token status %d", resp.StatusCode)
	}
	var tok map[string]any
	if err := json.Unmarshal(resp.Body, &tok); err != nil {
		p.record(ctx, txnID, basket, map[string]any{"step": "token", "status": resp.StatusCode, "error": "invalid token response"})
		return "", fmt.Errorf("paypal: invalid token response")
	}
	accessToken, _ := tok["access_token"].(string)
	if accessToken != "" {
		tok["access_token"] = redacted
	}
	p.record(ctx, txnID, basket, tok)
	if accessToken == "" {
		return "", fmt.Errorf("paypal: invalid token response")
	}
	return accessToken, nil
}

// redacted replaces secrets in recorded processor responses.
const redacted = "[redacted]"

func (p *PayPalProcessor) apiURL() string {
	if p.cfg.APIURL != "" {
		return strings.TrimRight(p.cfg.APIURL, "/")
	}
	if p.cfg.Mode == "live" {
		return "https://api.paypal.com"
	}
	return "https://api.sandbox.paypal.com"
}

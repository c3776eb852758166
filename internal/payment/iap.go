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

// IOSInAppPurchaseProcessor validates an App Store receipt.
type IOSInAppPurchaseProcessor struct {
	base
	cfg ProcessorConfig
}

func NewIOSInAppPurchase(cfg ProcessorConfig, deps Deps) *IOSInAppPurchaseProcessor {
	return &IOSInAppPurchaseProcessor{base: newBase(IOSIAP, "transaction_id", deps), cfg: cfg}
}

type appStoreReceipt struct {
	Status  int `json:"status"`
	Receipt struct {
		BundleID string `json:"bundle_id"`
		InApp    []struct {
			ProductID     string `json:"product_id"`
			TransactionID string `json:"transaction_id"`
		} `json:"in_app"`
	} `json:"receipt"`
}

func (p *IOSInAppPurchaseProcessor) HandlePayment(ctx context.Context, payload Payload, basket *domain.Basket) (*Result, error) {
	txnID, err := p.guard(ctx, payload, basket)
	if err != nil {
		return nil, err
	}
	receipt, productID := payload["receipt"], payload["product_id"]
	if receipt == "" || productID == "" {
		p.record(ctx, txnID, basket, payload)
		return nil, declined(p.name, "missing_receipt")
	}

	body, _ := json.Marshal(map[string]string{
		"receipt-data": receipt,
		"password":     p.cfg.SharedSecret,
	})
	resp, err := p.transport.Do(ctx, Request{
		Method:  http.MethodPost,
		URL:     p.verifyURL(),
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	})
	if err != nil {
		p.record(ctx, txnID, basket, map[string]string{"error": err.Error()})
		return nil, err
	}
	p.record(ctx, txnID, basket, json.RawMessage(resp.Body))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ios-iap: verify status %d", resp.StatusCode)
	}

	var r appStoreReceipt
	if err := json.Unmarshal(resp.Body, &r); err != nil {
		return nil, &Error{Processor: p.name, Reason: "invalid_response", Err: err}
	}
	if r.Status != 0 {
		return nil, declined(p.name, fmt.Sprintf("receipt_status_%d", r.Status))
	}
	matched := false
	for _, item := range r.Receipt.InApp {
		if item.ProductID == productID && (item.TransactionID == "" || item.TransactionID == txnID) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, declined(p.name, "product_not_in_receipt")
	}

	amount := basket.TotalInclTaxCents()
	res := newResult(p.name, txnID, productID, "", basket, amount)
	if err := p.settle(ctx, basket, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *IOSInAppPurchaseProcessor) verifyURL() string {
	if p.cfg.APIURL != "" {
		return p.cfg.APIURL
	}
	if p.cfg.Mode == "live" {
		return "https://buy.itunes.apple.com/verifyReceipt"
	}
	return "https://sandbox.itunes.apple.com/verifyReceipt"
}

// AndroidInAppPurchaseProcessor validates a Google Play purchase token.
type AndroidInAppPurchaseProcessor struct {
	base
	cfg ProcessorConfig
}

func NewAndroidInAppPurchase(cfg ProcessorConfig, deps Deps) *AndroidInAppPurchaseProcessor {
	return &AndroidInAppPurchaseProcessor{base: newBase(AndroidIAP, "purchase_token", deps), cfg: cfg}
}

type playPurchase struct {
	PurchaseState int    `json:"purchaseState"`
	OrderID       string `json:"orderId"`
}

func (p *AndroidInAppPurchaseProcessor) HandlePayment(ctx context.Context, payload Payload, basket *domain.Basket) (*Result, error) {
	token, err := p.guard(ctx, payload, basket)
	if err != nil {
		return nil, err
	}
	productID := payload["product_id"]
	if productID == "" {
		p.record(ctx, token, basket, payload)
		return nil, declined(p.name, "missing_product_id")
	}

	resp, err := p.transport.Do(ctx, Request{
		Method: http.MethodGet,
		URL: fmt.Sprintf("%s/androidpublisher/v3/applications/%s/purchases/products/%s/tokens/%s",
			p.apiURL(), url.PathEscape(p.cfg.PackageName), url.PathEscape(productID), url.PathEscape(token)),
		Headers: map[string]string{"Authorization": "Bearer " + p.cfg.AccessToken},
	})
	if err != nil {
		p.record(ctx, token, basket, map[string]string{"error": err.Error()})
		return nil, err
	}
	p.record(ctx, token, basket, json.RawMessage(resp.Body))
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("android-iap: status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, declined(p.name, fmt.Sprintf("purchase_status_%d", resp.StatusCode))
	}

	var purchase playPurchase
	if err := json.Unmarshal(resp.Body, &purchase); err != nil {
		return nil, &Error{Processor: p.name, Reason: "invalid_response", Err: err}
	}
	if purchase.PurchaseState != 0 {
		return nil, declined(p.name, fmt.Sprintf("purchase_state_%d", purchase.PurchaseState))
	}

	res := newResult(p.name, token, purchase.OrderID, "", basket, basket.TotalInclTaxCents())
	if err := p.settle(ctx, basket, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *AndroidInAppPurchaseProcessor) apiURL() string {
	if p.cfg.APIURL != "" {
		return strings.TrimRight(p.cfg.APIURL, "/")
	}
	return "https://androidpublisher.googleapis.com"
}

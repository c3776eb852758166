package domain

import (
	"encoding/json"
	"time"
)

// PaymentProcessorResponse is an append-only audit row for one call to a
// payment processor. BasketID is nil once the basket is deleted.
type PaymentProcessorResponse struct {
	ID            int64           `json:"id"`
	ProcessorName string          `json:"processorName"`
	TransactionID string          `json:"transactionId,omitempty"`
	BasketID      *string         `json:"basketId,omitempty"`
	Response      json.RawMessage `json:"response"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// PaymentSource describes the funds used to pay for a basket.
type PaymentSource struct {
	Type            string `json:"type"`
	Label           string `json:"label,omitempty"`
	CardType        string `json:"cardType,omitempty"`
	Reference       string `json:"reference"`
	AmountAllocated int64  `json:"amountAllocated"`
	AmountDebited   int64  `json:"amountDebited"`
	Currency        string `json:"currency"`
}

// PaymentEvent is the settled payment recorded against the basket.
type PaymentEvent struct {
	Type          string `json:"type"`
	ProcessorName string `json:"processorName"`
	Reference     string `json:"reference"`
	AmountCents   int64  `json:"amountCents"`
}

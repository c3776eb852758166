package domain

import "time"

// Basket statuses. Only an Open basket accepts mutations; Frozen is held while
// payment is handled and Submitted is terminal once an order exists.
const (
	BasketOpen      = "Open"
	BasketFrozen    = "Frozen"
	BasketSubmitted = "Submitted"
)

type Basket struct {
	ID         string         `json:"id"`
	SiteID     string         `json:"-"`
	Owner      string         `json:"owner"`
	OwnerEmail string         `json:"-"`
	Currency   string         `json:"currency"`
	Status     string         `json:"status"`
	Lines      []Line         `json:"lines,omitempty"`
	Discounts  []Discount     `json:"discounts,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Line is a basket line. Consumed tracks units already claimed by an offer
// during the current offer application and is never persisted.
type Line struct {
	ID             string    `json:"id"`
	BasketID       string    `json:"basketId"`
	Product        Product   `json:"product"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unitPriceCents"`
	DiscountCents  int64     `json:"discountCents"`
	Consumed       int       `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Discount records an offer (or voucher) applied to the basket.
type Discount struct {
	OfferID     string `json:"offerId"`
	OfferName   string `json:"offerName"`
	VoucherCode string `json:"voucherCode,omitempty"`
	AmountCents int64  `json:"amountCents"`
}

func (b *Basket) IsEmpty() bool {
	return len(b.Lines) == 0
}

func (b *Basket) IsOpen() bool {
	return b.Status == "" || b.Status == BasketOpen
}

func (b *Basket) IsSubmitted() bool {
	return b.Status == BasketSubmitted
}

// SKUs returns the distinct partner SKUs across all lines.
func (b *Basket) SKUs() map[string]struct{} {
	skus := make(map[string]struct{}, len(b.Lines))
	for _, line := range b.Lines {
		if line.Product.SKU != "" {
			skus[line.Product.SKU] = struct{}{}
		}
	}
	return skus
}

func (b *Basket) TotalExclTaxCents() int64 {
	var total int64
	for _, line := range b.Lines {
		total += line.LineTotalCents()
	}
	return total
}

// TotalInclTaxCents equals the excl. tax total; seats carry no tax.
func (b *Basket) TotalInclTaxCents() int64 {
	return b.TotalExclTaxCents()
}

func (b *Basket) DiscountCents() int64 {
	var total int64
	for _, d := range b.Discounts {
		total += d.AmountCents
	}
	return total
}

// VoucherCode returns the first voucher code among applied discounts.
func (b *Basket) VoucherCode() string {
	for _, d := range b.Discounts {
		if d.VoucherCode != "" {
			return d.VoucherCode
		}
	}
	return ""
}

// ResetOffers clears discounts and consumption so offers can be recomputed.
func (b *Basket) ResetOffers() {
	b.Discounts = nil
	for i := range b.Lines {
		b.Lines[i].DiscountCents = 0
		b.Lines[i].Consumed = 0
	}
}

func (l *Line) LineTotalCents() int64 {
	total := l.UnitPriceCents*int64(l.Quantity) - l.DiscountCents
	if total < 0 {
		return 0
	}
	return total
}

func (l *Line) QuantityWithoutDiscount() int {
	left := l.Quantity - l.Consumed
	if left < 0 {
		return 0
	}
	return left
}

// Consume marks n units as used by an offer, capped at what is still available.
func (l *Line) Consume(n int) {
	if n > l.QuantityWithoutDiscount() {
		n = l.QuantityWithoutDiscount()
	}
	l.Consumed += n
}

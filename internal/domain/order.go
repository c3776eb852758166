package domain

import (
	"fmt"
	"strings"
	"time"
)

const OrderComplete = "Complete"

// Order is the immutable result of a checkout. It is created from exactly one
// basket and keeps a denormalized copy of the purchased lines.
type Order struct {
	Number            string      `json:"number"`
	BasketID          string      `json:"basketId"`
	SiteID            string      `json:"-"`
	User              User        `json:"user"`
	Currency          string      `json:"currency"`
	TotalExclTaxCents int64       `json:"totalExclTaxCents"`
	TotalInclTaxCents int64       `json:"totalInclTaxCents"`
	DiscountCents     int64       `json:"discountCents"`
	VoucherCode       string      `json:"voucherCode,omitempty"`
	Status            string      `json:"status"`
	Lines             []OrderLine `json:"lines"`
	CreatedAt         time.Time   `json:"createdAt"`
}

type OrderLine struct {
	ProductID             string `json:"productId"`
	PartnerSKU            string `json:"partnerSku"`
	Title                 string `json:"title"`
	ProductClass          string `json:"productClass"`
	CourseID              string `json:"courseId,omitempty"`
	SeatType              string `json:"seatType,omitempty"`
	CreditProvider        string `json:"creditProvider,omitempty"`
	CreditHours           int    `json:"creditHours,omitempty"`
	Quantity              int    `json:"quantity"`
	LinePriceExclTaxCents int64  `json:"linePriceExclTaxCents"`
}

// OrderNumberFor derives the order number from the partner code and basket id,
// so a basket can only ever map to one number.
func OrderNumberFor(partnerCode, basketID string) string {
	code := strings.ToUpper(strings.TrimSpace(partnerCode))
	if code == "" {
		code = "ORD"
	}
	return fmt.Sprintf("%s-%s", code, basketID)
}

// NewOrderFromBasket snapshots a basket into an order.
func NewOrderFromBasket(number string, site Site, user User, b *Basket) Order {
	lines := make([]OrderLine, 0, len(b.Lines))
	for _, l := range b.Lines {
		lines = append(lines, OrderLine{
			ProductID:             l.Product.ID,
			PartnerSKU:            l.Product.SKU,
			Title:                 l.Product.Title,
			ProductClass:          l.Product.ProductClass,
			CourseID:              l.Product.CourseID,
			SeatType:              l.Product.SeatType,
			CreditProvider:        l.Product.CreditProvider,
			CreditHours:           l.Product.CreditHours,
			Quantity:              l.Quantity,
			LinePriceExclTaxCents: l.LineTotalCents(),
		})
	}
	return Order{
		Number:            number,
		BasketID:          b.ID,
		SiteID:            site.ID,
		User:              user,
		Currency:          b.Currency,
		TotalExclTaxCents: b.TotalExclTaxCents(),
		TotalInclTaxCents: b.TotalInclTaxCents(),
		DiscountCents:     b.DiscountCents(),
		VoucherCode:       b.VoucherCode(),
		Status:            OrderComplete,
		Lines:             lines,
	}
}

// IsCourseCompletionEvent is false for free orders and orders containing coupon
// or enrollment code products.
func (o Order) IsCourseCompletionEvent() bool {
	if o.TotalExclTaxCents <= 0 {
		return false
	}
	for _, l := range o.Lines {
		if l.ProductClass == ProductClassCoupon || l.ProductClass == ProductClassEnrollmentCode {
			return false
		}
	}
	return true
}

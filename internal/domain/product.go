package domain

import "time"

// Product classes known to the catalogue.
const (
	ProductClassSeat           = "Seat"
	ProductClassCoupon         = "Coupon"
	ProductClassEnrollmentCode = "Enrollment Code"
)

// Product is a purchasable variant together with its stock record. SKU is the
// partner SKU of the stock record.
type Product struct {
	ID             string                 `json:"id"`
	SiteID         string                 `json:"-"`
	SKU            string                 `json:"sku"`
	Title          string                 `json:"title"`
	ProductClass   string                 `json:"productClass"`
	CourseID       string                 `json:"courseId,omitempty"`
	SeatType       string                 `json:"seatType,omitempty"`
	PriceCents     int64                  `json:"priceCents"`
	Currency       string                 `json:"currency"`
	IsDiscountable bool                   `json:"isDiscountable"`
	IsAvailable    bool                   `json:"isAvailable"`
	CreditProvider string                 `json:"creditProvider,omitempty"`
	CreditHours    int                    `json:"creditHours,omitempty"`
	Attributes     map[string]interface{} `json:"attributes,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
}

func (p Product) IsSeat() bool {
	return p.ProductClass == ProductClassSeat
}

// IsCouponOrEnrollmentCode reports products that do not represent a course purchase.
func (p Product) IsCouponOrEnrollmentCode() bool {
	return p.ProductClass == ProductClassCoupon || p.ProductClass == ProductClassEnrollmentCode
}

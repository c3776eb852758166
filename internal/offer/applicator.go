package offer

import (
	"context"
	"fmt"
	"io"
	"log"

	"learnstore/internal/domain"

	"github.com/shopspring/decimal"
)

// OfferLister lists the offers active on a site.
type OfferLister interface {
	ListActiveBySite(ctx context.Context, siteID string) ([]domain.ProgramOffer, error)
}

// Applicator recomputes the discounts of a basket from the site's active
// program offers. Offers are applied in priority order; lines consumed by an
// earlier offer are not discounted again.
type Applicator struct {
	offers      OfferLister
	programs    ProgramSource
	enrollments EnrollmentSource
	strategy    Strategy
	logger      *log.Logger
}

func NewApplicator(offers OfferLister, programs ProgramSource, enrollments EnrollmentSource, logger *log.Logger) *Applicator {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Applicator{
		offers:      offers,
		programs:    programs,
		enrollments: enrollments,
		strategy:    StockRecordStrategy{},
		logger:      logger,
	}
}

// Apply resets and recomputes basket discounts in memory. Only a failure to
// list offers is returned; condition lookups fail closed.
func (a *Applicator) Apply(ctx context.Context, site domain.Site, basket *domain.Basket) error {
	basket.ResetOffers()
	if basket.IsEmpty() {
		return nil
	}
	offers, err := a.offers.ListActiveBySite(ctx, site.ID)
	if err != nil {
		return fmt.Errorf("list offers: %w", err)
	}
	for _, o := range offers {
		cond := NewProgramCondition(o.ProgramUUID, a.programs, a.enrollments, a.logger)
		discount := a.applyOffer(ctx, site, basket, o, cond)
		if discount > 0 {
			basket.Discounts = append(basket.Discounts, domain.Discount{
				OfferID:     o.ID,
				OfferName:   o.Name,
				AmountCents: discount,
			})
			a.logger.Printf("offer: applied offer_id=%s basket_id=%s discount_cents=%d", o.ID, basket.ID, discount)
		}
	}
	return nil
}

func (a *Applicator) applyOffer(ctx context.Context, site domain.Site, basket *domain.Basket, o domain.ProgramOffer, cond Condition) int64 {
	if !cond.IsSatisfied(ctx, site, basket) {
		return 0
	}
	lines := cond.ApplicableLines(ctx, site, basket, a.strategy, true)

	var (
		affected  []AffectedLine
		total     int64
		remaining = o.BenefitValue
	)
	for _, al := range lines {
		if al.Line.QuantityWithoutDiscount() == 0 {
			continue
		}
		var d int64
		switch o.BenefitType {
		case domain.BenefitPercentage:
			d = percentOf(al.PriceCents, o.BenefitValue)
		case domain.BenefitAbsolute:
			d = min(remaining, al.PriceCents)
			remaining -= d
		}
		if d <= 0 {
			continue
		}
		al.Line.DiscountCents += d
		total += d
		affected = append(affected, AffectedLine{Line: al.Line, DiscountCents: d, Quantity: 1})
	}
	cond.ConsumeItems(basket, affected)
	return total
}

// percentOf returns pct percent of cents, rounded half away from zero.
func percentOf(cents, pct int64) int64 {
	if pct > 100 {
		pct = 100
	}
	return decimal.NewFromInt(cents).
		Mul(decimal.NewFromInt(pct)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

// Package offer evaluates program bundle conditions against baskets and applies
// the resulting discounts.
package offer

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"

	"learnstore/internal/domain"
)

// ProgramSource fetches program definitions from the catalog.
type ProgramSource interface {
	GetProgram(ctx context.Context, site domain.Site, programUUID string) (*domain.Program, error)
}

// EnrollmentSource fetches a learner's existing enrollments.
type EnrollmentSource interface {
	GetEnrollments(ctx context.Context, site domain.Site, username string) ([]domain.Enrollment, error)
}

// Condition decides whether a basket qualifies for an offer and which lines
// the offer may discount.
type Condition interface {
	Name() string
	IsSatisfied(ctx context.Context, site domain.Site, basket *domain.Basket) bool
	ApplicableLines(ctx context.Context, site domain.Site, basket *domain.Basket, strategy Strategy, mostExpensiveFirst bool) []ApplicableLine
	ConsumeItems(basket *domain.Basket, affected []AffectedLine)
}

// ApplicableLine is a basket line together with its unit price.
type ApplicableLine struct {
	PriceCents int64
	Line       *domain.Line
}

// AffectedLine is a line that received a discount from an offer.
type AffectedLine struct {
	Line          *domain.Line
	DiscountCents int64
	Quantity      int
}

// ProgramCondition is satisfied when every course of a program is covered
// either by an existing enrollment or by a distinct SKU in the basket.
type ProgramCondition struct {
	ProgramUUID string

	programs    ProgramSource
	enrollments EnrollmentSource
	logger      *log.Logger
}

func NewProgramCondition(programUUID string, programs ProgramSource, enrollments EnrollmentSource, logger *log.Logger) *ProgramCondition {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &ProgramCondition{
		ProgramUUID: programUUID,
		programs:    programs,
		enrollments: enrollments,
		logger:      logger,
	}
}

func (c *ProgramCondition) Name() string {
	return fmt.Sprintf("Basket contains a seat for every course in program %s", c.ProgramUUID)
}

// IsSatisfied never returns an error: when the catalog or enrollment service
// cannot be reached the condition is simply not met.
func (c *ProgramCondition) IsSatisfied(ctx context.Context, site domain.Site, basket *domain.Basket) bool {
	if basket == nil || basket.IsEmpty() {
		return false
	}
	basketSKUs := basket.SKUs()

	program, err := c.programs.GetProgram(ctx, site, c.ProgramUUID)
	if err != nil {
		c.logger.Printf("offer: program lookup failed program_uuid=%s basket_id=%s error=%v", c.ProgramUUID, basket.ID, err)
		return false
	}
	enrollments, err := c.enrollments.GetEnrollments(ctx, site, basket.Owner)
	if err != nil {
		c.logger.Printf("offer: enrollment lookup failed program_uuid=%s user=%s error=%v", c.ProgramUUID, basket.Owner, err)
		return false
	}

	seatTypes := toSet(program.ApplicableSeatTypes)
	for _, course := range program.Courses {
		if enrolledIn(course, enrollments, seatTypes) {
			continue
		}
		if len(basketSKUs) == 0 {
			return false
		}

		courseSKUs := courseSeatSKUs(course, seatTypes)
		matched := false
		for sku := range courseSKUs {
			if _, ok := basketSKUs[sku]; ok {
				delete(basketSKUs, sku)
				matched = true
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// ApplicableSKUs returns every program seat SKU of an applicable seat type.
func (c *ProgramCondition) ApplicableSKUs(ctx context.Context, site domain.Site) (map[string]struct{}, error) {
	program, err := c.programs.GetProgram(ctx, site, c.ProgramUUID)
	if err != nil {
		return nil, err
	}
	seatTypes := toSet(program.ApplicableSeatTypes)
	skus := make(map[string]struct{})
	for _, course := range program.Courses {
		for sku := range courseSeatSKUs(course, seatTypes) {
			skus[sku] = struct{}{}
		}
	}
	return skus, nil
}

// CanApplyCondition reports whether the line's SKU belongs to the program and
// its product is discountable.
func (c *ProgramCondition) CanApplyCondition(ctx context.Context, site domain.Site, line domain.Line) bool {
	skus, err := c.ApplicableSKUs(ctx, site)
	if err != nil {
		c.logger.Printf("offer: applicable skus failed program_uuid=%s error=%v", c.ProgramUUID, err)
		return false
	}
	return canApply(line, skus)
}

// ApplicableLines returns the lines this condition may discount, ordered by
// unit price. Lines priced at zero are skipped.
func (c *ProgramCondition) ApplicableLines(ctx context.Context, site domain.Site, basket *domain.Basket, strategy Strategy, mostExpensiveFirst bool) []ApplicableLine {
	if basket == nil || basket.IsEmpty() {
		return nil
	}
	skus, err := c.ApplicableSKUs(ctx, site)
	if err != nil {
		c.logger.Printf("offer: applicable skus failed program_uuid=%s basket_id=%s error=%v", c.ProgramUUID, basket.ID, err)
		return nil
	}
	if strategy == nil {
		strategy = StockRecordStrategy{}
	}

	var out []ApplicableLine
	for i := range basket.Lines {
		line := &basket.Lines[i]
		if !canApply(*line, skus) {
			continue
		}
		price := strategy.UnitPriceCents(*line)
		if price <= 0 {
			continue
		}
		out = append(out, ApplicableLine{PriceCents: price, Line: line})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if mostExpensiveFirst {
			return out[i].PriceCents > out[j].PriceCents
		}
		return out[i].PriceCents < out[j].PriceCents
	})
	return out
}

// ConsumeItems marks at most one unit of each affected line as used.
func (c *ProgramCondition) ConsumeItems(_ *domain.Basket, affected []AffectedLine) {
	for _, a := range affected {
		qty := a.Line.QuantityWithoutDiscount()
		if qty > 1 {
			qty = 1
		}
		a.Line.Consume(qty)
	}
}

func canApply(line domain.Line, skus map[string]struct{}) bool {
	if line.Product.SKU == "" {
		return false
	}
	if _, ok := skus[line.Product.SKU]; !ok {
		return false
	}
	return line.Product.IsDiscountable
}

func enrolledIn(course domain.Course, enrollments []domain.Enrollment, seatTypes map[string]struct{}) bool {
	for _, e := range enrollments {
		if _, ok := seatTypes[e.Mode]; !ok {
			continue
		}
		if strings.Contains(e.CourseDetails.CourseID, course.Key) {
			return true
		}
	}
	return false
}

func courseSeatSKUs(course domain.Course, seatTypes map[string]struct{}) map[string]struct{} {
	skus := make(map[string]struct{})
	for _, run := range course.CourseRuns {
		for _, seat := range run.Seats {
			if _, ok := seatTypes[seat.Type]; ok && seat.SKU != "" {
				skus[seat.SKU] = struct{}{}
			}
		}
	}
	return skus
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}

var _ Condition = (*ProgramCondition)(nil)

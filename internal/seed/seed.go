package seed

import (
	"context"
	"fmt"

	"learnstore/internal/domain"
)

type SiteWriter interface {
	Upsert(ctx context.Context, site domain.Site) (*domain.Site, error)
}

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

type OfferWriter interface {
	Upsert(ctx context.Context, offer domain.ProgramOffer) (*domain.ProgramOffer, error)
}

type Repos struct {
	Sites    SiteWriter
	Products ProductWriter
	Offers   OfferWriter
}

// DemoProgramUUID is the program bundling the demo seats.
const DemoProgramUUID = "8d6b1c52-54a4-4d3d-9f59-3c3c5e1f0a11"

var demoSeats = []domain.Product{
	{
		SKU:          "SEAT-PHYS-VERIFIED",
		Title:        "Verified seat in Intro to Physics",
		CourseID:     "course-v1:Demo+PHYS101+2026",
		SeatType:     "verified",
		PriceCents:   4900,
		Currency:     "USD",
		ProductClass: domain.ProductClassSeat,
	},
	{
		SKU:          "SEAT-CHEM-VERIFIED",
		Title:        "Verified seat in Intro to Chemistry",
		CourseID:     "course-v1:Demo+CHEM101+2026",
		SeatType:     "verified",
		PriceCents:   4900,
		Currency:     "USD",
		ProductClass: domain.ProductClassSeat,
	},
	{
		SKU:            "SEAT-PHYS-CREDIT",
		Title:          "Credit seat in Intro to Physics",
		CourseID:       "course-v1:Demo+PHYS101+2026",
		SeatType:       "credit",
		PriceCents:     19900,
		Currency:       "USD",
		ProductClass:   domain.ProductClassSeat,
		CreditProvider: "demo-university",
		CreditHours:    3,
	},
}

// Apply inserts a demo site, its seats and a program offer for manual testing.
// Every write is an upsert, so running it twice is harmless.
func Apply(ctx context.Context, repos Repos) error {
	site, err := repos.Sites.Upsert(ctx, domain.Site{
		Key:              "demo",
		Domain:           "demo.localhost",
		Name:             "Demo Storefront",
		PartnerCode:      "DEMO",
		LMSURL:           "http://localhost:18000",
		DiscoveryAPIURL:  "http://localhost:18381/api/v1",
		EnrollmentAPIURL: "http://localhost:18000/api/enrollment/v1",
		CreditAPIURL:     "http://localhost:18000/api/credit/v1",
	})
	if err != nil {
		return fmt.Errorf("upsert site: %w", err)
	}

	for _, p := range demoSeats {
		p.SiteID = site.ID
		p.IsAvailable = true
		p.IsDiscountable = true
		if _, err := repos.Products.Upsert(ctx, p); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.SKU, err)
		}
	}

	_, err = repos.Offers.Upsert(ctx, domain.ProgramOffer{
		SiteID:       site.ID,
		Name:         "Demo program bundle",
		ProgramUUID:  DemoProgramUUID,
		BenefitType:  domain.BenefitPercentage,
		BenefitValue: 10,
		IsActive:     true,
	})
	if err != nil {
		return fmt.Errorf("upsert offer: %w", err)
	}
	return nil
}

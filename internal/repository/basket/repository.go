package basket

import (
	"context"

	"learnstore/internal/domain"
)

type CreateBasketInput struct {
	SiteID     string
	Owner      string
	OwnerEmail string
	Currency   string
}

type Repository interface {
	Create(ctx context.Context, in CreateBasketInput) (*domain.Basket, error)
	GetByID(ctx context.Context, siteID, id string) (*domain.Basket, error)
	GetOpenByOwner(ctx context.Context, siteID, owner string) (*domain.Basket, error)
	AddLine(ctx context.Context, basketID string, product domain.Product, quantity int) error
	ChangeLineQuantity(ctx context.Context, basketID, lineID string, quantity int) error
	ReplaceDiscounts(ctx context.Context, basketID string, discounts []domain.Discount) error
	// Transition moves the basket from one status to another. It fails with
	// domain.ErrBasketFrozen when the basket is not currently in from.
	Transition(ctx context.Context, basketID, from, to string) error
}

package order

import (
	"context"

	"learnstore/internal/domain"
)

type Repository interface {
	// Create inserts the order and its lines. A second order for the same
	// basket fails with domain.ErrAlreadyPlaced.
	Create(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetByNumber(ctx context.Context, number string) (*domain.Order, error)
	GetByBasketID(ctx context.Context, basketID string) (*domain.Order, error)
	// PurchasedSKUs returns the subset of skus the user already bought on the site.
	PurchasedSKUs(ctx context.Context, siteID, username string, skus []string) ([]string, error)
}

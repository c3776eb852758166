package product

import (
	"context"

	"learnstore/internal/domain"
)

type Repository interface {
	ListBySite(ctx context.Context, siteID string) ([]domain.Product, error)
	GetByID(ctx context.Context, siteID, id string) (*domain.Product, error)
	GetBySKU(ctx context.Context, siteID, sku string) (*domain.Product, error)
	ListBySKUs(ctx context.Context, siteID string, skus []string) ([]domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

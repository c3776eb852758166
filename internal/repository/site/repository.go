package site

import (
	"context"

	"learnstore/internal/domain"
)

type Repository interface {
	GetByKey(ctx context.Context, key string) (*domain.Site, error)
	GetByID(ctx context.Context, id string) (*domain.Site, error)
	Upsert(ctx context.Context, site domain.Site) (*domain.Site, error)
}

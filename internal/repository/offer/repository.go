package offer

import (
	"context"

	"learnstore/internal/domain"
)

type Repository interface {
	ListActiveBySite(ctx context.Context, siteID string) ([]domain.ProgramOffer, error)
	Upsert(ctx context.Context, offer domain.ProgramOffer) (*domain.ProgramOffer, error)
}

package sdn

import (
	"context"
	"time"

	"learnstore/internal/domain"
)

type Repository interface {
	// RecordDownload stores a freshly downloaded file as the New import,
	// replacing any New import that was never promoted.
	RecordDownload(ctx context.Context, checksum string, downloadedAt time.Time) (*domain.SDNFallbackMetadata, error)
	// SwapAllStates rotates New -> Current -> Discard in one transaction and
	// drops the previous Discard row.
	SwapAllStates(ctx context.Context) error
	List(ctx context.Context) ([]domain.SDNFallbackMetadata, error)
}

package offer

import (
	"context"
	"io"
	"log"

	"learnstore/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

// ListActiveBySite returns active offers, highest priority first.
func (r *postgresRepo) ListActiveBySite(ctx context.Context, siteID string) ([]domain.ProgramOffer, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id::text, site_id::text, name, program_uuid, benefit_type, benefit_value, priority, is_active, created_at
FROM program_offers
WHERE site_id = $1 AND is_active
ORDER BY priority DESC, created_at ASC
`, siteID)
	if err != nil {
		r.logger.Printf("offer repo: list site_id=%s error=%v", siteID, err)
		return nil, err
	}
	defer rows.Close()

	var out []domain.ProgramOffer
	for rows.Next() {
		var o domain.ProgramOffer
		if err := rows.Scan(&o.ID, &o.SiteID, &o.Name, &o.ProgramUUID, &o.BenefitType, &o.BenefitValue, &o.Priority, &o.IsActive, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *postgresRepo) Upsert(ctx context.Context, o domain.ProgramOffer) (*domain.ProgramOffer, error) {
	out := o
	err := r.pool.QueryRow(ctx, `
INSERT INTO program_offers (site_id, name, program_uuid, benefit_type, benefit_value, priority, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (site_id, program_uuid) DO UPDATE SET
    name = EXCLUDED.name,
    benefit_type = EXCLUDED.benefit_type,
    benefit_value = EXCLUDED.benefit_value,
    priority = EXCLUDED.priority,
    is_active = EXCLUDED.is_active
RETURNING id::text, created_at
`, o.SiteID, o.Name, o.ProgramUUID, o.BenefitType, o.BenefitValue, o.Priority, o.IsActive).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		r.logger.Printf("offer repo: upsert site_id=%s program_uuid=%s error=%v", o.SiteID, o.ProgramUUID, err)
		return nil, err
	}
	return &out, nil
}

package site

import (
	"context"
	"errors"
	"io"
	"log"

	"learnstore/internal/domain"

	"github.com/jackc/pgx/v5"
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

const siteColumns = `id::text, key, domain, name, partner_code, lms_url, discovery_api_url, enrollment_api_url, credit_api_url, created_at`

func (r *postgresRepo) GetByKey(ctx context.Context, key string) (*domain.Site, error) {
	s, err := r.fetch(ctx, `SELECT `+siteColumns+` FROM sites WHERE key = $1`, key)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		r.logger.Printf("site repo: get key=%s error=%v", key, err)
	}
	return s, err
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Site, error) {
	return r.fetch(ctx, `SELECT `+siteColumns+` FROM sites WHERE id = $1`, id)
}

func (r *postgresRepo) Upsert(ctx context.Context, site domain.Site) (*domain.Site, error) {
	const q = `
INSERT INTO sites (key, domain, name, partner_code, lms_url, discovery_api_url, enrollment_api_url, credit_api_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (key) DO UPDATE SET
    domain = EXCLUDED.domain,
    name = EXCLUDED.name,
    partner_code = EXCLUDED.partner_code,
    lms_url = EXCLUDED.lms_url,
    discovery_api_url = EXCLUDED.discovery_api_url,
    enrollment_api_url = EXCLUDED.enrollment_api_url,
    credit_api_url = EXCLUDED.credit_api_url
RETURNING id::text, created_at
`
	out := site
	err := r.pool.QueryRow(ctx, q,
		site.Key, site.Domain, site.Name, site.PartnerCode,
		site.LMSURL, site.DiscoveryAPIURL, site.EnrollmentAPIURL, site.CreditAPIURL,
	).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		r.logger.Printf("site repo: upsert key=%s error=%v", site.Key, err)
		return nil, err
	}
	r.logger.Printf("site repo: upserted key=%s id=%s", out.Key, out.ID)
	return &out, nil
}

func (r *postgresRepo) fetch(ctx context.Context, q string, arg string) (*domain.Site, error) {
	var s domain.Site
	err := r.pool.QueryRow(ctx, q, arg).Scan(
		&s.ID, &s.Key, &s.Domain, &s.Name, &s.PartnerCode,
		&s.LMSURL, &s.DiscoveryAPIURL, &s.EnrollmentAPIURL, &s.CreditAPIURL, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

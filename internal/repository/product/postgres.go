package product

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

// Columns shared by every product query; keep in sync with scanProduct.
const productColumns = `id::text, site_id::text, sku, title, product_class, COALESCE(course_id, ''), COALESCE(seat_type, ''),
price_cents, currency, is_discountable, is_available, COALESCE(credit_provider, ''), credit_hours, attributes, created_at`

func scanProduct(row pgx.Row, p *domain.Product) error {
	return row.Scan(
		&p.ID, &p.SiteID, &p.SKU, &p.Title, &p.ProductClass, &p.CourseID, &p.SeatType,
		&p.PriceCents, &p.Currency, &p.IsDiscountable, &p.IsAvailable, &p.CreditProvider, &p.CreditHours,
		&p.Attributes, &p.CreatedAt,
	)
}

func (r *postgresRepo) ListBySite(ctx context.Context, siteID string) ([]domain.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE site_id = $1 ORDER BY created_at DESC`
	result, err := r.list(ctx, q, siteID)
	if err != nil {
		r.logger.Printf("product repo: list site_id=%s error=%v", siteID, err)
		return nil, err
	}
	r.logger.Printf("product repo: list site_id=%s count=%d", siteID, len(result))
	return result, nil
}

func (r *postgresRepo) ListBySKUs(ctx context.Context, siteID string, skus []string) ([]domain.Product, error) {
	if len(skus) == 0 {
		return nil, nil
	}
	q := `SELECT ` + productColumns + ` FROM products WHERE site_id = $1 AND sku = ANY($2) ORDER BY sku`
	result, err := r.list(ctx, q, siteID, skus)
	if err != nil {
		r.logger.Printf("product repo: list skus site_id=%s count=%d error=%v", siteID, len(skus), err)
		return nil, err
	}
	return result, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, siteID, id string) (*domain.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE site_id = $1 AND id = $2`
	var p domain.Product
	if err := scanProduct(r.pool.QueryRow(ctx, q, siteID, id), &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Printf("product repo: get site_id=%s id=%s not found", siteID, id)
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("product repo: get site_id=%s id=%s error=%v", siteID, id, err)
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepo) GetBySKU(ctx context.Context, siteID, sku string) (*domain.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE site_id = $1 AND sku = $2`
	var p domain.Product
	if err := scanProduct(r.pool.QueryRow(ctx, q, siteID, sku), &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("product repo: get site_id=%s sku=%s error=%v", siteID, sku, err)
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	const q = `
INSERT INTO products (site_id, sku, title, product_class, course_id, seat_type, price_cents, currency,
    is_discountable, is_available, credit_provider, credit_hours, attributes)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10, NULLIF($11, ''), $12, COALESCE($13, '{}'::jsonb))
ON CONFLICT (site_id, sku) DO UPDATE SET
    title = EXCLUDED.title,
    product_class = EXCLUDED.product_class,
    course_id = EXCLUDED.course_id,
    seat_type = EXCLUDED.seat_type,
    price_cents = EXCLUDED.price_cents,
    currency = EXCLUDED.currency,
    is_discountable = EXCLUDED.is_discountable,
    is_available = EXCLUDED.is_available,
    credit_provider = EXCLUDED.credit_provider,
    credit_hours = EXCLUDED.credit_hours,
    attributes = EXCLUDED.attributes
RETURNING id::text, created_at
`
	res := product
	err := r.pool.QueryRow(ctx, q,
		product.SiteID,
		product.SKU,
		product.Title,
		product.ProductClass,
		product.CourseID,
		product.SeatType,
		product.PriceCents,
		product.Currency,
		product.IsDiscountable,
		product.IsAvailable,
		product.CreditProvider,
		product.CreditHours,
		product.Attributes,
	).Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		r.logger.Printf("product repo: upsert sku=%s site_id=%s error=%v", product.SKU, product.SiteID, err)
		return nil, err
	}
	r.logger.Printf("product repo: upserted sku=%s site_id=%s id=%s", res.SKU, res.SiteID, res.ID)
	return &res, nil
}

func (r *postgresRepo) list(ctx context.Context, q string, args ...any) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

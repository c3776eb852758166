package testdb

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// InsertSite creates a site row and returns its id.
func InsertSite(t *testing.T, pool *pgxpool.Pool, key string) string {
	t.Helper()
	var id string
	err := pool.QueryRow(context.Background(), `
INSERT INTO sites (key, name, partner_code, lms_url)
VALUES ($1, $1, 'EDX', 'https://lms.example.com')
RETURNING id::text`, key).Scan(&id)
	if err != nil {
		t.Fatalf("insert site: %v", err)
	}
	return id
}

// InsertSeat creates a discountable seat product and returns its id.
func InsertSeat(t *testing.T, pool *pgxpool.Pool, siteID, sku, courseID string, priceCents int64) string {
	t.Helper()
	var id string
	err := pool.QueryRow(context.Background(), `
INSERT INTO products (site_id, sku, title, product_class, course_id, seat_type, price_cents, currency)
VALUES ($1, $2, $3, 'Seat', $3, 'verified', $4, 'USD')
RETURNING id::text`, siteID, sku, courseID, priceCents).Scan(&id)
	if err != nil {
		t.Fatalf("insert product: %v", err)
	}
	return id
}

package order

import (
	"context"
	"errors"
	"io"
	"log"

	"learnstore/internal/domain"
	"learnstore/internal/transaction"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	scope  *transaction.PostgresScope
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, scope: transaction.NewPostgresScope(pool), logger: logger}
}

const orderColumns = `number, COALESCE(basket_id::text, ''), site_id::text, username, email, currency,
total_excl_tax_cents, total_incl_tax_cents, discount_cents, COALESCE(voucher_code, ''), status, created_at`

func (r *postgresRepo) Create(ctx context.Context, o domain.Order) (*domain.Order, error) {
	out := o
	err := r.scope.Execute(ctx, func(ctx context.Context) error {
		conn := transaction.Conn(ctx, r.pool)
		err := conn.QueryRow(ctx, `
INSERT INTO orders (number, basket_id, site_id, username, email, currency,
    total_excl_tax_cents, total_incl_tax_cents, discount_cents, voucher_code, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11)
RETURNING created_at
`, o.Number, o.BasketID, o.SiteID, o.User.Username, o.User.Email, o.Currency,
			o.TotalExclTaxCents, o.TotalInclTaxCents, o.DiscountCents, o.VoucherCode, o.Status,
		).Scan(&out.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return domain.ErrAlreadyPlaced
			}
			return err
		}
		for _, l := range o.Lines {
			if _, err := conn.Exec(ctx, `
INSERT INTO order_lines (order_number, product_id, partner_sku, title, product_class, course_id, seat_type,
    credit_provider, credit_hours, quantity, line_price_excl_tax_cents)
VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11)
`, o.Number, l.ProductID, l.PartnerSKU, l.Title, l.ProductClass, l.CourseID, l.SeatType,
				l.CreditProvider, l.CreditHours, l.Quantity, l.LinePriceExclTaxCents); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyPlaced) {
			r.logger.Printf("order repo: create number=%s basket_id=%s already placed", o.Number, o.BasketID)
		} else {
			r.logger.Printf("order repo: create number=%s basket_id=%s error=%v", o.Number, o.BasketID, err)
		}
		return nil, err
	}
	r.logger.Printf("order repo: created number=%s basket_id=%s lines=%d", o.Number, o.BasketID, len(o.Lines))
	return &out, nil
}

func (r *postgresRepo) GetByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return r.fetch(ctx, `SELECT `+orderColumns+` FROM orders WHERE number = $1`, number)
}

func (r *postgresRepo) GetByBasketID(ctx context.Context, basketID string) (*domain.Order, error) {
	return r.fetch(ctx, `SELECT `+orderColumns+` FROM orders WHERE basket_id = $1`, basketID)
}

func (r *postgresRepo) PurchasedSKUs(ctx context.Context, siteID, username string, skus []string) ([]string, error) {
	if len(skus) == 0 {
		return nil, nil
	}
	rows, err := transaction.Conn(ctx, r.pool).Query(ctx, `
SELECT DISTINCT l.partner_sku
FROM order_lines l
JOIN orders o ON o.number = l.order_number
WHERE o.site_id = $1 AND o.username = $2 AND l.partner_sku = ANY($3)
ORDER BY l.partner_sku
`, siteID, username, skus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var sku string
		if err := rows.Scan(&sku); err != nil {
			return nil, err
		}
		out = append(out, sku)
	}
	return out, rows.Err()
}

func (r *postgresRepo) fetch(ctx context.Context, q string, arg string) (*domain.Order, error) {
	conn := transaction.Conn(ctx, r.pool)
	var o domain.Order
	err := conn.QueryRow(ctx, q, arg).Scan(
		&o.Number, &o.BasketID, &o.SiteID, &o.User.Username, &o.User.Email, &o.Currency,
		&o.TotalExclTaxCents, &o.TotalInclTaxCents, &o.DiscountCents, &o.VoucherCode, &o.Status, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	rows, err := conn.Query(ctx, `
SELECT COALESCE(product_id::text, ''), partner_sku, title, product_class, COALESCE(course_id, ''), COALESCE(seat_type, ''),
       COALESCE(credit_provider, ''), credit_hours, quantity, line_price_excl_tax_cents
FROM order_lines
WHERE order_number = $1
ORDER BY id
`, o.Number)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ProductID, &l.PartnerSKU, &l.Title, &l.ProductClass, &l.CourseID, &l.SeatType,
			&l.CreditProvider, &l.CreditHours, &l.Quantity, &l.LinePriceExclTaxCents); err != nil {
			return nil, err
		}
		o.Lines = append(o.Lines, l)
	}
	return &o, rows.Err()
}

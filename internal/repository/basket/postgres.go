package basket

import (
	"context"
	"errors"
	"io"
	"log"

	"learnstore/internal/domain"
	"learnstore/internal/transaction"

	"github.com/jackc/pgx/v5"
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

const basketColumns = `id::text, site_id::text, owner, owner_email, currency, status, created_at`

func (r *postgresRepo) Create(ctx context.Context, in CreateBasketInput) (*domain.Basket, error) {
	q := `
INSERT INTO baskets (site_id, owner, owner_email, currency, status)
VALUES ($1, $2, $3, $4, 'Open')
RETURNING ` + basketColumns
	var b domain.Basket
	if err := scanBasket(transaction.Conn(ctx, r.pool).QueryRow(ctx, q, in.SiteID, in.Owner, in.OwnerEmail, in.Currency), &b); err != nil {
		r.logger.Printf("basket repo: create site_id=%s owner=%s error=%v", in.SiteID, in.Owner, err)
		return nil, err
	}
	r.logger.Printf("basket repo: created id=%s site_id=%s owner=%s", b.ID, b.SiteID, b.Owner)
	return &b, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, siteID, id string) (*domain.Basket, error) {
	q := `SELECT ` + basketColumns + ` FROM baskets WHERE site_id = $1 AND id = $2`
	return r.fetchBasket(ctx, q, siteID, id)
}

func (r *postgresRepo) GetOpenByOwner(ctx context.Context, siteID, owner string) (*domain.Basket, error) {
	q := `
SELECT ` + basketColumns + `
FROM baskets
WHERE site_id = $1 AND owner = $2 AND status = 'Open'
ORDER BY created_at DESC
LIMIT 1
`
	return r.fetchBasket(ctx, q, siteID, owner)
}

func (r *postgresRepo) AddLine(ctx context.Context, basketID string, product domain.Product, quantity int) error {
	return r.scope.Execute(ctx, func(ctx context.Context) error {
		conn := transaction.Conn(ctx, r.pool)
		if err := lockOpen(ctx, conn, basketID); err != nil {
			return err
		}

		var lineID string
		err := conn.QueryRow(ctx, `
SELECT id::text FROM basket_lines WHERE basket_id = $1 AND product_id = $2
`, basketID, product.ID).Scan(&lineID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		if err == nil {
			_, err = conn.Exec(ctx, `UPDATE basket_lines SET quantity = quantity + $1 WHERE id = $2`, quantity, lineID)
		} else {
			_, err = conn.Exec(ctx, `
INSERT INTO basket_lines (basket_id, product_id, quantity, unit_price_cents)
VALUES ($1, $2, $3, $4)
`, basketID, product.ID, quantity, product.PriceCents)
		}
		if err != nil {
			return err
		}
		return touch(ctx, conn, basketID)
	})
}

func (r *postgresRepo) ChangeLineQuantity(ctx context.Context, basketID, lineID string, quantity int) error {
	return r.scope.Execute(ctx, func(ctx context.Context) error {
		conn := transaction.Conn(ctx, r.pool)
		if err := lockOpen(ctx, conn, basketID); err != nil {
			return err
		}

		var (
			q    = `UPDATE basket_lines SET quantity = $3 WHERE id = $1 AND basket_id = $2`
			args = []any{lineID, basketID, quantity}
		)
		if quantity <= 0 {
			q = `DELETE FROM basket_lines WHERE id = $1 AND basket_id = $2`
			args = args[:2]
		}
		cmd, err := conn.Exec(ctx, q, args...)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return touch(ctx, conn, basketID)
	})
}

func (r *postgresRepo) ReplaceDiscounts(ctx context.Context, basketID string, discounts []domain.Discount) error {
	return r.scope.Execute(ctx, func(ctx context.Context) error {
		conn := transaction.Conn(ctx, r.pool)
		if _, err := conn.Exec(ctx, `DELETE FROM basket_discounts WHERE basket_id = $1`, basketID); err != nil {
			return err
		}
		for _, d := range discounts {
			if _, err := conn.Exec(ctx, `
INSERT INTO basket_discounts (basket_id, offer_id, offer_name, voucher_code, amount_cents)
VALUES ($1, $2, $3, NULLIF($4, ''), $5)
`, basketID, d.OfferID, d.OfferName, d.VoucherCode, d.AmountCents); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *postgresRepo) Transition(ctx context.Context, basketID, from, to string) error {
	cmd, err := transaction.Conn(ctx, r.pool).Exec(ctx, `
UPDATE baskets SET status = $3, updated_at = now()
WHERE id = $1 AND status = $2
`, basketID, from, to)
	if err != nil {
		r.logger.Printf("basket repo: transition id=%s %s->%s error=%v", basketID, from, to, err)
		return err
	}
	if cmd.RowsAffected() == 0 {
		r.logger.Printf("basket repo: transition id=%s %s->%s rejected", basketID, from, to)
		return domain.ErrBasketFrozen
	}
	r.logger.Printf("basket repo: transition id=%s %s->%s", basketID, from, to)
	return nil
}

func (r *postgresRepo) fetchBasket(ctx context.Context, basketQuery string, args ...any) (*domain.Basket, error) {
	conn := transaction.Conn(ctx, r.pool)

	var b domain.Basket
	if err := scanBasket(conn.QueryRow(ctx, basketQuery, args...), &b); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	const linesQuery = `
SELECT l.id::text, l.basket_id::text, l.quantity, l.unit_price_cents, l.created_at,
       p.id::text, p.site_id::text, p.sku, p.title, p.product_class, COALESCE(p.course_id, ''), COALESCE(p.seat_type, ''),
       p.price_cents, p.currency, p.is_discountable, p.is_available, COALESCE(p.credit_provider, ''), p.credit_hours,
       p.attributes, p.created_at
FROM basket_lines l
JOIN products p ON p.id = l.product_id
WHERE l.basket_id = $1
ORDER BY l.created_at ASC, l.id ASC
`
	rows, err := conn.Query(ctx, linesQuery, b.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.Line
		p := &line.Product
		if err := rows.Scan(
			&line.ID, &line.BasketID, &line.Quantity, &line.UnitPriceCents, &line.CreatedAt,
			&p.ID, &p.SiteID, &p.SKU, &p.Title, &p.ProductClass, &p.CourseID, &p.SeatType,
			&p.PriceCents, &p.Currency, &p.IsDiscountable, &p.IsAvailable, &p.CreditProvider, &p.CreditHours,
			&p.Attributes, &p.CreatedAt,
		); err != nil {
			return nil, err
		}
		b.Lines = append(b.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	dRows, err := conn.Query(ctx, `
SELECT offer_id, offer_name, COALESCE(voucher_code, ''), amount_cents
FROM basket_discounts
WHERE basket_id = $1
ORDER BY offer_id
`, b.ID)
	if err != nil {
		return nil, err
	}
	defer dRows.Close()
	for dRows.Next() {
		var d domain.Discount
		if err := dRows.Scan(&d.OfferID, &d.OfferName, &d.VoucherCode, &d.AmountCents); err != nil {
			return nil, err
		}
		b.Discounts = append(b.Discounts, d)
	}
	if err := dRows.Err(); err != nil {
		return nil, err
	}

	return &b, nil
}

func scanBasket(row pgx.Row, b *domain.Basket) error {
	return row.Scan(&b.ID, &b.SiteID, &b.Owner, &b.OwnerEmail, &b.Currency, &b.Status, &b.CreatedAt)
}

// lockOpen takes a row lock on the basket and rejects anything but Open.
func lockOpen(ctx context.Context, conn transaction.Querier, basketID string) error {
	var status string
	err := conn.QueryRow(ctx, `SELECT status FROM baskets WHERE id = $1 FOR UPDATE`, basketID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	if status != domain.BasketOpen {
		return domain.ErrBasketFrozen
	}
	return nil
}

func touch(ctx context.Context, conn transaction.Querier, basketID string) error {
	_, err := conn.Exec(ctx, `UPDATE baskets SET updated_at = now() WHERE id = $1`, basketID)
	return err
}

package paymentresponse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

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

// Record always writes through the pool, never through a transaction carried
// by ctx, so the row outlives a rolled back payment attempt.
func (r *postgresRepo) Record(ctx context.Context, resp domain.PaymentProcessorResponse) (*domain.PaymentProcessorResponse, error) {
	payload := resp.Response
	if len(payload) == 0 || !json.Valid(payload) {
		wrapped, err := json.Marshal(map[string]string{"raw": string(payload)})
		if err != nil {
			return nil, err
		}
		payload = wrapped
	}
	out := resp
	out.Response = payload
	err := r.pool.QueryRow(ctx, `
INSERT INTO payment_processor_responses (processor_name, transaction_id, basket_id, response)
VALUES ($1, NULLIF($2, ''), $3, $4)
RETURNING id, created_at
`, resp.ProcessorName, resp.TransactionID, resp.BasketID, []byte(payload)).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		r.logger.Printf("payment response repo: record processor=%s transaction_id=%s error=%v", resp.ProcessorName, resp.TransactionID, err)
		return nil, err
	}
	return &out, nil
}

func (r *postgresRepo) List(ctx context.Context, filter Filter) ([]domain.PaymentProcessorResponse, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.ProcessorName != "" {
		add("processor_name = $%d", filter.ProcessorName)
	}
	if filter.TransactionID != "" {
		add("transaction_id = $%d", filter.TransactionID)
	}
	if filter.BasketID != "" {
		add("basket_id = $%d", filter.BasketID)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	q := `SELECT id, processor_name, COALESCE(transaction_id, ''), basket_id::text, response, created_at
FROM payment_processor_responses`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += fmt.Sprintf(" ORDER BY created_at ASC, id ASC LIMIT %d", limit)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PaymentProcessorResponse
	for rows.Next() {
		var (
			resp domain.PaymentProcessorResponse
			raw  []byte
		)
		if err := rows.Scan(&resp.ID, &resp.ProcessorName, &resp.TransactionID, &resp.BasketID, &raw, &resp.CreatedAt); err != nil {
			return nil, err
		}
		resp.Response = raw
		out = append(out, resp)
	}
	return out, rows.Err()
}

package sdn

import (
	"context"
	"io"
	"log"
	"time"

	"learnstore/internal/domain"
	"learnstore/internal/transaction"

	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	scope  transaction.Scope
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, scope: transaction.NewPostgresScope(pool), logger: logger}
}

func (r *postgresRepo) RecordDownload(ctx context.Context, checksum string, downloadedAt time.Time) (*domain.SDNFallbackMetadata, error) {
	out := domain.SDNFallbackMetadata{FileChecksum: checksum, DownloadTimestamp: downloadedAt, ImportState: domain.SDNImportNew}
	err := r.scope.Execute(ctx, func(ctx context.Context) error {
		conn := transaction.Conn(ctx, r.pool)
		if _, err := conn.Exec(ctx, `DELETE FROM sdn_fallback_metadata WHERE import_state = 'New'`); err != nil {
			return err
		}
		return conn.QueryRow(ctx, `
INSERT INTO sdn_fallback_metadata (file_checksum, download_timestamp, import_state)
VALUES ($1, $2, 'New')
RETURNING id
`, checksum, downloadedAt).Scan(&out.ID)
	})
	if err != nil {
		r.logger.Printf("sdn repo: record download checksum=%s error=%v", checksum, err)
		return nil, err
	}
	return &out, nil
}

func (r *postgresRepo) SwapAllStates(ctx context.Context) error {
	err := r.scope.Execute(ctx, func(ctx context.Context) error {
		conn := transaction.Conn(ctx, r.pool)
		steps := []string{
			`DELETE FROM sdn_fallback_metadata WHERE import_state = 'Discard'`,
			`UPDATE sdn_fallback_metadata SET import_state = 'Discard' WHERE import_state = 'Current'`,
			`UPDATE sdn_fallback_metadata SET import_state = 'Current', import_timestamp = now() WHERE import_state = 'New'`,
		}
		for _, q := range steps {
			if _, err := conn.Exec(ctx, q); err != nil {
				return err
			}
		}

		var total, current int
		if err := conn.QueryRow(ctx, `
SELECT count(*), count(*) FILTER (WHERE import_state = 'Current') FROM sdn_fallback_metadata
`).Scan(&total, &current); err != nil {
			return err
		}
		if total > 1 && current == 0 {
			return domain.ErrNoCurrentSDNImport
		}
		return nil
	})
	if err != nil {
		r.logger.Printf("sdn repo: swap states error=%v", err)
		return err
	}
	r.logger.Printf("sdn repo: swapped states")
	return nil
}

func (r *postgresRepo) List(ctx context.Context) ([]domain.SDNFallbackMetadata, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, file_checksum, download_timestamp, import_timestamp, import_state
FROM sdn_fallback_metadata
ORDER BY download_timestamp DESC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.SDNFallbackMetadata
	for rows.Next() {
		var m domain.SDNFallbackMetadata
		if err := rows.Scan(&m.ID, &m.FileChecksum, &m.DownloadTimestamp, &m.ImportTimestamp, &m.ImportState); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

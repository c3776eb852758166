// Package testdb provides a migrated Postgres pool for repository tests.
package testdb

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"learnstore/internal/migrate"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error

	errNoDocker = errors.New("container provider unavailable")
)

// Pool returns a pool on a freshly truncated schema. TEST_DB_DSN wins over a
// throwaway container; the test is skipped when neither is available.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres test in short mode")
	}
	ctx := context.Background()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		dsn = startContainer(t)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	Reset(t, pool)
	return pool
}

// Reset truncates every application table.
func Reset(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	const q = `TRUNCATE sdn_fallback_metadata, payment_sources, payment_transactions, payment_processor_responses,
order_lines, orders, basket_discounts, basket_lines, baskets, program_offers, products, sites RESTART IDENTITY CASCADE`
	if _, err := pool.Exec(context.Background(), q); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func startContainer(t *testing.T) string {
	t.Helper()
	containerOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				containerErr = errNoDocker
			}
		}()
		ctx := context.Background()
		c, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("learnstore_test"),
			postgres.WithUsername("learnstore"),
			postgres.WithPassword("learnstore"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		if err != nil {
			containerErr = err
			return
		}
		containerDSN, containerErr = c.ConnectionString(ctx, "sslmode=disable")
	})
	if containerErr != nil {
		t.Skipf("postgres unavailable (set TEST_DB_DSN or start docker): %v", containerErr)
	}
	return containerDSN
}

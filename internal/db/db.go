package db

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Options tunes the pool. Zero values keep pgx defaults.
type Options struct {
	MaxConns  int32
	SlowQuery time.Duration
	Logger    *log.Logger
}

// Connect opens a pgx connection pool and verifies connectivity with a ping.
func Connect(ctx context.Context, dsn string, opts Options) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.SlowQuery > 0 {
		logger := opts.Logger
		if logger == nil {
			logger = log.New(io.Discard, "", 0)
		}
		cfg.ConnConfig.Tracer = &queryLogger{logger: logger, threshold: opts.SlowQuery}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

type queryStartKey struct{}

type queryStart struct {
	sql   string
	start time.Time
}

// queryLogger logs failed queries and queries slower than threshold.
type queryLogger struct {
	logger    *log.Logger
	threshold time.Duration
}

func (q *queryLogger) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{sql: data.SQL, start: time.Now()})
}

func (q *queryLogger) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	st, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	elapsed := time.Since(st.start)
	switch {
	case data.Err != nil && data.Err != pgx.ErrNoRows:
		q.logger.Printf("db: query failed elapsed=%s error=%v sql=%q", elapsed, data.Err, compact(st.sql))
	case elapsed >= q.threshold:
		q.logger.Printf("db: slow query elapsed=%s sql=%q", elapsed, compact(st.sql))
	}
}

func compact(sql string) string {
	const max = 120
	out := make([]byte, 0, len(sql))
	space := false
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		if c == '\n' || c == '\t' || c == ' ' {
			if !space && len(out) > 0 {
				out = append(out, ' ')
			}
			space = true
			continue
		}
		space = false
		out = append(out, c)
	}
	if len(out) > max {
		return string(out[:max]) + "..."
	}
	return string(out)
}

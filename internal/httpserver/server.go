package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Checkout waits on payment processors, so writes get far more room than
// header reads.
const (
	readHeaderTimeout = 5 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 2 * time.Minute
	readyPingTimeout  = time.Second
)

// Server serves the storefront API for every site.
type Server struct {
	httpServer *http.Server
	logger     *log.Logger
}

func New(addr string, logger *log.Logger, db *pgxpool.Pool, deps Deps) (*Server, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	router, err := buildRouter(logger, db, deps)
	if err != nil {
		return nil, fmt.Errorf("httpserver: build router: %w", err)
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
			ErrorLog:          logger,
		},
		logger: logger,
	}, nil
}

// ListenAndServe blocks until the server stops. A graceful Shutdown surfaces
// as http.ErrServerClosed.
func (s *Server) ListenAndServe() error {
	s.logger.Printf("httpserver: listening addr=%s", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("httpserver: listen addr=%s: %w", s.httpServer.Addr, err)
	}
	return err
}

// Shutdown drains in-flight requests, including checkouts waiting on a
// processor, until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Printf("httpserver: draining connections")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("httpserver: shutdown: %w", err)
	}
	return nil
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// readyHandler reports ready only while Postgres answers a ping; baskets and
// orders cannot be served without it.
func readyHandler(db *pgxpool.Pool, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "db not configured"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyPingTimeout)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			logger.Printf("httpserver: readiness ping failed error=%v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "db not reachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

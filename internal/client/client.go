// Package client is the outbound HTTP plumbing shared by the catalog,
// enrollment and credit API clients. Every request carries a timeout and goes
// through a per-service circuit breaker.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"learnstore/internal/domain"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultTimeout = 5 * time.Second

// ErrUnavailable wraps every connectivity failure: transport errors, timeouts,
// 5xx answers and an open breaker.
var ErrUnavailable = errors.New("service unavailable")

// StatusError is returned for unexpected HTTP statuses.
type StatusError struct {
	Service string
	Code    int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Service, e.Code)
}

type Options struct {
	Timeout time.Duration
	// ConsecutiveFailures trips the breaker; defaults to 5.
	ConsecutiveFailures uint32
	// OpenFor is how long the breaker stays open; defaults to 30s.
	OpenFor   time.Duration
	Transport http.RoundTripper
}

// Client performs JSON GET requests against one external service.
type Client struct {
	name    string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func New(name string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	failures := opts.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	openFor := opts.OpenFor
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	return &Client{
		name: name,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(base),
		},
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:    name,
			Timeout: openFor,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || !errors.Is(err, ErrUnavailable)
			},
		}),
	}
}

// Name identifies the service in logs and errors.
func (c *Client) Name() string {
	return c.name
}

// GetJSON fetches url and decodes the body into out. A 404 yields
// domain.ErrNotFound and does not count against the breaker.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.get(ctx, url)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%s: %w: %v", c.name, ErrUnavailable, err)
		}
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.name, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", c.name, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: read body: %v", c.name, ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", c.name, domain.ErrNotFound)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, &StatusError{Service: c.name, Code: resp.StatusCode})
	case resp.StatusCode >= 300:
		return nil, &StatusError{Service: c.name, Code: resp.StatusCode}
	}
	return body, nil
}

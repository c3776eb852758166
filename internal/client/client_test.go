package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"learnstore/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSON_Decodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"name":"demo"}`))
	}))
	defer srv.Close()

	c := New("test", Options{})
	var out struct{ Name string }
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, &out))
	assert.Equal(t, "demo", out.Name)
}

func TestGetJSON_NotFoundDoesNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New("test", Options{ConsecutiveFailures: 1})
	var out map[string]any
	for i := 0; i < 3; i++ {
		err := c.GetJSON(context.Background(), srv.URL, &out)
		require.ErrorIs(t, err, domain.ErrNotFound)
		assert.False(t, errors.Is(err, ErrUnavailable))
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetJSON_ServerErrorsOpenBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New("test", Options{ConsecutiveFailures: 2, OpenFor: time.Minute})
	var out map[string]any
	for i := 0; i < 4; i++ {
		err := c.GetJSON(context.Background(), srv.URL, &out)
		require.ErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, int32(2), calls.Load(), "breaker should short-circuit after two failures")
}

func TestGetJSON_TimeoutIsUnavailable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New("test", Options{Timeout: 50 * time.Millisecond})
	var out map[string]any
	err := c.GetJSON(context.Background(), srv.URL, &out)
	require.ErrorIs(t, err, ErrUnavailable)
}

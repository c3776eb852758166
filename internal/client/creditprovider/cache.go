package creditprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"learnstore/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cached serves providers from Redis and falls back to the wrapped source.
// Cache errors are logged and never fail a lookup.
type Cached struct {
	source Source
	redis  *redis.Client
	ttl    time.Duration
	sfg    singleflight.Group
	logger *log.Logger
}

func NewCached(source Source, rdb *redis.Client, ttl time.Duration, logger *log.Logger) *Cached {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cached{source: source, redis: rdb, ttl: ttl, logger: logger}
}

func (c *Cached) GetProvider(ctx context.Context, site domain.Site, providerID string) (*Provider, error) {
	key := cacheKey(site.Key, providerID)
	v, err, _ := c.sfg.Do(key, func() (any, error) {
		if p, err := c.get(ctx, key); err == nil {
			return p, nil
		} else if !errors.Is(err, redis.Nil) {
			c.logger.Printf("credit provider cache: get key=%s error=%v", key, err)
		}

		p, err := c.source.GetProvider(ctx, site, providerID)
		if err != nil {
			return nil, err
		}
		if err := c.set(ctx, key, p); err != nil {
			c.logger.Printf("credit provider cache: set key=%s error=%v", key, err)
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	p := *v.(*Provider)
	return &p, nil
}

func (c *Cached) get(ctx context.Context, key string) (*Provider, error) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var p Provider
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal provider: %w", err)
	}
	return &p, nil
}

func (c *Cached) set(ctx context.Context, key string, p *Provider) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, key, data, c.ttl).Err()
}

func cacheKey(siteKey, providerID string) string {
	return fmt.Sprintf("credit_provider:%s:%s", siteKey, providerID)
}

var _ Source = (*Cached)(nil)

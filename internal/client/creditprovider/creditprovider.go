// Package creditprovider reads credit provider display details, optionally
// through a Redis cache.
package creditprovider

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"learnstore/internal/client"
	"learnstore/internal/domain"
)

// Provider is the display metadata of an institution granting course credit.
type Provider struct {
	ID                      string `json:"id"`
	DisplayName             string `json:"display_name"`
	URL                     string `json:"url,omitempty"`
	FulfillmentInstructions string `json:"fulfillment_instructions,omitempty"`
}

// Source looks up a provider.
type Source interface {
	GetProvider(ctx context.Context, site domain.Site, providerID string) (*Provider, error)
}

type Client struct {
	http *client.Client
}

func New(c *client.Client) *Client {
	return &Client{http: c}
}

func (c *Client) GetProvider(ctx context.Context, site domain.Site, providerID string) (*Provider, error) {
	if strings.TrimSpace(site.CreditAPIURL) == "" {
		return nil, fmt.Errorf("credit provider: site %s has no credit api url", site.Key)
	}
	endpoint := strings.TrimRight(site.CreditAPIURL, "/") + "/providers/" + url.PathEscape(providerID) + "/"
	var p Provider
	if err := c.http.GetJSON(ctx, endpoint, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = providerID
	}
	return &p, nil
}

var _ Source = (*Client)(nil)

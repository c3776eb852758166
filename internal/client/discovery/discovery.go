// Package discovery reads program definitions from the catalog service.
package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"learnstore/internal/client"
	"learnstore/internal/domain"
)

type Client struct {
	http *client.Client
}

func New(c *client.Client) *Client {
	return &Client{http: c}
}

// GetProgram fetches one program from the site's discovery API.
func (c *Client) GetProgram(ctx context.Context, site domain.Site, programUUID string) (*domain.Program, error) {
	if strings.TrimSpace(site.DiscoveryAPIURL) == "" {
		return nil, fmt.Errorf("discovery: site %s has no discovery api url", site.Key)
	}
	endpoint := strings.TrimRight(site.DiscoveryAPIURL, "/") + "/programs/" + url.PathEscape(programUUID) + "/"
	var p domain.Program
	if err := c.http.GetJSON(ctx, endpoint, &p); err != nil {
		return nil, err
	}
	if p.UUID == "" {
		p.UUID = programUUID
	}
	return &p, nil
}

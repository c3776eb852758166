// Package enrollment reads a learner's course enrollments.
package enrollment

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

// GetEnrollments returns every enrollment of username. Results are never cached.
func (c *Client) GetEnrollments(ctx context.Context, site domain.Site, username string) ([]domain.Enrollment, error) {
	if strings.TrimSpace(site.EnrollmentAPIURL) == "" {
		return nil, fmt.Errorf("enrollment: site %s has no enrollment api url", site.Key)
	}
	endpoint := strings.TrimRight(site.EnrollmentAPIURL, "/") + "/enrollment?user=" + url.QueryEscape(username)
	var out []domain.Enrollment
	if err := c.http.GetJSON(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return out, nil
}

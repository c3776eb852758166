package domain

import "time"

// Site is a tenant storefront. External service locations are configured per site.
type Site struct {
	ID               string    `json:"id"`
	Key              string    `json:"key"`
	Domain           string    `json:"domain"`
	Name             string    `json:"name"`
	PartnerCode      string    `json:"partnerCode"`
	LMSURL           string    `json:"lmsUrl"`
	DiscoveryAPIURL  string    `json:"discoveryApiUrl"`
	EnrollmentAPIURL string    `json:"enrollmentApiUrl"`
	CreditAPIURL     string    `json:"creditApiUrl"`
	CreatedAt        time.Time `json:"createdAt"`
}

// User identifies the authenticated buyer; authentication happens upstream.
type User struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

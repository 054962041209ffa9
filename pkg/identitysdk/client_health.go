package identitysdk

import (
	"context"
	"net/http"
)

// GetLiveness reports whether the backend process is up.
func (c *Client) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.do(ctx, http.MethodGet, "/livez", "", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// GetReadiness reports whether the backend can serve requests. A degraded
// backend answers 503, which comes back as an *APIError.
func (c *Client) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.do(ctx, http.MethodGet, "/readyz", "", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

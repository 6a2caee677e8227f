package usersdk

import (
	"context"
	"net/http"
)

// GetLiveness checks if the service is alive.
func (c *Client) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// GetReadiness checks if the service is ready. A degraded service answers
// 503, which is returned as an *APIError.
func (c *Client) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *Client) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}
	return &health, nil
}

// GetJWKS retrieves the key set that verifies identity tokens.
func (c *Client) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodGet, "/.well-known/jwks.json", nil, "")
	if err != nil {
		return nil, err
	}

	var jwks JWKSResponse
	if err := decodeJSON(resp, &jwks, http.StatusOK); err != nil {
		return nil, err
	}
	return &jwks, nil
}

// GetPublicKey retrieves the PEM encoded verification key.
func (c *Client) GetPublicKey(ctx context.Context) (*PublicKeyResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodGet, "/v1/keys/public", nil, "")
	if err != nil {
		return nil, err
	}

	var key PublicKeyResponse
	if err := decodeJSON(resp, &key, http.StatusOK); err != nil {
		return nil, err
	}
	return &key, nil
}

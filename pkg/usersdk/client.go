package usersdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the account service without credentials and creates
// Sessions.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewSession wraps an identity token obtained earlier.
func (c *Client) NewSession(token string) *Session {
	return &Session{client: c, token: token}
}

// Register creates an account. The service emails a confirmation link.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*UserResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/users", req, "")
	if err != nil {
		return nil, err
	}

	var out UserResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login authenticates with an email address or username.
func (c *Client) Login(ctx context.Context, login, password string) (*Session, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/users/login", LoginRequest{Login: login, Password: password}, "")
	if err != nil {
		return nil, err
	}

	var out AuthResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &Session{client: c, token: out.Token, user: out.User}, nil
}

// ConfirmEmail redeems the token of a confirmation link.
func (c *Client) ConfirmEmail(ctx context.Context, token string) (*Envelope, error) {
	path := "/v1/users/email/confirmation?token=" + url.QueryEscape(token)
	resp, err := c.doJSON(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}

	var out Envelope
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestPasswordRecovery asks for a recovery link. The response is the same
// whether or not the address is registered.
func (c *Client) RequestPasswordRecovery(ctx context.Context, email string) (*Envelope, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/users/password/recovery", RecoveryRequest{Email: email}, "")
	if err != nil {
		return nil, err
	}

	var out Envelope
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetPassword redeems a recovery token.
func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) (*Envelope, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/users/password/reset", req, "")
	if err != nil {
		return nil, err
	}

	var out Envelope
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckAvailability reports whether email and username are both free. The
// route only exists when the service enables it.
func (c *Client) CheckAvailability(ctx context.Context, email, username string) (bool, error) {
	q := url.Values{}
	if email != "" {
		q.Set("email", email)
	}
	if username != "" {
		q.Set("username", username)
	}

	resp, err := c.doJSON(ctx, http.MethodGet, "/v1/users/available?"+q.Encode(), nil, "")
	if err != nil {
		return false, err
	}

	var out AvailabilityResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return false, err
	}
	return out.Available, nil
}

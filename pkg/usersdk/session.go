package usersdk

import (
	"context"
	"net/http"
	"sync"
)

// Session is a logged-in account. It is safe for concurrent use.
type Session struct {
	client *Client

	mu    sync.RWMutex
	token string
	user  User
}

// Token returns the current identity token.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns the account as of the last login or profile update.
func (s *Session) User() User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Me fetches the current state of the account.
func (s *Session) Me(ctx context.Context) (*User, error) {
	resp, err := s.client.doJSON(ctx, http.MethodGet, "/v1/users/me", nil, s.Token())
	if err != nil {
		return nil, err
	}

	var out UserResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.user = out.User
	s.mu.Unlock()
	return &out.User, nil
}

// UpdateProfile changes account settings. On success the session switches to
// the token returned by the service.
func (s *Session) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*AuthResponse, error) {
	resp, err := s.client.doJSON(ctx, http.MethodPatch, "/v1/users/me", req, s.Token())
	if err != nil {
		return nil, err
	}

	var out AuthResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.token = out.Token
	s.user = out.User
	s.mu.Unlock()
	return &out, nil
}

// ResendVerification emails the confirmation link again.
func (s *Session) ResendVerification(ctx context.Context) (*Envelope, error) {
	resp, err := s.client.doJSON(ctx, http.MethodPost, "/v1/users/email/confirmation/resend", nil, s.Token())
	if err != nil {
		return nil, err
	}

	var out Envelope
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAccount removes the account. The session is useless afterwards.
func (s *Session) DeleteAccount(ctx context.Context, password string) (*Envelope, error) {
	resp, err := s.client.doJSON(ctx, http.MethodDelete, "/v1/users/me", DeleteAccountRequest{Password: password}, s.Token())
	if err != nil {
		return nil, err
	}

	var out Envelope
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

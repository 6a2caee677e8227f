package usersdk

import (
	"encoding/json"
	"maps"

	"github.com/aussiebroadwan/userspace/pkg/jwtx"
)

// ============================================================================
// Notifications
// ============================================================================

// Notification types.
const (
	NotificationSuccess = "success"
	NotificationInfo    = "info"
	NotificationError   = "error"
)

// Notification is a user-facing message.
type Notification struct {
	Type    string `json:"type" example:"success"`
	Message string `json:"message" example:"Your password has been updated."`
}

// Envelope is the body of responses that carry nothing but notifications,
// including every error response.
type Envelope struct {
	// Code is the error kind; empty on success.
	Code          string         `json:"code,omitempty" example:"wrong_password"`
	Notifications []Notification `json:"notifications"`
}

// ============================================================================
// Accounts
// ============================================================================

// User is the public view of an account.
type User struct {
	ID       string `json:"id" example:"01J0Y7ZK8W3N4Q6R8T0V2X4Z6B"`
	Email    string `json:"email" example:"ada@example.com"`
	Username string `json:"username,omitempty" example:"ada"`
	Verified bool   `json:"verified" example:"true"`

	// Extras holds the caller-defined profile fields. They are flattened into
	// the same JSON object.
	Extras map[string]any `json:"-" swaggerignore:"true"`
}

type userCore struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	Verified bool   `json:"verified"`
}

var coreFields = []string{"id", "email", "username", "verified"}

func (u User) MarshalJSON() ([]byte, error) {
	return flatten(userCore{ID: u.ID, Email: u.Email, Username: u.Username, Verified: u.Verified}, u.Extras)
}

func (u *User) UnmarshalJSON(data []byte) error {
	var core userCore
	if err := json.Unmarshal(data, &core); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range coreFields {
		delete(all, k)
	}
	if len(all) == 0 {
		all = nil
	}

	*u = User{ID: core.ID, Email: core.Email, Username: core.Username, Verified: core.Verified, Extras: all}
	return nil
}

// RegisterRequest is the body of POST /v1/users.
type RegisterRequest struct {
	Email           string         `json:"email" example:"ada@example.com"`
	Username        string         `json:"username,omitempty" example:"ada"`
	Password        string         `json:"password" example:"correct horse"`
	ConfirmPassword string         `json:"confirm_password" example:"correct horse"`
	Extras          map[string]any `json:"-" swaggerignore:"true"`
}

type registerCore struct {
	Email           string `json:"email"`
	Username        string `json:"username,omitempty"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (r RegisterRequest) MarshalJSON() ([]byte, error) {
	return flatten(registerCore{
		Email:           r.Email,
		Username:        r.Username,
		Password:        r.Password,
		ConfirmPassword: r.ConfirmPassword,
	}, r.Extras)
}

// LoginRequest is the body of POST /v1/users/login. Login is an email
// address or a username.
type LoginRequest struct {
	Login    string `json:"login" example:"ada@example.com"`
	Password string `json:"password" example:"correct horse"`
}

// RecoveryRequest is the body of POST /v1/users/password/recovery.
type RecoveryRequest struct {
	Email string `json:"email" example:"ada@example.com"`
}

// ResetPasswordRequest is the body of POST /v1/users/password/reset.
type ResetPasswordRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password" example:"battery staple"`
	ConfirmPassword string `json:"confirm_password" example:"battery staple"`
}

// UpdateProfileRequest is the body of PATCH /v1/users/me. Empty fields are
// left unchanged; Extras are merged into the stored ones.
type UpdateProfileRequest struct {
	Email            string         `json:"email,omitempty"`
	Username         string         `json:"username,omitempty"`
	PreviousPassword string         `json:"previous_password,omitempty"`
	NewPassword      string         `json:"new_password,omitempty"`
	ConfirmPassword  string         `json:"confirm_password,omitempty"`
	Extras           map[string]any `json:"-" swaggerignore:"true"`
}

type updateCore struct {
	Email            string `json:"email,omitempty"`
	Username         string `json:"username,omitempty"`
	PreviousPassword string `json:"previous_password,omitempty"`
	NewPassword      string `json:"new_password,omitempty"`
	ConfirmPassword  string `json:"confirm_password,omitempty"`
}

func (r UpdateProfileRequest) MarshalJSON() ([]byte, error) {
	return flatten(updateCore{
		Email:            r.Email,
		Username:         r.Username,
		PreviousPassword: r.PreviousPassword,
		NewPassword:      r.NewPassword,
		ConfirmPassword:  r.ConfirmPassword,
	}, r.Extras)
}

// DeleteAccountRequest is the body of DELETE /v1/users/me.
type DeleteAccountRequest struct {
	Password string `json:"password"`
}

// UserResponse is returned by registration and GET /v1/users/me.
type UserResponse struct {
	Notifications []Notification `json:"notifications"`
	User          User           `json:"user"`
}

// AuthResponse is returned by login and profile updates.
type AuthResponse struct {
	Notifications []Notification `json:"notifications"`
	Token         string         `json:"token"`
	User          User           `json:"user"`
}

// AvailabilityResponse is returned by GET /v1/users/available.
type AvailabilityResponse struct {
	Available bool `json:"available"`
}

// ============================================================================
// Health and Keys
// ============================================================================

// HealthResponse is returned by /livez and /readyz (readyz adds Checks).
type HealthResponse struct {
	Status  string        `json:"status" example:"ok"`
	Uptime  string        `json:"uptime,omitempty" example:"1h23m45s"`
	Version string        `json:"version,omitempty" example:"0.1.0"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the status of the service dependencies.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}

// JWKSResponse contains the keys that verify identity tokens.
type JWKSResponse jwtx.JWKS

// PublicKeyResponse is returned by GET /v1/keys/public.
type PublicKeyResponse struct {
	Algorithm string `json:"alg" example:"EdDSA"`
	KeyID     string `json:"kid"`
	PEM       string `json:"pem"`
}

// flatten encodes core and overlays it on extras. Core fields win.
func flatten(core any, extras map[string]any) ([]byte, error) {
	raw, err := json.Marshal(core)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	out := make(map[string]any, len(extras)+len(fields))
	maps.Copy(out, extras)
	maps.Copy(out, fields)
	return json.Marshal(out)
}

package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// Account is the persisted user identity. X is the caller-declared profile
// extension type; it is stored and returned as is and never inspected.
type Account[X any] struct {
	ID       string
	Username string // empty when usernames are disabled
	Email    string

	// PasswordHash and PasswordSalt are always written together.
	PasswordHash string
	PasswordSalt string

	Verified          bool
	VerificationToken string

	// RecoveryToken and RecoveryRequestedAt are set and cleared together.
	RecoveryToken       string
	RecoveryRequestedAt *time.Time

	Extras X

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Public strips credentials and tokens from the account.
func (a Account[X]) Public() PublicAccount[X] {
	return PublicAccount[X]{
		ID:       a.ID,
		Email:    a.Email,
		Username: a.Username,
		Verified: a.Verified,
		Extras:   a.Extras,
	}
}

// RecoveryExpired reports whether the pending recovery token was issued at
// least window ago. An account without a pending request counts as expired.
func (a Account[X]) RecoveryExpired(now time.Time, window time.Duration) bool {
	if a.RecoveryRequestedAt == nil {
		return true
	}
	return now.Sub(*a.RecoveryRequestedAt) >= window
}

// PublicAccount is the part of an account that is safe to hand to the caller
// and to embed in identity tokens.
//
// In JSON the extras fields are flattened next to the core fields. Extras
// fields named like a core field are never emitted.
type PublicAccount[X any] struct {
	ID       string
	Email    string
	Username string
	Verified bool
	Extras   X
}

type publicCore struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	Verified bool   `json:"verified"`
}

var coreFieldNames = []string{"id", "email", "username", "verified"}

func (p PublicAccount[X]) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage)

	extras, err := json.Marshal(p.Extras)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(extras, []byte("null")) {
		if err := json.Unmarshal(extras, &fields); err != nil {
			return nil, fmt.Errorf("domain: extras must encode as a JSON object: %w", err)
		}
	}
	// Core names are reserved even when the core value is omitted.
	for _, name := range coreFieldNames {
		delete(fields, name)
	}

	core, err := json.Marshal(publicCore{ID: p.ID, Email: p.Email, Username: p.Username, Verified: p.Verified})
	if err != nil {
		return nil, err
	}
	coreFields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(core, &coreFields); err != nil {
		return nil, err
	}
	maps.Copy(fields, coreFields)

	return json.Marshal(fields)
}

func (p *PublicAccount[X]) UnmarshalJSON(data []byte) error {
	var core publicCore
	if err := json.Unmarshal(data, &core); err != nil {
		return err
	}
	var extras X
	if err := json.Unmarshal(data, &extras); err != nil {
		return fmt.Errorf("domain: decode extras: %w", err)
	}

	*p = PublicAccount[X]{
		ID:       core.ID,
		Email:    core.Email,
		Username: core.Username,
		Verified: core.Verified,
		Extras:   extras,
	}
	return nil
}

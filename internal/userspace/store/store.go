// Package store persists accounts. AccountStore holds the storage-independent
// logic (hashing, identifiers, timestamps) and delegates to a Driver for the
// actual reads and writes.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/userspace/internal/userspace/domain"
	"github.com/aussiebroadwan/userspace/pkg/cryptox"
	"github.com/aussiebroadwan/userspace/pkg/idx"
)

// Errors every driver reports with these exact values so callers can rely on
// errors.Is.
var (
	ErrNotFound          = domain.ErrAccountNotFound
	ErrDuplicateEmail    = domain.ErrDuplicateEmail
	ErrDuplicateUsername = domain.ErrDuplicateUsername
)

// Driver is implemented by the concrete databases (mongo, sqlite). Uniqueness
// of email and username must be enforced by the database itself.
type Driver[X any] interface {
	// Insert writes a new account. ErrDuplicateEmail / ErrDuplicateUsername
	// on a unique index violation.
	Insert(ctx context.Context, a domain.Account[X]) error

	// Find returns the account matching f or ErrNotFound.
	Find(ctx context.Context, f Filter) (domain.Account[X], error)

	// Exists reports whether an account matches f.
	Exists(ctx context.Context, f Filter) (bool, error)

	// Update applies c to the account matching f in a single conditional
	// write. ErrNotFound when f matches nothing at the time of the write.
	Update(ctx context.Context, f Filter, c Changes[X]) error

	// Delete removes the account matching f or returns ErrNotFound.
	Delete(ctx context.Context, f Filter) error

	// ClearRecoveryBefore clears the recovery token of every account whose
	// recovery was requested at or before cutoff.
	ClearRecoveryBefore(ctx context.Context, cutoff, now time.Time) (int64, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Hasher derives password credentials.
type Hasher interface {
	HashAndSalt(password string) (cryptox.Hashed, error)
	Verify(password, salt, encodedHash string) bool
}

// Recovery is an open password recovery request.
type Recovery struct {
	Token       string
	RequestedAt time.Time
}

// AccountInit carries what is needed to create an account. Password is the
// plaintext; it is hashed before it reaches the driver.
type AccountInit[X any] struct {
	Username          string
	Email             string
	Password          string
	VerificationToken string
	Extras            X
}

// Patch describes a partial update. Nil fields are left untouched. A pointer
// to the empty string clears the field.
type Patch[X any] struct {
	Email             *string
	Username          *string
	Password          *string // plaintext
	Verified          *bool
	VerificationToken *string
	Recovery          *Recovery
	ClearRecovery     bool
	Extras            *X
}

// Changes is a Patch after hashing, as handed to a Driver.
type Changes[X any] struct {
	Email             *string
	Username          *string
	Credentials       *cryptox.Hashed
	Verified          *bool
	VerificationToken *string
	Recovery          *Recovery
	ClearRecovery     bool
	Extras            *X
	UpdatedAt         time.Time
}

// AccountStore is the account repository used by the credential service.
type AccountStore[X any] struct {
	driver Driver[X]
	hasher Hasher
	now    func() time.Time
}

// New returns an AccountStore over driver. A nil now defaults to time.Now.
func New[X any](driver Driver[X], hasher Hasher, now func() time.Time) *AccountStore[X] {
	if now == nil {
		now = time.Now
	}
	return &AccountStore[X]{driver: driver, hasher: hasher, now: now}
}

// Exists reports whether an account matches f.
func (s *AccountStore[X]) Exists(ctx context.Context, f Filter) (bool, error) {
	if f.Empty() {
		return false, nil
	}
	ok, err := s.driver.Exists(ctx, f)
	if err != nil {
		return false, fmt.Errorf("store: exists by %s: %w", f, err)
	}
	return ok, nil
}

// Get returns the account matching f.
func (s *AccountStore[X]) Get(ctx context.Context, f Filter) (domain.Account[X], error) {
	if f.Empty() {
		return domain.Account[X]{}, ErrNotFound
	}
	a, err := s.driver.Find(ctx, f)
	if err != nil {
		return domain.Account[X]{}, wrap("get", f, err)
	}
	return a, nil
}

// GetPublic returns the public part of the account matching f.
func (s *AccountStore[X]) GetPublic(ctx context.Context, f Filter) (domain.PublicAccount[X], error) {
	a, err := s.Get(ctx, f)
	if err != nil {
		return domain.PublicAccount[X]{}, err
	}
	return a.Public(), nil
}

// Create hashes the password, assigns an id and inserts the account.
func (s *AccountStore[X]) Create(ctx context.Context, init AccountInit[X]) (domain.Account[X], error) {
	creds, err := s.hasher.HashAndSalt(init.Password)
	if err != nil {
		return domain.Account[X]{}, fmt.Errorf("store: hash password: %w", err)
	}

	now := s.now().UTC()
	a := domain.Account[X]{
		ID:                idx.NewAt(now).String(),
		Username:          init.Username,
		Email:             init.Email,
		PasswordHash:      creds.Hash,
		PasswordSalt:      creds.Salt,
		VerificationToken: init.VerificationToken,
		Extras:            init.Extras,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.driver.Insert(ctx, a); err != nil {
		return domain.Account[X]{}, wrap("create", Filter{}, err)
	}
	return a, nil
}

// Update applies p to the account matching f. The driver performs a single
// conditional write, so filtering on a token makes the update a
// compare-and-clear of that token.
func (s *AccountStore[X]) Update(ctx context.Context, f Filter, p Patch[X]) error {
	if f.Empty() {
		return ErrNotFound
	}

	c := Changes[X]{
		Email:             p.Email,
		Username:          p.Username,
		Verified:          p.Verified,
		VerificationToken: p.VerificationToken,
		Recovery:          p.Recovery,
		ClearRecovery:     p.ClearRecovery,
		Extras:            p.Extras,
		UpdatedAt:         s.now().UTC(),
	}
	if p.Password != nil {
		creds, err := s.hasher.HashAndSalt(*p.Password)
		if err != nil {
			return fmt.Errorf("store: hash password: %w", err)
		}
		c.Credentials = &creds
	}

	if err := s.driver.Update(ctx, f, c); err != nil {
		return wrap("update", f, err)
	}
	return nil
}

// Remove deletes the account matching f.
func (s *AccountStore[X]) Remove(ctx context.Context, f Filter) error {
	if f.Empty() {
		return ErrNotFound
	}
	if err := s.driver.Delete(ctx, f); err != nil {
		return wrap("remove", f, err)
	}
	return nil
}

// VerifyPassword checks password against the stored credentials of a.
func (s *AccountStore[X]) VerifyPassword(a domain.Account[X], password string) bool {
	return s.hasher.Verify(password, a.PasswordSalt, a.PasswordHash)
}

// ClearExpiredRecovery drops recovery tokens requested at or before cutoff.
func (s *AccountStore[X]) ClearExpiredRecovery(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.driver.ClearRecoveryBefore(ctx, cutoff.UTC(), s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("store: clear expired recovery: %w", err)
	}
	return n, nil
}

func (s *AccountStore[X]) Ping(ctx context.Context) error  { return s.driver.Ping(ctx) }
func (s *AccountStore[X]) Close(ctx context.Context) error { return s.driver.Close(ctx) }

// wrap leaves domain errors untouched so their messages reach the caller and
// adds context to infrastructure failures.
func wrap(op string, f Filter, err error) error {
	if _, ok := domain.AsError(err); ok {
		return err
	}
	if f.Field == 0 {
		return fmt.Errorf("store: %s: %w", op, err)
	}
	return fmt.Errorf("store: %s by %s: %w", op, f, err)
}

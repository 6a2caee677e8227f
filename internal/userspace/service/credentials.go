// Package service holds the credential lifecycle: registration, login, email
// confirmation, password recovery and account settings.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/userspace/internal/userspace/domain"
	"github.com/aussiebroadwan/userspace/internal/userspace/store"
	"github.com/aussiebroadwan/userspace/internal/userspace/validate"
	"github.com/aussiebroadwan/userspace/pkg/slogx"
)

// DefaultRecoveryWindow is how long a password recovery link stays valid.
const DefaultRecoveryWindow = 60 * time.Minute

// Email subjects.
const (
	SubjectVerifyEmail     = "Activate your account"
	SubjectRecoverPassword = "Password Recovery"
)

// ErrAvailabilityDisabled is returned by CheckAvailability when the check is
// switched off.
var ErrAvailabilityDisabled = errors.New("service: availability check is disabled")

// Notifier hands notification requests to the delivery layer. Delivery is
// asynchronous; an error only means the request could not be accepted.
type Notifier interface {
	Dispatch(ctx context.Context, n domain.Notification) error
}

// Links builds the URLs embedded in emails. The token is appended as the
// "token" query parameter.
type Links struct {
	ConfirmEmailURL  string
	ResetPasswordURL string
}

func (l Links) ConfirmEmail(token string) string  { return withToken(l.ConfirmEmailURL, token) }
func (l Links) ResetPassword(token string) string { return withToken(l.ResetPasswordURL, token) }

func withToken(base, token string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + url.QueryEscape(token)
}

// Options toggles optional behaviour.
type Options struct {
	UsernamesEnabled  bool
	AvailabilityCheck bool
	RecoveryWindow    time.Duration
}

// Registration is the input of Register.
type Registration[X any] struct {
	Email           string
	Username        string
	Password        string
	ConfirmPassword string
	Extras          X
}

// Session is a successful login: the public account and its identity token.
type Session[X any] struct {
	Account domain.PublicAccount[X]
	Token   string
}

// ProfilePatch is the input of UpdateProfile. Empty strings and a nil Extras
// leave the corresponding field unchanged.
type ProfilePatch[X any] struct {
	Email            string
	Username         string
	PreviousPassword string
	NewPassword      string
	ConfirmPassword  string
	Extras           *X
}

// Availability is the input of CheckAvailability. At least one field must be
// set.
type Availability struct {
	Email    string
	Username string
}

// CredentialService implements the account lifecycle on top of an
// AccountStore.
type CredentialService[X any] struct {
	Store     *store.AccountStore[X]
	Tokens    *TokenIssuer[X]
	Notifier  Notifier
	Validator *validate.Validator
	Links     Links
	Options   Options
	Now       func() time.Time
}

// Register creates an unverified account and sends the confirmation email.
func (s *CredentialService[X]) Register(ctx context.Context, r Registration[X]) (domain.PublicAccount[X], error) {
	email := validate.NormalizeEmail(r.Email)
	username := ""

	details := s.Validator.Email(email)
	if s.Options.UsernamesEnabled {
		username = strings.TrimSpace(r.Username)
		details = append(details, s.Validator.Username(username)...)
	}
	details = append(details, s.Validator.Password(r.Password, r.ConfirmPassword)...)
	if len(details) > 0 {
		return domain.PublicAccount[X]{}, domain.ValidationError(details...)
	}

	if s.Options.UsernamesEnabled {
		taken, err := s.Store.Exists(ctx, store.ByUsername(username))
		if err != nil {
			return domain.PublicAccount[X]{}, err
		}
		if taken {
			return domain.PublicAccount[X]{}, domain.ErrDuplicateUsername
		}
	}

	taken, err := s.Store.Exists(ctx, store.ByEmail(email))
	if err != nil {
		return domain.PublicAccount[X]{}, err
	}
	if taken {
		return domain.PublicAccount[X]{}, domain.ErrDuplicateEmail
	}

	token, err := s.Tokens.NewToken()
	if err != nil {
		return domain.PublicAccount[X]{}, err
	}

	// The unique indexes settle races between the checks above and the insert.
	account, err := s.Store.Create(ctx, store.AccountInit[X]{
		Username:          username,
		Email:             email,
		Password:          r.Password,
		VerificationToken: token,
		Extras:            r.Extras,
	})
	if err != nil {
		return domain.PublicAccount[X]{}, err
	}

	slogx.FromContext(ctx).Info("account registered", slog.String("account_id", account.ID))
	s.sendVerification(ctx, account.Email, account.Username, token)

	return account.Public(), nil
}

// Authenticate resolves login as an email first, then as a username, and
// checks the password.
func (s *CredentialService[X]) Authenticate(ctx context.Context, login, password string) (Session[X], error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return Session[X]{}, domain.ErrWrongLogin
	}

	account, err := s.Store.Get(ctx, store.ByEmail(validate.NormalizeEmail(login)))
	if errors.Is(err, store.ErrNotFound) && s.Options.UsernamesEnabled {
		account, err = s.Store.Get(ctx, store.ByUsername(login))
	}
	if errors.Is(err, store.ErrNotFound) {
		return Session[X]{}, domain.ErrWrongLogin
	}
	if err != nil {
		return Session[X]{}, err
	}

	if !s.Store.VerifyPassword(account, password) {
		slogx.FromContext(ctx).Info("login rejected", slog.String("account_id", account.ID))
		return Session[X]{}, domain.ErrWrongPassword
	}

	return s.session(account.Public())
}

// ConfirmEmail redeems a verification token. The token is cleared in the same
// conditional write that sets the verified flag, so it works exactly once.
func (s *CredentialService[X]) ConfirmEmail(ctx context.Context, token string) error {
	if token == "" {
		return domain.ErrInvalidToken
	}

	verified := true
	cleared := ""
	err := s.Store.Update(ctx, store.ByVerificationToken(token), store.Patch[X]{
		Verified:          &verified,
		VerificationToken: &cleared,
	})
	if errors.Is(err, store.ErrNotFound) {
		return domain.ErrInvalidToken
	}
	return err
}

// ResendVerification sends the pending verification link again, issuing a new
// token if none is stored.
func (s *CredentialService[X]) ResendVerification(ctx context.Context, caller domain.PublicAccount[X]) error {
	account, err := s.Store.Get(ctx, store.ByID(caller.ID))
	if err != nil {
		return err
	}
	if account.Verified {
		return domain.ErrAlreadyVerified
	}

	token := account.VerificationToken
	if token == "" {
		if token, err = s.Tokens.NewToken(); err != nil {
			return err
		}
		if err := s.Store.Update(ctx, store.ByID(account.ID), store.Patch[X]{VerificationToken: &token}); err != nil {
			return err
		}
	}

	s.sendVerification(ctx, account.Email, account.Username, token)
	return nil
}

// RequestPasswordRecovery opens a recovery window for email. It reports
// success whether or not the address is known.
func (s *CredentialService[X]) RequestPasswordRecovery(ctx context.Context, email string) error {
	email = validate.NormalizeEmail(email)
	if len(s.Validator.Email(email)) > 0 {
		return nil
	}

	account, err := s.Store.Get(ctx, store.ByEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	token, err := s.Tokens.NewToken()
	if err != nil {
		return err
	}

	// A new request replaces any pending token.
	err = s.Store.Update(ctx, store.ByID(account.ID), store.Patch[X]{
		Recovery: &store.Recovery{Token: token, RequestedAt: s.now()},
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	s.notify(ctx, domain.Notification{
		RecipientEmail: account.Email,
		TemplateRef:    domain.TemplateRecoverPassword,
		Subject:        SubjectRecoverPassword,
		Variables: map[string]string{
			"link":     s.Links.ResetPassword(token),
			"email":    account.Email,
			"username": account.Username,
		},
	})
	return nil
}

// ResetPassword redeems a recovery token and sets a new password.
func (s *CredentialService[X]) ResetPassword(ctx context.Context, token, password, confirm string) error {
	if token == "" {
		return domain.ErrInvalidToken
	}

	account, err := s.Store.Get(ctx, store.ByRecoveryToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return domain.ErrInvalidToken
	}
	if err != nil {
		return err
	}

	if account.RecoveryExpired(s.now(), s.recoveryWindow()) {
		return domain.ErrRecoveryExpired
	}

	if details := s.Validator.Password(password, confirm); len(details) > 0 {
		return domain.ValidationError(details...)
	}

	// Filtering on the token makes a concurrent redemption lose.
	err = s.Store.Update(ctx, store.ByRecoveryToken(token), store.Patch[X]{
		Password:      &password,
		ClearRecovery: true,
	})
	if errors.Is(err, store.ErrNotFound) {
		return domain.ErrInvalidToken
	}
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("password reset", slog.String("account_id", account.ID))
	return nil
}

// UpdateProfile changes the caller's settings in a single write and returns a
// fresh session reflecting them.
func (s *CredentialService[X]) UpdateProfile(ctx context.Context, caller domain.PublicAccount[X], p ProfilePatch[X]) (Session[X], error) {
	account, err := s.Store.Get(ctx, store.ByID(caller.ID))
	if err != nil {
		return Session[X]{}, err
	}

	var (
		patch   store.Patch[X]
		details []string
	)

	if p.NewPassword != "" {
		if p.PreviousPassword == "" || !s.Store.VerifyPassword(account, p.PreviousPassword) {
			return Session[X]{}, domain.ErrWrongPassword
		}
		details = append(details, s.Validator.Password(p.NewPassword, p.ConfirmPassword)...)
		patch.Password = &p.NewPassword
	}

	email := validate.NormalizeEmail(p.Email)
	emailChanged := email != "" && email != account.Email
	if emailChanged {
		details = append(details, s.Validator.Email(email)...)
		patch.Email = &email
	}

	username := strings.TrimSpace(p.Username)
	usernameChanged := s.Options.UsernamesEnabled && username != "" && username != account.Username
	if usernameChanged {
		details = append(details, s.Validator.Username(username)...)
		patch.Username = &username
	}

	if len(details) > 0 {
		return Session[X]{}, domain.ValidationError(details...)
	}

	if emailChanged {
		taken, err := s.Store.Exists(ctx, store.ByEmail(email))
		if err != nil {
			return Session[X]{}, err
		}
		if taken {
			return Session[X]{}, domain.ErrDuplicateEmail
		}
	}
	if usernameChanged {
		taken, err := s.Store.Exists(ctx, store.ByUsername(username))
		if err != nil {
			return Session[X]{}, err
		}
		if taken {
			return Session[X]{}, domain.ErrDuplicateUsername
		}
	}

	var verificationToken string
	if emailChanged {
		if verificationToken, err = s.Tokens.NewToken(); err != nil {
			return Session[X]{}, err
		}
		patch.VerificationToken = &verificationToken
	}
	patch.Extras = p.Extras

	if err := s.Store.Update(ctx, store.ByID(account.ID), patch); err != nil {
		return Session[X]{}, err
	}

	if emailChanged {
		s.sendVerification(ctx, email, account.Username, verificationToken)
	}

	fresh, err := s.Store.GetPublic(ctx, store.ByID(account.ID))
	if err != nil {
		return Session[X]{}, err
	}
	return s.session(fresh)
}

// DeleteAccount removes the caller's account after re-checking the password.
func (s *CredentialService[X]) DeleteAccount(ctx context.Context, caller domain.PublicAccount[X], password string) error {
	account, err := s.Store.Get(ctx, store.ByID(caller.ID))
	if err != nil {
		return err
	}
	if !s.Store.VerifyPassword(account, password) {
		return domain.ErrWrongPassword
	}
	if err := s.Store.Remove(ctx, store.ByID(account.ID)); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("account deleted", slog.String("account_id", account.ID))
	return nil
}

// CheckAvailability reports whether the given email and username are both
// free.
func (s *CredentialService[X]) CheckAvailability(ctx context.Context, q Availability) (bool, error) {
	if !s.Options.AvailabilityCheck {
		return false, ErrAvailabilityDisabled
	}

	email := validate.NormalizeEmail(q.Email)
	username := strings.TrimSpace(q.Username)
	if email == "" && username == "" {
		return false, domain.ValidationError("Email or username is required.")
	}

	if email != "" {
		taken, err := s.Store.Exists(ctx, store.ByEmail(email))
		if err != nil || taken {
			return false, err
		}
	}
	if username != "" && s.Options.UsernamesEnabled {
		taken, err := s.Store.Exists(ctx, store.ByUsername(username))
		if err != nil || taken {
			return false, err
		}
	}
	return true, nil
}

// ResolveSession verifies an identity token and returns the current public
// state of its account.
func (s *CredentialService[X]) ResolveSession(ctx context.Context, token string) (domain.PublicAccount[X], error) {
	claimed, err := s.Tokens.Verify(token)
	if err != nil {
		return domain.PublicAccount[X]{}, err
	}

	account, err := s.Store.GetPublic(ctx, store.ByID(claimed.ID))
	if errors.Is(err, store.ErrNotFound) {
		return domain.PublicAccount[X]{}, domain.ErrSessionInvalid
	}
	if err != nil {
		return domain.PublicAccount[X]{}, err
	}
	return account, nil
}

// Me returns the caller's current public account. An account deleted since
// the caller was resolved yields ErrSessionInvalid.
func (s *CredentialService[X]) Me(ctx context.Context, caller domain.PublicAccount[X]) (domain.PublicAccount[X], error) {
	account, err := s.Store.GetPublic(ctx, store.ByID(caller.ID))
	if errors.Is(err, store.ErrNotFound) {
		return domain.PublicAccount[X]{}, domain.ErrSessionInvalid
	}
	if err != nil {
		return domain.PublicAccount[X]{}, err
	}
	return account, nil
}

func (s *CredentialService[X]) session(account domain.PublicAccount[X]) (Session[X], error) {
	token, err := s.Tokens.Sign(account)
	if err != nil {
		return Session[X]{}, err
	}
	return Session[X]{Account: account, Token: token}, nil
}

func (s *CredentialService[X]) sendVerification(ctx context.Context, email, username, token string) {
	s.notify(ctx, domain.Notification{
		RecipientEmail: email,
		TemplateRef:    domain.TemplateVerifyEmail,
		Subject:        SubjectVerifyEmail,
		Variables: map[string]string{
			"link":     s.Links.ConfirmEmail(token),
			"email":    email,
			"username": username,
		},
	})
}

// notify never fails the calling operation; undelivered mail is logged.
func (s *CredentialService[X]) notify(ctx context.Context, n domain.Notification) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Dispatch(ctx, n); err != nil {
		slogx.FromContext(ctx).Warn("notification dispatch failed",
			slog.String("template", n.TemplateRef),
			slog.Any("error", err),
		)
	}
}

func (s *CredentialService[X]) recoveryWindow() time.Duration {
	if s.Options.RecoveryWindow <= 0 {
		return DefaultRecoveryWindow
	}
	return s.Options.RecoveryWindow
}

func (s *CredentialService[X]) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

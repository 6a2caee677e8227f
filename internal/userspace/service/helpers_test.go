package service_test

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/userspace/internal/userspace/domain"
	"github.com/aussiebroadwan/userspace/internal/userspace/service"
	"github.com/aussiebroadwan/userspace/internal/userspace/store"
	"github.com/aussiebroadwan/userspace/internal/userspace/store/drivers/sqlite"
	"github.com/aussiebroadwan/userspace/internal/userspace/validate"
	"github.com/aussiebroadwan/userspace/pkg/cryptox"
	"github.com/aussiebroadwan/userspace/pkg/jwtx"
)

const testIssuer = "userspace-test"

type extras struct {
	Nickname string `json:"nickname,omitempty"`
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recorder struct {
	mu   sync.Mutex
	sent []domain.Notification
	fail bool
}

func (r *recorder) Dispatch(_ context.Context, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("queue unavailable")
	}
	r.sent = append(r.sent, n)
	return nil
}

func (r *recorder) all() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notification(nil), r.sent...)
}

func (r *recorder) last(t *testing.T) domain.Notification {
	t.Helper()
	sent := r.all()
	require.NotEmpty(t, sent, "no notification was dispatched")
	return sent[len(sent)-1]
}

// linkToken extracts the token query parameter of a notification link.
func linkToken(t *testing.T, n domain.Notification) string {
	t.Helper()
	u, err := url.Parse(n.Variables["link"])
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}

type env struct {
	svc   *service.CredentialService[extras]
	store *store.AccountStore[extras]
	clock *fakeClock
	mail  *recorder
}

func newEnv(t *testing.T, opts service.Options) *env {
	t.Helper()

	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}

	driver, err := sqlite.NewStore[extras](filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	require.NoError(t, driver.ApplyMigrations())

	params := cryptox.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16}
	accounts := store.New[extras](driver, cryptox.NewArgon2Hasher(params, []byte("pepper")), clock.Now)
	t.Cleanup(func() { _ = accounts.Close(context.Background()) })

	km, err := jwtx.NewEphemeralKeyManager(cryptox.AlgEdDSA, testIssuer, 0)
	require.NoError(t, err)

	mail := &recorder{}
	svc := &service.CredentialService[extras]{
		Store: accounts,
		Tokens: &service.TokenIssuer[extras]{
			Signer:   km.Signer,
			Verifier: jwtx.NewVerifier(km.KeySet, testIssuer, jwtx.DefaultLeeway).WithClock(clock.Now),
			Issuer:   testIssuer,
			TTL:      time.Hour,
			Now:      clock.Now,
		},
		Notifier:  mail,
		Validator: validate.New(),
		Links: service.Links{
			ConfirmEmailURL:  "https://users.example.com/v1/users/email/confirmation",
			ResetPasswordURL: "https://users.example.com/form/reset/password",
		},
		Options: opts,
		Now:     clock.Now,
	}

	return &env{svc: svc, store: accounts, clock: clock, mail: mail}
}

func (e *env) register(t *testing.T, email, username, password string) domain.PublicAccount[extras] {
	t.Helper()
	account, err := e.svc.Register(context.Background(), service.Registration[extras]{
		Email:           email,
		Username:        username,
		Password:        password,
		ConfirmPassword: password,
	})
	require.NoError(t, err)
	return account
}

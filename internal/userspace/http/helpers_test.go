package http_test

import (
	"context"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/userspace/internal/userspace/domain"
	userhttp "github.com/aussiebroadwan/userspace/internal/userspace/http"
	"github.com/aussiebroadwan/userspace/internal/userspace/metrics"
	"github.com/aussiebroadwan/userspace/internal/userspace/service"
	"github.com/aussiebroadwan/userspace/internal/userspace/store"
	"github.com/aussiebroadwan/userspace/internal/userspace/store/drivers/sqlite"
	"github.com/aussiebroadwan/userspace/internal/userspace/validate"
	"github.com/aussiebroadwan/userspace/pkg/cryptox"
	"github.com/aussiebroadwan/userspace/pkg/httpx"
	"github.com/aussiebroadwan/userspace/pkg/jwtx"
	"github.com/aussiebroadwan/userspace/pkg/slogx"
	"github.com/aussiebroadwan/userspace/pkg/usersdk"
)

const testIssuer = "userspace-http-test"

type profile struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type mailbox struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (m *mailbox) Dispatch(_ context.Context, n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return nil
}

// lastToken returns the token of the newest link sent with template.
func (m *mailbox) lastToken(t *testing.T, template string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].TemplateRef != template {
			continue
		}
		u, err := url.Parse(m.sent[i].Variables["link"])
		require.NoError(t, err)
		return u.Query().Get("token")
	}
	t.Fatalf("no %s notification sent", template)
	return ""
}

type server struct {
	URL     string
	client  *usersdk.Client
	mail    *mailbox
	store   *store.AccountStore[profile]
	metrics *metrics.Registry
	keys    *jwtx.KeyManager
}

var lifted = httpx.RateLimitConfig{RequestsPerWindow: 10000, Window: time.Minute, Burst: 10000}

func newServer(t *testing.T, opts service.Options, configure ...func(*userhttp.Router[profile])) *server {
	t.Helper()

	driver, err := sqlite.NewStore[profile](filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	require.NoError(t, driver.ApplyMigrations())

	params := cryptox.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16}
	accounts := store.New[profile](driver, cryptox.NewArgon2Hasher(params, nil), nil)
	t.Cleanup(func() { _ = accounts.Close(context.Background()) })

	km, err := jwtx.NewEphemeralKeyManager(cryptox.AlgEdDSA, testIssuer, 0)
	require.NoError(t, err)

	mail := &mailbox{}
	svc := &service.CredentialService[profile]{
		Store: accounts,
		Tokens: &service.TokenIssuer[profile]{
			Signer:   km.Signer,
			Verifier: km.Verifier,
			Issuer:   testIssuer,
			TTL:      time.Hour,
		},
		Notifier:  mail,
		Validator: validate.New(),
		Links: service.Links{
			ConfirmEmailURL:  "http://localhost/v1/users/email/confirmation",
			ResetPasswordURL: "http://localhost/form/reset/password",
		},
		Options: opts,
	}

	reg := metrics.New()
	router := userhttp.NewRouter(svc, km, accounts, "test", slogx.Discard())
	router.Limits = httpx.RateLimitProfiles{Strict: lifted, Moderate: lifted, Lenient: lifted, Public: lifted}
	router.Metrics = reg
	for _, fn := range configure {
		fn(router)
	}
	router.ApplyRoutes()

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	return &server{
		URL:     ts.URL,
		client:  usersdk.NewClient(ts.URL),
		mail:    mail,
		store:   accounts,
		metrics: reg,
		keys:    km,
	}
}

// signup registers an account, then logs in. The username is derived from
// the local part of email and ignored when usernames are disabled.
func (s *server) signup(t *testing.T, email, password string) *usersdk.Session {
	t.Helper()
	ctx := context.Background()

	local, _, _ := strings.Cut(email, "@")
	_, err := s.client.Register(ctx, usersdk.RegisterRequest{
		Email:           email,
		Username:        local + "_user",
		Password:        password,
		ConfirmPassword: password,
	})
	require.NoError(t, err)

	session, err := s.client.Login(ctx, email, password)
	require.NoError(t, err)
	return session
}

func requireCode(t *testing.T, err error, status int, code string) {
	t.Helper()
	require.Error(t, err)
	var apiErr *usersdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.StatusCode, apiErr.Error())
	require.Equal(t, code, apiErr.Code)
	require.NotEmpty(t, apiErr.Notifications)
}

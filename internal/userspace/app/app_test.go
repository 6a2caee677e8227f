package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/userspace/pkg/usersdk"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.LogLevel = "error"
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.SQLiteDSN = filepath.Join(dir, "accounts.db")
	cfg.KeyFile = filepath.Join(dir, "keys", "signing.pem")
	cfg.PepperFile = filepath.Join(dir, "keys", "pepper")
	cfg.MailDeadLetterFile = filepath.Join(dir, "dead-letter.jsonl")
	cfg.ResetURL = cfg.PublicURL + "/form/reset/password"
	cfg.ShutdownGrace = 5 * time.Second
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestNewWiresSQLiteApplication(t *testing.T) {
	cfg := testConfig(t)

	app, err := New(cfg)
	require.NoError(t, err)
	app.Start()
	t.Cleanup(func() { require.NoError(t, app.Shutdown()) })

	_, err = os.Stat(cfg.KeyFile)
	require.NoError(t, err, "signing key is generated on first start")
	_, err = os.Stat(cfg.PepperFile)
	require.NoError(t, err, "pepper is generated on first start")

	ts := httptest.NewServer(app.Handler())
	t.Cleanup(ts.Close)

	ctx := context.Background()
	client := usersdk.NewClient(ts.URL)

	health, err := client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", health.Status)

	_, err = client.Register(ctx, usersdk.RegisterRequest{
		Email:           "ada@example.com",
		Username:        "adal",
		Password:        "correct horse battery",
		ConfirmPassword: "correct horse battery",
		Extras:          map[string]any{"first_name": "Ada"},
	})
	require.NoError(t, err)

	session, err := client.Login(ctx, "adal", "correct horse battery")
	require.NoError(t, err)
	require.Equal(t, "Ada", session.User().Extras["first_name"])
	require.False(t, session.User().Verified)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewReusesSigningKey(t *testing.T) {
	cfg := testConfig(t)

	first, err := New(cfg)
	require.NoError(t, err)
	kid := first.keyManager.Signer.KID()
	first.Start()
	require.NoError(t, first.Shutdown())

	second, err := New(cfg)
	require.NoError(t, err)
	second.Start()
	t.Cleanup(func() { require.NoError(t, second.Shutdown()) })

	require.Equal(t, kid, second.keyManager.Signer.KID())
}

func TestMetricsCanBeDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.MetricsEnabled = false

	app, err := New(cfg)
	require.NoError(t, err)
	app.Start()
	t.Cleanup(func() { require.NoError(t, app.Shutdown()) })

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAvailabilityRouteFollowsConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.AvailabilityCheck = true

	app, err := New(cfg)
	require.NoError(t, err)
	app.Start()
	t.Cleanup(func() { require.NoError(t, app.Shutdown()) })

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/users/available?email=nobody@example.com", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body usersdk.AvailabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Available)
}

func TestNewFailsOnUnreadableMasterKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.MasterKeyFile = filepath.Join(t.TempDir(), "missing-master.key")

	_, err := New(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "master key")
}

func TestSQLiteDSN(t *testing.T) {
	require.Equal(t, "file:accounts.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", sqliteDSN("accounts.db"))
	require.Equal(t, "file:x.db?mode=ro", sqliteDSN("file:x.db?mode=ro"))
	require.Equal(t, ":memory:", sqliteDSN(":memory:"))
}

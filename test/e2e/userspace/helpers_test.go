package userspace_test

import (
	"context"
	"flag"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aussiebroadwan/userspace/internal/userspace/app"
	mongostore "github.com/aussiebroadwan/userspace/internal/userspace/store/drivers/mongo"
	"github.com/aussiebroadwan/userspace/pkg/usersdk"
)

/*
 * Common setup for the account service end-to-end tests. A single MongoDB
 * container is shared by every test; each test gets its own database and its
 * own in-process application.
 */

const mongoImage = "mongo:7"

var (
	mongoURI string
	setupErr error
)

// TestMain starts MongoDB once before all tests and terminates it after.
func TestMain(m *testing.M) {
	flag.Parse()

	// Relaxed limits, tests make many rapid requests from one address.
	for _, profile := range []string{"STRICT", "MODERATE", "LENIENT", "PUBLIC"} {
		_ = os.Setenv("RATELIMIT_"+profile+"_REQUESTS", "1000")
		_ = os.Setenv("RATELIMIT_"+profile+"_BURST", "1000")
	}

	if testing.Short() {
		setupErr = fmt.Errorf("short mode")
		os.Exit(m.Run())
	}

	ctx := context.Background()
	fmt.Fprintf(os.Stdout, "Starting MongoDB container...")
	container, err := startMongo(ctx)
	if err != nil {
		fmt.Fprintf(os.Stdout, " unavailable: %v\n", err)
		setupErr = err
		os.Exit(m.Run())
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Terminating MongoDB container...")
	_ = container.Terminate(ctx)
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func startMongo(ctx context.Context) (testcontainers.Container, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        mongoImage,
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor: wait.ForListeningPort("27017/tcp").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, err
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	port, err := container.MappedPort(ctx, "27017")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	mongoURI = fmt.Sprintf("mongodb://%s:%s", host, port.Port())
	return container, nil
}

type service struct {
	URL    string
	client *usersdk.Client
	db     *mongo.Database
}

// setupService starts the application on a fresh database and returns a
// client for it.
func setupService(t *testing.T, configure ...func(*app.Config)) *service {
	t.Helper()
	if setupErr != nil {
		t.Skipf("mongo not available: %v", setupErr)
	}

	dir := t.TempDir()
	database := "userspace_" + uuid.NewString()[:8]

	cfg := app.DefaultConfig()
	cfg.Env = "test"
	cfg.LogLevel = "warn"
	cfg.StoreDriver = app.DriverMongo
	cfg.MongoURI = mongoURI
	cfg.MongoDatabase = database
	cfg.KeyFile = filepath.Join(dir, "signing.pem")
	cfg.PepperFile = filepath.Join(dir, "pepper")
	cfg.MailDeadLetterFile = filepath.Join(dir, "dead-letter.jsonl")
	cfg.ResetURL = cfg.PublicURL + "/form/reset/password"
	cfg.MailRetryBackoff = 10 * time.Millisecond
	for _, fn := range configure {
		fn(&cfg)
	}
	require.NoError(t, cfg.Validate())

	application, err := app.New(cfg)
	require.NoError(t, err)
	application.Start()

	ts := httptest.NewServer(application.Handler())

	client, err := mongo.Connect(t.Context(), options.Client().ApplyURI(mongoURI))
	require.NoError(t, err)

	t.Cleanup(func() {
		ts.Close()
		require.NoError(t, application.Shutdown())
		ctx := context.Background()
		_ = client.Database(database).Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	return &service{
		URL:    ts.URL,
		client: usersdk.NewClient(ts.URL),
		db:     client.Database(database),
	}
}

// storedToken reads a pending token straight from the accounts collection,
// standing in for the link a user would follow from their inbox.
func (s *service) storedToken(t *testing.T, email, field string) string {
	t.Helper()

	var doc bson.M
	err := s.db.Collection(mongostore.CollectionName).
		FindOne(t.Context(), bson.M{"email": email}).
		Decode(&doc)
	require.NoError(t, err)

	token, _ := doc[field].(string)
	require.NotEmpty(t, token, "%s should be set for %s", field, email)
	return token
}

func (s *service) verificationToken(t *testing.T, email string) string {
	return s.storedToken(t, email, "verification_token")
}

func (s *service) recoveryToken(t *testing.T, email string) string {
	return s.storedToken(t, email, "recovery_token")
}

// registerAndLogin creates an account and returns a logged in session.
func registerAndLogin(t *testing.T, s *service, email, username, password string) *usersdk.Session {
	t.Helper()
	ctx := t.Context()

	_, err := s.client.Register(ctx, usersdk.RegisterRequest{
		Email:           email,
		Username:        username,
		Password:        password,
		ConfirmPassword: password,
	})
	require.NoError(t, err, "Register should succeed")

	session, err := s.client.Login(ctx, email, password)
	require.NoError(t, err, "Login should succeed")
	require.NotEmpty(t, session.Token())
	return session
}

// assertCode checks that err is an API error with the given status and code.
func assertCode(t *testing.T, err error, status int, code string) {
	t.Helper()
	require.Error(t, err)
	var apiErr *usersdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.StatusCode, apiErr.Error())
	require.Equal(t, code, apiErr.Code)
}

// assertHealthy verifies a health check response is OK.
func assertHealthy(t *testing.T, health *usersdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}

package mongo_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aussiebroadwan/userspace/internal/userspace/domain"
	"github.com/aussiebroadwan/userspace/internal/userspace/store"
	"github.com/aussiebroadwan/userspace/internal/userspace/store/drivers/mongo"
)

type profile struct {
	DisplayName string `bson:"display_name" json:"display_name"`
}

// startMongo runs a throwaway MongoDB and returns a connected client.
func startMongo(t *testing.T) *mongodriver.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "27017")
	require.NoError(t, err)

	client, err := mongodriver.Connect(ctx, options.Client().ApplyURI(fmt.Sprintf("mongodb://%s:%s", host, port.Port())))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })
	return client
}

func account(id, email, username string) domain.Account[profile] {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return domain.Account[profile]{
		ID:                id,
		Username:          username,
		Email:             email,
		PasswordHash:      "hash",
		PasswordSalt:      "salt",
		VerificationToken: "verify-" + id,
		Extras:            profile{DisplayName: "Display " + id},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestStore(t *testing.T) {
	client := startMongo(t)
	ctx := context.Background()

	newStore := func(t *testing.T) *mongo.Store[profile] {
		s, err := mongo.NewStore[profile](ctx, client, "test_"+fmt.Sprint(time.Now().UnixNano()))
		require.NoError(t, err)
		return s
	}

	t.Run("insert and find", func(t *testing.T) {
		s := newStore(t)
		want := account("01", "alice@example.com", "alice")
		require.NoError(t, s.Insert(ctx, want))

		for _, f := range []store.Filter{
			store.ByID("01"),
			store.ByEmail("alice@example.com"),
			store.ByUsername("alice"),
			store.ByVerificationToken("verify-01"),
		} {
			got, err := s.Find(ctx, f)
			require.NoError(t, err, f.String())
			require.Equal(t, want, got)
		}

		_, err := s.Find(ctx, store.ByEmail("bob@example.com"))
		require.ErrorIs(t, err, store.ErrNotFound)

		ok, err := s.Exists(ctx, store.ByUsername("alice"))
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("uniqueness", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, account("01", "alice@example.com", "alice")))

		require.ErrorIs(t, s.Insert(ctx, account("02", "alice@example.com", "other")), store.ErrDuplicateEmail)
		require.ErrorIs(t, s.Insert(ctx, account("03", "carol@example.com", "alice")), store.ErrDuplicateUsername)

		require.NoError(t, s.Insert(ctx, account("04", "dave@example.com", "")))
		require.NoError(t, s.Insert(ctx, account("05", "erin@example.com", "")))
	})

	t.Run("conditional update", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, account("01", "alice@example.com", "alice")))

		verified := true
		cleared := ""
		confirm := store.Changes[profile]{Verified: &verified, VerificationToken: &cleared, UpdatedAt: time.Now()}
		require.NoError(t, s.Update(ctx, store.ByVerificationToken("verify-01"), confirm))
		require.ErrorIs(t, s.Update(ctx, store.ByVerificationToken("verify-01"), confirm), store.ErrNotFound)

		got, err := s.Find(ctx, store.ByID("01"))
		require.NoError(t, err)
		require.True(t, got.Verified)
		require.Empty(t, got.VerificationToken)
	})

	t.Run("recovery sweep", func(t *testing.T) {
		s := newStore(t)
		base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

		a := account("01", "alice@example.com", "")
		a.RecoveryToken = "recover"
		a.RecoveryRequestedAt = &base
		require.NoError(t, s.Insert(ctx, a))

		n, err := s.ClearRecoveryBefore(ctx, base.Add(-time.Second), base)
		require.NoError(t, err)
		require.Zero(t, n)

		n, err = s.ClearRecoveryBefore(ctx, base, base.Add(time.Hour))
		require.NoError(t, err)
		require.EqualValues(t, 1, n)

		_, err = s.Find(ctx, store.ByRecoveryToken("recover"))
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, account("01", "alice@example.com", "alice")))
		require.NoError(t, s.Delete(ctx, store.ByID("01")))
		require.ErrorIs(t, s.Delete(ctx, store.ByID("01")), store.ErrNotFound)
		require.NoError(t, s.Ping(ctx))
	})
}

package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/userspace/internal/userspace/service"
	"github.com/aussiebroadwan/userspace/internal/userspace/store"
	"github.com/aussiebroadwan/userspace/pkg/slogx"
)

func TestHousekeeping_Sweep(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t, service.Options{})
	account := e.register(t, "alice@example.com", "", "password1")
	requestRecovery(t, e, "alice@example.com")

	hk := service.NewHousekeepingService(e.store, slogx.Discard(), time.Minute, time.Hour)
	hk.Now = e.clock.Now

	e.clock.Advance(59 * time.Minute)
	hk.Sweep(ctx)
	stored, err := e.store.Get(ctx, store.ByID(account.ID))
	require.NoError(t, err)
	require.NotEmpty(t, stored.RecoveryToken)

	e.clock.Advance(time.Minute)
	hk.Sweep(ctx)
	stored, err = e.store.Get(ctx, store.ByID(account.ID))
	require.NoError(t, err)
	require.Empty(t, stored.RecoveryToken)
	require.Nil(t, stored.RecoveryRequestedAt)
}

type countingSweeper struct {
	calls chan time.Time
}

func (c *countingSweeper) ClearExpiredRecovery(_ context.Context, cutoff time.Time) (int64, error) {
	select {
	case c.calls <- cutoff:
	default:
	}
	return 0, nil
}

func TestHousekeeping_StartStop(t *testing.T) {
	t.Parallel()
	sweeper := &countingSweeper{calls: make(chan time.Time, 16)}

	hk := service.NewHousekeepingService(sweeper, slogx.Discard(), 10*time.Millisecond, 0)
	require.Equal(t, service.DefaultRecoveryWindow, hk.Window)

	hk.Start()
	for range 2 {
		select {
		case <-sweeper.calls:
		case <-time.After(2 * time.Second):
			t.Fatal("sweeper did not run")
		}
	}
	hk.Stop()
}

package userspace_test

import (
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/userspace/internal/userspace/app"
	"github.com/aussiebroadwan/userspace/pkg/usersdk"
)

// TestAccountLifecycle walks one account through every operation.
func TestAccountLifecycle(t *testing.T) {
	s := setupService(t)
	ctx := t.Context()

	_, err := s.client.Register(ctx, usersdk.RegisterRequest{
		Email:           "Grace@Example.com",
		Username:        "grace",
		Password:        "first password 1",
		ConfirmPassword: "first password 1",
		Extras:          map[string]any{"first_name": "Grace", "last_name": "Hopper"},
	})
	require.NoError(t, err)

	// Emails are stored lower-cased.
	session, err := s.client.Login(ctx, "grace@example.com", "first password 1")
	require.NoError(t, err)
	require.False(t, session.User().Verified)
	require.Equal(t, "Hopper", session.User().Extras["last_name"])

	t.Run("confirm email", func(t *testing.T) {
		token := s.verificationToken(t, "grace@example.com")
		_, err := s.client.ConfirmEmail(ctx, token)
		require.NoError(t, err)

		me, err := session.Me(ctx)
		require.NoError(t, err)
		require.True(t, me.Verified)

		_, err = s.client.ConfirmEmail(ctx, token)
		assertCode(t, err, http.StatusBadRequest, usersdk.CodeInvalidToken)

		_, err = session.ResendVerification(ctx)
		assertCode(t, err, http.StatusConflict, usersdk.CodeAlreadyVerified)
	})

	t.Run("recover password", func(t *testing.T) {
		_, err := s.client.RequestPasswordRecovery(ctx, "grace@example.com")
		require.NoError(t, err)

		token := s.recoveryToken(t, "grace@example.com")
		_, err = s.client.ResetPassword(ctx, usersdk.ResetPasswordRequest{
			Token:           token,
			Password:        "second password 2",
			ConfirmPassword: "second password 2",
		})
		require.NoError(t, err)

		_, err = s.client.Login(ctx, "grace", "first password 1")
		assertCode(t, err, http.StatusUnauthorized, usersdk.CodeWrongPassword)

		session, err = s.client.Login(ctx, "grace", "second password 2")
		require.NoError(t, err)

		_, err = s.client.ResetPassword(ctx, usersdk.ResetPasswordRequest{
			Token:           token,
			Password:        "third password 3",
			ConfirmPassword: "third password 3",
		})
		assertCode(t, err, http.StatusBadRequest, usersdk.CodeInvalidToken)
	})

	t.Run("update profile", func(t *testing.T) {
		resp, err := session.UpdateProfile(ctx, usersdk.UpdateProfileRequest{
			Email:  "grace.hopper@example.com",
			Extras: map[string]any{"first_name": "Amazing Grace"},
		})
		require.NoError(t, err)
		require.NotEmpty(t, resp.Token)
		require.Equal(t, "grace.hopper@example.com", resp.User.Email)
		require.Equal(t, "Amazing Grace", resp.User.Extras["first_name"])
		require.Equal(t, "Hopper", resp.User.Extras["last_name"], "unchanged extras are kept")

		// The new address gets its own confirmation link.
		require.NotEmpty(t, s.verificationToken(t, "grace.hopper@example.com"))

		_, err = s.client.Login(ctx, "grace@example.com", "second password 2")
		assertCode(t, err, http.StatusUnauthorized, usersdk.CodeWrongLogin)
	})

	t.Run("delete account", func(t *testing.T) {
		_, err := session.DeleteAccount(ctx, "wrong password")
		assertCode(t, err, http.StatusUnauthorized, usersdk.CodeWrongPassword)

		_, err = session.DeleteAccount(ctx, "second password 2")
		require.NoError(t, err)

		_, err = s.client.Login(ctx, "grace", "second password 2")
		assertCode(t, err, http.StatusUnauthorized, usersdk.CodeWrongLogin)

		_, err = session.Me(ctx)
		assertCode(t, err, http.StatusUnauthorized, usersdk.CodeSessionInvalid)
	})
}

// TestConcurrentRegistration checks that the unique indexes let exactly one
// of several racing registrations for the same email through.
func TestConcurrentRegistration(t *testing.T) {
	s := setupService(t)

	const racers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.client.Register(t.Context(), usersdk.RegisterRequest{
				Email:           "race@example.com",
				Username:        "racer" + string(rune('a'+i)),
				Password:        "racing password",
				ConfirmPassword: "racing password",
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case usersdk.IsCode(err, usersdk.CodeDuplicateEmail):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, succeeded)
	require.Equal(t, racers-1, conflicts)
}

// TestRecoveryForUnknownEmail verifies the response does not reveal whether
// an account exists.
func TestRecoveryForUnknownEmail(t *testing.T) {
	s := setupService(t)
	registerAndLogin(t, s, "known@example.com", "known", "known password")

	known, err := s.client.RequestPasswordRecovery(t.Context(), "known@example.com")
	require.NoError(t, err)

	unknown, err := s.client.RequestPasswordRecovery(t.Context(), "unknown@example.com")
	require.NoError(t, err)

	require.Equal(t, known.Notifications, unknown.Notifications)
}

// TestAvailabilityCheck verifies the optional availability endpoint.
func TestAvailabilityCheck(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		s := setupService(t)
		_, err := s.client.CheckAvailability(t.Context(), "someone@example.com", "")
		require.Error(t, err)
		var apiErr *usersdk.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	})

	t.Run("enabled", func(t *testing.T) {
		s := setupService(t, func(c *app.Config) { c.AvailabilityCheck = true })
		registerAndLogin(t, s, "taken@example.com", "taken", "taken password")

		available, err := s.client.CheckAvailability(t.Context(), "taken@example.com", "")
		require.NoError(t, err)
		require.False(t, available)

		available, err = s.client.CheckAvailability(t.Context(), "", "free")
		require.NoError(t, err)
		require.True(t, available)
	})
}

package http

import (
	"net/http"

	"github.com/aussiebroadwan/userspace/internal/userspace/service"
	"github.com/aussiebroadwan/userspace/pkg/httpx"
	"github.com/aussiebroadwan/userspace/pkg/usersdk"
)

const msgRecoverySent = "If your email address exists in our database, you will receive a password recovery link at your email address in a few minutes."

// RecoveryHandler starts password recovery.
type RecoveryHandler[X any] struct {
	Service *service.CredentialService[X]
	Metrics Observer
}

// ServeHTTP godoc
//
//	@Summary		Request a password recovery link
//	@Description	Always answers the same way so that registered addresses cannot be discovered.
//	@Tags			Password
//	@Accept			json
//	@Produce		json
//	@Param			request	body		usersdk.RecoveryRequest	true	"Email address"
//	@Success		200		{object}	usersdk.Envelope
//	@Failure		429		{object}	usersdk.Envelope	"rate_limited"
//	@Router			/v1/users/password/recovery [post].
func (h *RecoveryHandler[X]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body usersdk.RecoveryRequest
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		writeBadBody(w)
		return
	}

	err := h.Service.RequestPasswordRecovery(r.Context(), body.Email)
	observe(h.Metrics, "request_password_recovery", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, usersdk.NotificationInfo, msgRecoverySent)
}

// ResetPasswordHandler redeems recovery links.
type ResetPasswordHandler[X any] struct {
	Service *service.CredentialService[X]
	Metrics Observer
}

// ServeHTTP godoc
//
//	@Summary		Reset a password
//	@Description	Redeems a recovery token. Tokens expire 60 minutes after they were requested.
//	@Tags			Password
//	@Accept			json
//	@Produce		json
//	@Param			request	body		usersdk.ResetPasswordRequest	true	"Token and new password"
//	@Success		200		{object}	usersdk.Envelope
//	@Failure		400		{object}	usersdk.Envelope	"invalid_token or validation_error"
//	@Failure		410		{object}	usersdk.Envelope	"recovery_expired"
//	@Router			/v1/users/password/reset [post].
func (h *ResetPasswordHandler[X]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body usersdk.ResetPasswordRequest
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		writeBadBody(w)
		return
	}

	err := h.Service.ResetPassword(r.Context(), body.Token, body.Password, body.ConfirmPassword)
	observe(h.Metrics, "reset_password", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, usersdk.NotificationSuccess, "Your password has been updated.")
}

package http

import (
	"net/http"

	"github.com/aussiebroadwan/userspace/internal/userspace/domain"
	"github.com/aussiebroadwan/userspace/internal/userspace/service"
	"github.com/aussiebroadwan/userspace/pkg/usersdk"
)

// ConfirmEmailHandler redeems email confirmation links.
type ConfirmEmailHandler[X any] struct {
	Service *service.CredentialService[X]
	Metrics Observer
}

// ServeHTTP godoc
//
//	@Summary		Confirm an email address
//	@Description	Redeems the token sent by email. Each token works once.
//	@Tags			Email
//	@Produce		json
//	@Param			token	query		string	true	"Confirmation token"
//	@Success		200		{object}	usersdk.Envelope
//	@Failure		400		{object}	usersdk.Envelope	"invalid_token"
//	@Router			/v1/users/email/confirmation [get].
func (h *ConfirmEmailHandler[X]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := h.Service.ConfirmEmail(r.Context(), r.URL.Query().Get("token"))
	observe(h.Metrics, "confirm_email", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, usersdk.NotificationSuccess, "Your email address is confirmed.")
}

// ResendVerificationHandler emails the confirmation link again.
type ResendVerificationHandler[X any] struct {
	Service *service.CredentialService[X]
	Metrics Observer
}

// ServeHTTP godoc
//
//	@Summary		Resend the confirmation email
//	@Tags			Email
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	usersdk.Envelope
//	@Failure		401	{object}	usersdk.Envelope	"session_invalid"
//	@Failure		409	{object}	usersdk.Envelope	"already_verified"
//	@Router			/v1/users/email/confirmation/resend [post].
func (h *ResendVerificationHandler[X]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext[X](r.Context())
	if !ok {
		writeError(w, r, domain.ErrSessionInvalid)
		return
	}

	err := h.Service.ResendVerification(r.Context(), caller)
	observe(h.Metrics, "resend_verification", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, usersdk.NotificationInfo,
		"A new confirmation link has been sent to "+caller.Email+".")
}

package http

import (
	"net/http"

	"github.com/aussiebroadwan/userspace/internal/userspace/domain"
	"github.com/aussiebroadwan/userspace/internal/userspace/service"
	"github.com/aussiebroadwan/userspace/pkg/httpx"
	"github.com/aussiebroadwan/userspace/pkg/usersdk"
)

type updateBody struct {
	Email            string `json:"email"`
	Username         string `json:"username"`
	PreviousPassword string `json:"previous_password"`
	NewPassword      string `json:"new_password"`
	ConfirmPassword  string `json:"confirm_password"`
}

// MeHandler serves the caller's own account. All routes sit behind
// AuthnMiddleware.
type MeHandler[X any] struct {
	Service *service.CredentialService[X]
	Metrics Observer
}

// HandleGet godoc
//
//	@Summary		Current account
//	@Tags			Account
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	usersdk.UserResponse
//	@Failure		401	{object}	usersdk.Envelope	"session_invalid"
//	@Router			/v1/users/me [get].
func (h *MeHandler[X]) HandleGet(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext[X](r.Context())
	if !ok {
		writeError(w, r, domain.ErrSessionInvalid)
		return
	}

	account, err := h.Service.Me(r.Context(), caller)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, userResponse[X]{
		Notifications: []usersdk.Notification{},
		User:          account,
	})
}

// HandlePatch godoc
//
//	@Summary		Update account settings
//	@Description	Changes email, username, password and profile extras in one write.
//	@Description	A password change requires previous_password. An email change sends a new confirmation link.
//	@Description	Profile extras are merged into the stored ones. The response carries a fresh token.
//	@Tags			Account
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		usersdk.UpdateProfileRequest	true	"Changes"
//	@Success		200		{object}	usersdk.AuthResponse
//	@Failure		400		{object}	usersdk.Envelope	"validation_error"
//	@Failure		401		{object}	usersdk.Envelope	"session_invalid or wrong_password"
//	@Failure		409		{object}	usersdk.Envelope	"duplicate_email or duplicate_username"
//	@Router			/v1/users/me [patch].
func (h *MeHandler[X]) HandlePatch(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext[X](r.Context())
	if !ok {
		writeError(w, r, domain.ErrSessionInvalid)
		return
	}

	var body updateBody
	rest, err := decodeFlat(w, r, &body, "email", "username", "previous_password", "new_password", "confirm_password")
	if err != nil {
		writeBadBody(w)
		return
	}

	patch := service.ProfilePatch[X]{
		Email:            body.Email,
		Username:         body.Username,
		PreviousPassword: body.PreviousPassword,
		NewPassword:      body.NewPassword,
		ConfirmPassword:  body.ConfirmPassword,
	}
	if len(rest) > 0 {
		extras, err := mergeExtras(caller.Extras, rest)
		if err != nil {
			writeError(w, r, domain.ValidationError("Some profile fields have the wrong type."))
			return
		}
		patch.Extras = &extras
	}

	session, err := h.Service.UpdateProfile(r.Context(), caller, patch)
	observe(h.Metrics, "update_profile", err)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authResponse[X]{
		Notifications: notify(usersdk.NotificationSuccess, "Your settings have been saved."),
		Token:         session.Token,
		User:          session.Account,
	})
}

// HandleDelete godoc
//
//	@Summary		Delete the account
//	@Description	Requires the current password.
//	@Tags			Account
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		usersdk.DeleteAccountRequest	true	"Current password"
//	@Success		200		{object}	usersdk.Envelope
//	@Failure		401		{object}	usersdk.Envelope	"session_invalid or wrong_password"
//	@Router			/v1/users/me [delete].
func (h *MeHandler[X]) HandleDelete(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext[X](r.Context())
	if !ok {
		writeError(w, r, domain.ErrSessionInvalid)
		return
	}

	var body usersdk.DeleteAccountRequest
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		writeBadBody(w)
		return
	}

	err := h.Service.DeleteAccount(r.Context(), caller, body.Password)
	observe(h.Metrics, "delete_account", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, usersdk.NotificationSuccess, "Your account has been deleted.")
}

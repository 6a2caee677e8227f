package http

import (
	"net/http"

	"github.com/aussiebroadwan/userspace/internal/userspace/domain"
	"github.com/aussiebroadwan/userspace/internal/userspace/service"
	"github.com/aussiebroadwan/userspace/pkg/httpx"
	"github.com/aussiebroadwan/userspace/pkg/usersdk"
)

// userResponse mirrors usersdk.UserResponse with the typed account.
type userResponse[X any] struct {
	Notifications []usersdk.Notification  `json:"notifications"`
	User          domain.PublicAccount[X] `json:"user"`
}

// authResponse mirrors usersdk.AuthResponse with the typed account.
type authResponse[X any] struct {
	Notifications []usersdk.Notification  `json:"notifications"`
	Token         string                  `json:"token"`
	User          domain.PublicAccount[X] `json:"user"`
}

type registerBody struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// RegisterHandler creates accounts.
type RegisterHandler[X any] struct {
	Service *service.CredentialService[X]
	Metrics Observer
}

// ServeHTTP godoc
//
//	@Summary		Register an account
//	@Description	Creates an unverified account and emails a confirmation link.
//	@Description	Fields other than the documented ones are stored as profile extras.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		usersdk.RegisterRequest	true	"Account details"
//	@Success		201		{object}	usersdk.UserResponse
//	@Failure		400		{object}	usersdk.Envelope	"validation_error"
//	@Failure		409		{object}	usersdk.Envelope	"duplicate_email or duplicate_username"
//	@Failure		429		{object}	usersdk.Envelope	"rate_limited"
//	@Router			/v1/users [post].
func (h *RegisterHandler[X]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	rest, err := decodeFlat(w, r, &body, "email", "username", "password", "confirm_password")
	if err != nil {
		writeBadBody(w)
		return
	}

	var zero X
	extras, err := mergeExtras(zero, rest)
	if err != nil {
		writeError(w, r, domain.ValidationError("Some profile fields have the wrong type."))
		return
	}

	account, err := h.Service.Register(r.Context(), service.Registration[X]{
		Email:           body.Email,
		Username:        body.Username,
		Password:        body.Password,
		ConfirmPassword: body.ConfirmPassword,
		Extras:          extras,
	})
	observe(h.Metrics, "register", err)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, userResponse[X]{
		Notifications: notify(usersdk.NotificationSuccess,
			"Your account has been created. Check your inbox to confirm your email address."),
		User: account,
	})
}

// LoginHandler exchanges credentials for an identity token.
type LoginHandler[X any] struct {
	Service *service.CredentialService[X]
	Metrics Observer
}

// ServeHTTP godoc
//
//	@Summary		Log in
//	@Description	Authenticates with an email address or username and returns an identity token.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		usersdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	usersdk.AuthResponse
//	@Failure		401		{object}	usersdk.Envelope	"wrong_login or wrong_password"
//	@Failure		429		{object}	usersdk.Envelope	"rate_limited"
//	@Router			/v1/users/login [post].
func (h *LoginHandler[X]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body usersdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		writeBadBody(w)
		return
	}

	session, err := h.Service.Authenticate(r.Context(), body.Login, body.Password)
	observe(h.Metrics, "authenticate", err)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authResponse[X]{
		Notifications: notify(usersdk.NotificationSuccess, "You are now logged in."),
		Token:         session.Token,
		User:          session.Account,
	})
}

package http

import (
	"net/http"

	"github.com/aussiebroadwan/userspace/internal/userspace/service"
	"github.com/aussiebroadwan/userspace/pkg/httpx"
	"github.com/aussiebroadwan/userspace/pkg/usersdk"
)

// AvailabilityHandler checks whether an email address or username is free.
type AvailabilityHandler[X any] struct {
	Service *service.CredentialService[X]
	Metrics Observer
}

// ServeHTTP godoc
//
//	@Summary		Check availability
//	@Description	Only registered when availability_check is enabled, since it reveals registrations.
//	@Tags			Users
//	@Produce		json
//	@Param			email		query		string	false	"Email address"
//	@Param			username	query		string	false	"Username"
//	@Success		200			{object}	usersdk.AvailabilityResponse
//	@Failure		400			{object}	usersdk.Envelope	"validation_error"
//	@Router			/v1/users/available [get].
func (h *AvailabilityHandler[X]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	available, err := h.Service.CheckAvailability(r.Context(), service.Availability{
		Email:    q.Get("email"),
		Username: q.Get("username"),
	})
	observe(h.Metrics, "check_availability", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, usersdk.AvailabilityResponse{Available: available})
}

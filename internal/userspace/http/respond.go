package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/userspace/internal/userspace/domain"
	"github.com/aussiebroadwan/userspace/internal/userspace/service"
	"github.com/aussiebroadwan/userspace/pkg/httpx"
	"github.com/aussiebroadwan/userspace/pkg/slogx"
	"github.com/aussiebroadwan/userspace/pkg/usersdk"
)

const msgInternal = "Something went wrong, please try again later."

// Observer counts credential operations by outcome.
type Observer interface {
	Operation(name string, err error)
}

func observe(o Observer, op string, err error) {
	if o != nil {
		o.Operation(op, err)
	}
}

// statusFor maps an error kind to its HTTP status.
func statusFor(k domain.Kind) int {
	switch k {
	case domain.KindValidation, domain.KindInvalidToken:
		return http.StatusBadRequest
	case domain.KindDuplicateEmail, domain.KindDuplicateUsername, domain.KindAlreadyVerified:
		return http.StatusConflict
	case domain.KindAccountNotFound:
		return http.StatusNotFound
	case domain.KindWrongLogin, domain.KindWrongPassword, domain.KindSessionInvalid:
		return http.StatusUnauthorized
	case domain.KindRecoveryExpired:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// notify builds a single-entry notification list.
func notify(kind, message string) []usersdk.Notification {
	return []usersdk.Notification{{Type: kind, Message: message}}
}

// writeMessage writes a success envelope.
func writeMessage(w http.ResponseWriter, code int, kind, message string) {
	httpx.WriteJSON(w, code, usersdk.Envelope{Notifications: notify(kind, message)})
}

// writeError writes err as an error envelope. Errors outside the domain set
// are logged and reported generically.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := domain.AsError(err)
	if !ok {
		if errors.Is(err, service.ErrAvailabilityDisabled) {
			http.NotFound(w, r)
			return
		}
		slogx.FromContext(r.Context()).Error("request failed", slog.Any("error", err))
		httpx.WriteJSON(w, http.StatusInternalServerError, usersdk.Envelope{
			Code:          usersdk.CodeServerError,
			Notifications: notify(usersdk.NotificationError, msgInternal),
		})
		return
	}

	notes := make([]usersdk.Notification, 0, max(len(e.Details), 1))
	for _, d := range e.Details {
		notes = append(notes, usersdk.Notification{Type: usersdk.NotificationError, Message: d})
	}
	if len(notes) == 0 {
		notes = append(notes, usersdk.Notification{Type: usersdk.NotificationError, Message: e.Message})
	}

	if e.Kind == domain.KindSessionInvalid {
		httpx.SetBearerChallenge(w, e.Message)
	}
	httpx.WriteJSON(w, statusFor(e.Kind), usersdk.Envelope{Code: e.Kind.String(), Notifications: notes})
}

// writeBadBody reports an unreadable request body.
func writeBadBody(w http.ResponseWriter) {
	httpx.WriteJSON(w, http.StatusBadRequest, usersdk.Envelope{
		Code:          usersdk.CodeValidation,
		Notifications: notify(usersdk.NotificationError, "The request body is not valid JSON."),
	})
}

package usersdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes written by the service.
const (
	CodeValidation        = "validation_error"
	CodeDuplicateEmail    = "duplicate_email"
	CodeDuplicateUsername = "duplicate_username"
	CodeAccountNotFound   = "account_not_found"
	CodeWrongLogin        = "wrong_login"
	CodeWrongPassword     = "wrong_password"
	CodeInvalidToken      = "invalid_token"
	CodeRecoveryExpired   = "recovery_expired"
	CodeSessionInvalid    = "session_invalid"
	CodeAlreadyVerified   = "already_verified"
	CodeRateLimited       = "rate_limited"
	CodeServerError       = "server_error"
)

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode    int
	Code          string
	Notifications []Notification
}

func (e *APIError) Error() string {
	msgs := make([]string, 0, len(e.Notifications))
	for _, n := range e.Notifications {
		msgs = append(msgs, n.Message)
	}
	if len(msgs) == 0 {
		return fmt.Sprintf("%s (HTTP %d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("%s (HTTP %d): %s", e.Code, e.StatusCode, strings.Join(msgs, " "))
}

// IsCode reports whether err is an *APIError carrying code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// parseErrorResponse turns an error body into an *APIError. Bodies that are
// not envelopes (a proxy error page, say) fall back to the status text.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var env Envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Code != "" {
		return &APIError{StatusCode: resp.StatusCode, Code: env.Code, Notifications: env.Notifications}
	}

	code := CodeServerError
	if resp.StatusCode == http.StatusTooManyRequests {
		code = CodeRateLimited
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       code,
		Notifications: []Notification{{
			Type:    NotificationError,
			Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}},
	}
}

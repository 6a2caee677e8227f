package domain

import (
	"errors"
	"strings"
)

// Kind classifies business errors. The set is closed; anything that is not an
// *Error is an internal failure.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindDuplicateEmail
	KindDuplicateUsername
	KindAccountNotFound
	KindWrongLogin
	KindWrongPassword
	KindInvalidToken
	KindRecoveryExpired
	KindSessionInvalid
	KindAlreadyVerified
)

var kindNames = map[Kind]string{
	KindValidation:        "validation_error",
	KindDuplicateEmail:    "duplicate_email",
	KindDuplicateUsername: "duplicate_username",
	KindAccountNotFound:   "account_not_found",
	KindWrongLogin:        "wrong_login",
	KindWrongPassword:     "wrong_password",
	KindInvalidToken:      "invalid_token",
	KindRecoveryExpired:   "recovery_expired",
	KindSessionInvalid:    "session_invalid",
	KindAlreadyVerified:   "already_verified",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error is the single tagged error type returned by the credential core.
// Message is safe to show to end users. Details lists individual validation
// failures.
type Error struct {
	Kind    Kind
	Message string
	Details []string
}

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return e.Kind.String() + ": " + e.Message
	}
	return e.Kind.String() + ": " + strings.Join(e.Details, "; ")
}

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is regardless of message or details.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrValidation        = &Error{Kind: KindValidation, Message: "The submitted data is invalid."}
	ErrDuplicateEmail    = &Error{Kind: KindDuplicateEmail, Message: "This email address is already in use."}
	ErrDuplicateUsername = &Error{Kind: KindDuplicateUsername, Message: "This username is already taken."}
	ErrAccountNotFound   = &Error{Kind: KindAccountNotFound, Message: "This account does not exist."}
	ErrWrongLogin        = &Error{Kind: KindWrongLogin, Message: "No account matches this login."}
	ErrWrongPassword     = &Error{Kind: KindWrongPassword, Message: "Wrong password."}
	ErrInvalidToken      = &Error{Kind: KindInvalidToken, Message: "This link is invalid or has already been used."}
	ErrRecoveryExpired   = &Error{Kind: KindRecoveryExpired, Message: "This link has expired, please ask a new one."}
	ErrSessionInvalid    = &Error{Kind: KindSessionInvalid, Message: "Your session is invalid, please log in again."}
	ErrAlreadyVerified   = &Error{Kind: KindAlreadyVerified, Message: "Your email address is already confirmed."}
)

// ValidationError builds a validation error listing each failed rule.
func ValidationError(details ...string) *Error {
	return &Error{Kind: KindValidation, Message: ErrValidation.Message, Details: details}
}

// AsError unwraps err to a *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Package validate checks the shape of account fields before they reach the
// store.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Field limits.
const (
	EmailMaxLength    = 256
	UsernameMinLength = 4
	UsernameMaxLength = 128
	PasswordMinLength = 8
)

var usernameChars = regexp.MustCompile(`^[A-Za-z0-9\-_.]+$`)

var (
	emailRules    = fmt.Sprintf("required,max=%d,email", EmailMaxLength)
	usernameRules = fmt.Sprintf("required,min=%d,max=%d,username_chars", UsernameMinLength, UsernameMaxLength)
	passwordRules = fmt.Sprintf("required,min=%d", PasswordMinLength)
)

// Validator checks individual account fields. Each method returns a list of
// user-facing messages, empty when the value is acceptable.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator with the account rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails for an empty tag or a nil func.
	_ = v.RegisterValidation("username_chars", func(fl validator.FieldLevel) bool {
		return usernameChars.MatchString(fl.Field().String())
	})
	return &Validator{v: v}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Email validates an already normalized email address.
func (v *Validator) Email(email string) []string {
	return describe("Email", v.v.Var(email, emailRules))
}

// Username validates a username.
func (v *Validator) Username(username string) []string {
	return describe("Username", v.v.Var(username, usernameRules))
}

// Password validates a new password and its confirmation.
func (v *Validator) Password(password, confirm string) []string {
	msgs := describe("Password", v.v.Var(password, passwordRules))
	switch {
	case confirm == "":
		msgs = append(msgs, "Please confirm your new password.")
	case v.v.VarWithValue(confirm, password, "eqfield") != nil:
		msgs = append(msgs, "Passwords don't match.")
	}
	return msgs
}

func describe(field string, err error) []string {
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{field + " is invalid."}
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required.")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters long.", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters long.", field, fe.Param()))
		case "email":
			msgs = append(msgs, field+" is not a valid email address.")
		case "username_chars":
			msgs = append(msgs, field+" may only contain letters, digits, '-', '_' and '.'.")
		default:
			msgs = append(msgs, field+" is invalid.")
		}
	}
	return msgs
}

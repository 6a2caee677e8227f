package store

// Field names an account attribute that can be used as a lookup key.
type Field int

const (
	FieldID Field = iota + 1
	FieldEmail
	FieldUsername
	FieldVerificationToken
	FieldRecoveryToken
)

func (f Field) String() string {
	switch f {
	case FieldID:
		return "id"
	case FieldEmail:
		return "email"
	case FieldUsername:
		return "username"
	case FieldVerificationToken:
		return "verification_token"
	case FieldRecoveryToken:
		return "recovery_token"
	default:
		return "unknown"
	}
}

// Filter selects at most one account by an exact match on a unique field.
// A filter with an empty value never matches.
type Filter struct {
	Field Field
	Value string
}

func ByID(id string) Filter             { return Filter{Field: FieldID, Value: id} }
func ByEmail(email string) Filter       { return Filter{Field: FieldEmail, Value: email} }
func ByUsername(username string) Filter { return Filter{Field: FieldUsername, Value: username} }

func ByVerificationToken(token string) Filter {
	return Filter{Field: FieldVerificationToken, Value: token}
}

func ByRecoveryToken(token string) Filter {
	return Filter{Field: FieldRecoveryToken, Value: token}
}

// Empty reports whether the filter can never match.
func (f Filter) Empty() bool { return f.Value == "" }

func (f Filter) String() string { return f.Field.String() }

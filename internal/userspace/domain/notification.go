package domain

// Email templates known to the notification layer.
const (
	TemplateVerifyEmail     = "verify-email"
	TemplateRecoverPassword = "recover-password"
)

// Notification asks the notification layer to deliver an email. Delivery is
// fire and forget from the caller's point of view.
type Notification struct {
	RecipientEmail string            `json:"recipient_email"`
	TemplateRef    string            `json:"template_ref"`
	Subject        string            `json:"subject"`
	Variables      map[string]string `json:"variables,omitempty"`
}

package mailer

import "net/smtp"

// SetSendFunc replaces the SMTP transport of s.
func SetSendFunc(s *SMTPSender, fn func(addr string, a smtp.Auth, from string, to []string, msg []byte) error) {
	s.send = fn
}

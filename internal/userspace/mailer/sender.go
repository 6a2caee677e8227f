package mailer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

// Message is a rendered email.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// SMTPConfig configures SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPSender delivers mail through an SMTP relay. PLAIN authentication is
// used when a username is configured.
type SMTPSender struct {
	cfg SMTPConfig

	// send is smtp.SendMail, replaceable in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, send: smtp.SendMail}
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.send(addr, auth, m.From, []string{m.To}, buildMIME(m, time.Now())); err != nil {
		return fmt.Errorf("mailer: smtp send to %s: %w", addr, err)
	}
	return nil
}

func buildMIME(m Message, now time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(m.HTML)
	return b.Bytes()
}

// LogSender writes messages to the log instead of sending them. Meant for
// development setups without an SMTP relay.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, m Message) error {
	s.Logger.Info("email not sent, logging instead",
		slog.String("to", m.To),
		slog.String("subject", m.Subject),
		slog.String("body", m.HTML),
	)
	return nil
}

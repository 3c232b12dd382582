// Package mail sends transactional email over SMTP.
package mail

import (
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
)

// SMTPConfig holds SMTP server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

// Sender delivers account-lifecycle emails.
type Sender struct {
	cfg SMTPConfig
}

// NewSender constructs a Sender.
func NewSender(cfg SMTPConfig) *Sender {
	return &Sender{cfg: cfg}
}

// SendVerification delivers an email-verification link.
func (s *Sender) SendVerification(to, link string) error {
	body := fmt.Sprintf(
		`<p>Welcome! Please confirm your email address by clicking the link below.</p>
<p><a href="%s">Verify your email</a></p>
<p>If you did not create an account, you can ignore this message.</p>`, link)
	return s.send(to, "Verify your email address", body)
}

// SendPasswordReset delivers a password-reset link.
func (s *Sender) SendPasswordReset(to, link string) error {
	body := fmt.Sprintf(
		`<p>We received a request to reset your password.</p>
<p><a href="%s">Choose a new password</a></p>
<p>If you did not request this, you can ignore this message.</p>`, link)
	return s.send(to, "Reset your password", body)
}

// SendEmailChange delivers a change-of-address confirmation link to the
// proposed new address.
func (s *Sender) SendEmailChange(to, link string) error {
	body := fmt.Sprintf(
		`<p>Please confirm that this is your new email address.</p>
<p><a href="%s">Confirm email change</a></p>
<p>Your account keeps its current address until you confirm.</p>`, link)
	return s.send(to, "Confirm your new email address", body)
}

func (s *Sender) send(to, subject, body string) error {
	e := email.NewEmail()
	e.From = s.cfg.From
	e.To = []string{to}
	e.Subject = subject
	e.HTML = []byte(body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	return e.Send(addr, auth)
}

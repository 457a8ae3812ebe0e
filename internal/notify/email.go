// Package notify delivers one-time codes to users.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"

	"clinic-management-api/internal/config"
	"clinic-management-api/internal/model"
)

var ErrNotConfigured = errors.New("smtp not configured")

// SMTPSender mails codes through an SMTP relay.
type SMTPSender struct {
	cfg config.SMTPConfig
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) SendCode(ctx context.Context, to, code string, purpose model.Purpose, ttl time.Duration) error {
	if !s.cfg.Configured() {
		return ErrNotConfigured
	}
	if strings.TrimSpace(to) == "" {
		return errors.New("empty recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", Subject(purpose))
	m.SetBody("text/html", Body(code, purpose, ttl))

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.User, s.cfg.Pass)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	log.Info().Str("to", to).Str("purpose", string(purpose)).Msg("verification email sent")
	return nil
}

func Subject(purpose model.Purpose) string {
	if purpose == model.PurposePasswordReset {
		return "[Clinic] Password reset code"
	}
	return "[Clinic] Verify your email"
}

func Body(code string, purpose model.Purpose, ttl time.Duration) string {
	heading := "Email verification"
	if purpose == model.PurposePasswordReset {
		heading = "Password reset"
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>%s</h2>
    <p>Your code is:</p>
    <div style="font-size: 28px; font-weight: bold; letter-spacing: 3px;">%s</div>
    <p>The code expires in %d minutes. If you did not ask for it, ignore this email.</p>
  </div>
</body>
</html>`, heading, code, int(ttl.Minutes()))
}

// LogSender writes codes to the log instead of mailing them. Development only.
type LogSender struct{}

func (LogSender) SendCode(_ context.Context, to, code string, purpose model.Purpose, ttl time.Duration) error {
	log.Warn().
		Str("to", to).
		Str("purpose", string(purpose)).
		Str("code", code).
		Dur("ttl", ttl).
		Msg("smtp not configured, verification code logged")
	return nil
}

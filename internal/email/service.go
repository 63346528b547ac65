package email

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/medisync/clinic-api/internal/config"
)

type Service interface {
	SendPasswordReset(ctx context.Context, to string, token string) error
	SendPasswordChanged(ctx context.Context, to string) error
	SendCustom(ctx context.Context, to string, subject string, content string) error
}

type service struct {
	dialer *gomail.Dialer
	from   string
	logger *zerolog.Logger
}

func NewService(cfg config.SMTPConfig, logger *zerolog.Logger) Service {
	return &service{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: logger,
	}
}

func (s *service) SendPasswordReset(ctx context.Context, to string, token string) error {
	content := fmt.Sprintf(
		"A password reset was requested for your account.\n\n"+
			"Use the token below to set a new password. It expires in one hour "+
			"and can only be used once.\n\n%s\n\n"+
			"If you did not request this, you can ignore this message.", token)
	return s.send(ctx, to, "Password reset request", content)
}

func (s *service) SendPasswordChanged(ctx context.Context, to string) error {
	content := "The password on your account was just changed.\n\n" +
		"If this was not you, contact your administrator immediately."
	return s.send(ctx, to, "Your password was changed", content)
}

func (s *service) SendCustom(ctx context.Context, to string, subject string, content string) error {
	return s.send(ctx, to, subject, content)
}

func (s *service) send(ctx context.Context, to, subject, content string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", content)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Error().Err(err).Str("to", to).Str("subject", subject).Msg("failed to send email")
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

package notification

import (
	"context"

	"github.com/rs/zerolog"
)

// LogEmailSender writes outbound email to the structured log. It is the
// default sender until an SMTP gateway is configured.
type LogEmailSender struct {
	Logger zerolog.Logger
}

// SendEmail logs the message instead of delivering it.
func (s *LogEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.Logger.Info().
		Str("channel", "email").
		Str("to", to).
		Str("subject", subject).
		Int("body_bytes", len(body)).
		Msg("notification dispatched")
	return nil
}

// LogSMSSender writes outbound SMS to the structured log.
type LogSMSSender struct {
	Logger zerolog.Logger
}

// SendSMS logs the message instead of delivering it.
func (s *LogSMSSender) SendSMS(_ context.Context, to, body string) error {
	s.Logger.Info().
		Str("channel", "sms").
		Str("to", to).
		Int("body_bytes", len(body)).
		Msg("notification dispatched")
	return nil
}

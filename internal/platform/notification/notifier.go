package notification

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/onconav/onconav/internal/domain/alert"
)

// CriticalAlertNotifier emails the on-call care team when a critical alert is
// raised. It implements the alert service's notifier hook.
type CriticalAlertNotifier struct {
	manager    *NotificationManager
	recipients []string
	logger     zerolog.Logger
}

func NewCriticalAlertNotifier(manager *NotificationManager, recipients []string, logger zerolog.Logger) *CriticalAlertNotifier {
	return &CriticalAlertNotifier{
		manager:    manager,
		recipients: recipients,
		logger:     logger.With().Str("component", "notifier").Logger(),
	}
}

func (n *CriticalAlertNotifier) NotifyCriticalAlert(ctx context.Context, a *alert.Alert) error {
	if len(n.recipients) == 0 {
		n.logger.Debug().Str("alert_id", a.ID.String()).Msg("no recipients configured, skipping notification")
		return nil
	}
	data := map[string]string{
		"title":   a.Title,
		"message": a.Message,
	}
	var lastErr error
	for _, recipient := range n.recipients {
		if _, err := n.manager.SendFromTemplate(ctx, "critical-alert", data, recipient); err != nil {
			n.logger.Error().Err(err).Str("recipient", recipient).Str("alert_id", a.ID.String()).
				Msg("critical alert notification failed")
			lastErr = err
		}
	}
	return lastErr
}

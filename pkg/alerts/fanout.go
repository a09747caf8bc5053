package alerts

import (
	"context"
	"errors"
	"fmt"
)

var errFailedToSendAlerts = errors.New("failed to send alerts")

// Fanout delivers an alert to every configured channel. Channels that
// are disabled or in cooldown do not count as failures; if all other
// channels succeed the fanout succeeds.
type Fanout []AlertService

var _ AlertService = (Fanout)(nil)

func (f Fanout) Alert(ctx context.Context, alert *WebhookAlert) error {
	var (
		errs      []error
		delivered bool
		cooled    bool
	)

	for _, svc := range f {
		err := svc.Alert(ctx, alert)

		switch {
		case err == nil:
			delivered = true
		case errors.Is(err, ErrWebhookCooldown):
			cooled = true
		case errors.Is(err, ErrWebhookDisabled):
			// skip silently
		default:
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", errFailedToSendAlerts, errs)
	}

	if !delivered && cooled {
		return ErrWebhookCooldown
	}

	return nil
}

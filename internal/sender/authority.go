package sender

import (
	"context"
	"fmt"

	"github.com/beaconops/emergency-dispatch/internal/models"
)

// AuthoritySender notifies emergency services. Unlike the recipient-list
// channels it is fire-and-forget: the outcome confirms that the dispatch
// request was placed on the configured emergency number, not that units
// arrived, so a delivery here always succeeds once invoked.
type AuthoritySender struct {
	// EmergencyNumber overrides the number derived at alert construction
	// when set. Every authority kind routes to this single number.
	EmergencyNumber string
}

func NewAuthoritySender(number string) *AuthoritySender {
	return &AuthoritySender{EmergencyNumber: number}
}

func (s *AuthoritySender) Channel() models.ChannelKind { return models.ChannelAuthority }

func (s *AuthoritySender) Deliver(ctx context.Context, alert *models.Alert) Outcome {
	payload, ok := alert.Payload.(models.AuthorityPayload)
	if !ok {
		return fail(alert, fmt.Sprintf("authority sender got %s payload", alert.Payload.Kind()))
	}
	if out, done := cancelled(ctx, alert); done {
		return out
	}

	number := payload.EmergencyNumber
	if s.EmergencyNumber != "" {
		number = s.EmergencyNumber
	}

	alert.Advance(models.StatusDispatched)
	return Outcome{
		Success:   true,
		Delivered: 1,
		Detail: fmt.Sprintf("%s services dispatched via %s to %s (severity %d/5)",
			payload.Authority, number, alert.Location.Address, payload.Severity),
	}
}

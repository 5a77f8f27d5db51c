package sender

import (
	"context"
	"fmt"

	"github.com/beaconops/emergency-dispatch/internal/models"
)

// PushSender delivers to every device token in the alert's payload. Push is
// the one recipient-list channel whose terminal state is delivered rather
// than sent, since the platform acks receipt on-device.
type PushSender struct {
	FailOn FailFunc
}

func NewPushSender() *PushSender { return &PushSender{} }

func (s *PushSender) Channel() models.ChannelKind { return models.ChannelPush }

func (s *PushSender) Deliver(ctx context.Context, alert *models.Alert) Outcome {
	payload, ok := alert.Payload.(models.PushPayload)
	if !ok {
		return fail(alert, fmt.Sprintf("push sender got %s payload", alert.Payload.Kind()))
	}

	delivered := 0
	for _, token := range payload.DeviceTokens {
		if out, done := cancelled(ctx, alert); done {
			out.Delivered = delivered
			return out
		}
		if s.FailOn != nil {
			if err := s.FailOn(token); err != nil {
				out := fail(alert, fmt.Sprintf("push to %s failed: %v", truncateToken(token), err))
				out.Delivered = delivered
				return out
			}
		}
		delivered++
	}

	alert.Advance(models.StatusDelivered)
	return Outcome{
		Success:   true,
		Delivered: delivered,
		Detail:    fmt.Sprintf("Push %q delivered to %d devices", payload.Title, delivered),
	}
}

func truncateToken(token string) string {
	if len(token) <= 10 {
		return token
	}
	return token[:10] + "..."
}

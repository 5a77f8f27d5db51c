package sender

import (
	"context"
	"fmt"

	"github.com/beaconops/emergency-dispatch/internal/models"
)

// SMSSender delivers to every phone number in the alert's payload. The real
// gateway is an external collaborator; FailOn stands in for its per-recipient
// failure modes.
type SMSSender struct {
	FailOn FailFunc
}

func NewSMSSender() *SMSSender { return &SMSSender{} }

func (s *SMSSender) Channel() models.ChannelKind { return models.ChannelSMS }

func (s *SMSSender) Deliver(ctx context.Context, alert *models.Alert) Outcome {
	payload, ok := alert.Payload.(models.SMSPayload)
	if !ok {
		return fail(alert, fmt.Sprintf("sms sender got %s payload", alert.Payload.Kind()))
	}

	delivered := 0
	for _, phone := range payload.PhoneNumbers {
		if out, done := cancelled(ctx, alert); done {
			out.Delivered = delivered
			return out
		}
		if s.FailOn != nil {
			if err := s.FailOn(phone); err != nil {
				out := fail(alert, fmt.Sprintf("sms to %s failed: %v", phone, err))
				out.Delivered = delivered
				return out
			}
		}
		delivered++
	}

	// An empty recipient list is a successful no-op.
	alert.Advance(models.StatusSent)
	return Outcome{
		Success:   true,
		Delivered: delivered,
		Detail:    fmt.Sprintf("SMS sent to %d contacts", delivered),
	}
}

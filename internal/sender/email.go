package sender

import (
	"context"
	"fmt"

	"github.com/beaconops/emergency-dispatch/internal/models"
)

// EmailSender delivers to every address in the alert's payload, carrying the
// payload's subject line. FailOn simulates per-recipient SMTP failures.
type EmailSender struct {
	FailOn FailFunc
}

func NewEmailSender() *EmailSender { return &EmailSender{} }

func (s *EmailSender) Channel() models.ChannelKind { return models.ChannelEmail }

func (s *EmailSender) Deliver(ctx context.Context, alert *models.Alert) Outcome {
	payload, ok := alert.Payload.(models.EmailPayload)
	if !ok {
		return fail(alert, fmt.Sprintf("email sender got %s payload", alert.Payload.Kind()))
	}

	delivered := 0
	for _, addr := range payload.Addresses {
		if out, done := cancelled(ctx, alert); done {
			out.Delivered = delivered
			return out
		}
		if s.FailOn != nil {
			if err := s.FailOn(addr); err != nil {
				out := fail(alert, fmt.Sprintf("email to %s failed: %v", addr, err))
				out.Delivered = delivered
				return out
			}
		}
		delivered++
	}

	alert.Advance(models.StatusSent)
	return Outcome{
		Success:   true,
		Delivered: delivered,
		Detail:    fmt.Sprintf("Email %q sent to %d recipients", payload.Subject, delivered),
	}
}

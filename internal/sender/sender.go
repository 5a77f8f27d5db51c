package sender

import (
	"context"

	"github.com/beaconops/emergency-dispatch/internal/models"
)

// Outcome is the result of one delivery attempt. Delivery failure is data,
// not an error: a failed send comes back with Success=false and the alert
// moved to failed.
type Outcome struct {
	Success   bool   `json:"success"`
	Delivered int    `json:"delivered"`
	Detail    string `json:"detail"`
}

// Sender performs delivery for one channel kind. Deliver may block on
// (simulated) transport I/O and must honor ctx cancellation by resolving to
// a failed outcome. On completion the sender advances the alert's status to
// the channel's terminal state, or to failed.
type Sender interface {
	Channel() models.ChannelKind
	Deliver(ctx context.Context, alert *models.Alert) Outcome
}

// FailFunc lets tests and simulations inject a per-recipient failure. A nil
// FailFunc means every send succeeds.
type FailFunc func(recipient string) error

func fail(alert *models.Alert, detail string) Outcome {
	alert.Advance(models.StatusFailed)
	return Outcome{Success: false, Detail: detail}
}

func cancelled(ctx context.Context, alert *models.Alert) (Outcome, bool) {
	select {
	case <-ctx.Done():
		return fail(alert, "delivery cancelled: "+ctx.Err().Error()), true
	default:
		return Outcome{}, false
	}
}

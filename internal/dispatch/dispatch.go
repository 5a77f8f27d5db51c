package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/beaconops/emergency-dispatch/internal/audit"
	"github.com/beaconops/emergency-dispatch/internal/models"
	"github.com/beaconops/emergency-dispatch/internal/sender"
)

// ErrUnknownChannel is reported for an alert whose channel kind has no
// registered sender. It isolates to that alert; the rest of the batch still
// dispatches.
var ErrUnknownChannel = errors.New("no sender registered for channel")

// Result pairs an alert with its delivery outcome. AuditErr carries an audit
// store failure separately from the delivery result: a dead log never hides
// whether the message itself went out.
type Result struct {
	Alert    *models.Alert  `json:"alert"`
	Outcome  sender.Outcome `json:"outcome"`
	Err      error          `json:"-"`
	ErrText  string         `json:"error,omitempty"`
	AuditErr error          `json:"-"`
}

// Dispatcher fans a batch of alerts out to the senders registered for their
// channel kinds and records every outcome in the audit log.
type Dispatcher struct {
	senders  map[models.ChannelKind]sender.Sender
	auditLog *audit.Log
	timeout  time.Duration
}

// New builds a dispatcher writing outcomes to auditLog. A positive timeout
// bounds each delivery; a timed-out delivery resolves to a failed outcome,
// never to a still-pending alert.
func New(auditLog *audit.Log, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		senders:  make(map[models.ChannelKind]sender.Sender),
		auditLog: auditLog,
		timeout:  timeout,
	}
}

// Register installs the sender for its channel kind, replacing any previous
// registration. Call during wiring, before dispatching.
func (d *Dispatcher) Register(s sender.Sender) {
	d.senders[s.Channel()] = s
}

// DispatchAll delivers every alert in the batch, one goroutine per alert,
// and waits for all of them. Results come back in input order regardless of
// completion order. Alerts are independent: one failure never blocks or
// rolls back the others. Re-dispatching an alert is allowed; its ID is
// untouched and its status advances again.
func (d *Dispatcher) DispatchAll(ctx context.Context, alerts []*models.Alert) []Result {
	results := make([]Result, len(alerts))

	var wg sync.WaitGroup
	for i, a := range alerts {
		wg.Add(1)
		go func(i int, a *models.Alert) {
			defer wg.Done()
			results[i] = d.dispatchOne(ctx, a)
		}(i, a)
	}
	wg.Wait()

	return results
}

func (d *Dispatcher) dispatchOne(ctx context.Context, a *models.Alert) Result {
	res := Result{Alert: a}

	s, ok := d.senders[a.Channel]
	if !ok {
		a.Advance(models.StatusFailed)
		res.Err = fmt.Errorf("%w: %s", ErrUnknownChannel, a.Channel)
		res.ErrText = res.Err.Error()
		res.Outcome = sender.Outcome{Success: false, Detail: res.Err.Error()}
	} else {
		deliverCtx := ctx
		if d.timeout > 0 {
			var cancel context.CancelFunc
			deliverCtx, cancel = context.WithTimeout(ctx, d.timeout)
			defer cancel()
		}
		res.Outcome = s.Deliver(deliverCtx, a)
	}

	if d.auditLog != nil {
		if err := d.auditLog.Append(audit.NewRecord(a)); err != nil {
			res.AuditErr = err
			slog.Warn("audit append failed", "alert_id", a.ID, "error", err)
		}
	}
	return res
}

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/beaconops/emergency-dispatch/internal/audit"
	"github.com/beaconops/emergency-dispatch/internal/models"
	"github.com/beaconops/emergency-dispatch/internal/sender"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLocation() models.Location {
	return models.NewLocation(40.7128, -74.0060, "Times Square, New York")
}

func testAuditLog(t *testing.T) *audit.Log {
	t.Helper()
	return audit.New(filepath.Join(t.TempDir(), "emergency_logs.txt"))
}

// slowSMSSender delays each delivery so completion order differs from
// submission order.
type slowSMSSender struct {
	inner *sender.SMSSender
	delay func(alert *models.Alert) time.Duration
}

func (s *slowSMSSender) Channel() models.ChannelKind { return models.ChannelSMS }

func (s *slowSMSSender) Deliver(ctx context.Context, alert *models.Alert) sender.Outcome {
	time.Sleep(s.delay(alert))
	return s.inner.Deliver(ctx, alert)
}

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d := New(testAuditLog(t), 0)
	d.Register(sender.NewSMSSender())
	d.Register(sender.NewEmailSender())
	d.Register(sender.NewPushSender())
	d.Register(sender.NewAuthoritySender("911"))
	return d
}

func TestDispatchAll_PreservesInputOrder(t *testing.T) {
	d := New(testAuditLog(t), 0)
	d.Register(&slowSMSSender{
		inner: sender.NewSMSSender(),
		delay: func(a *models.Alert) time.Duration {
			// First-submitted alerts finish last
			if a.Message == "first" {
				return 50 * time.Millisecond
			}
			return 0
		},
	})

	var alerts []*models.Alert
	for _, msg := range []string{"first", "second", "third", "fourth"} {
		a, err := models.NewSMSAlert("user1", msg, testLocation(), []string{"+1"})
		if err != nil {
			t.Fatalf("NewSMSAlert failed: %v", err)
		}
		alerts = append(alerts, a)
	}

	results := d.DispatchAll(context.Background(), alerts)

	if len(results) != len(alerts) {
		t.Fatalf("expected %d results, got %d", len(alerts), len(results))
	}
	for i, r := range results {
		if r.Alert != alerts[i] {
			t.Errorf("result %d out of order: got alert %s", i, r.Alert.ID)
		}
		if !r.Outcome.Success {
			t.Errorf("result %d: expected success, got %q", i, r.Outcome.Detail)
		}
	}
}

func TestDispatchAll_MixedChannels(t *testing.T) {
	d := newTestDispatcher(t)

	sms, _ := models.NewSMSAlert("user1", "help", testLocation(), []string{"+1", "+2"})
	email, _ := models.NewEmailAlert("user1", "help", testLocation(), []string{"a@b.com"}, "")
	push, _ := models.NewPushAlert("user1", "help", testLocation(), nil, "")
	auth, _ := models.NewAuthorityAlert("user1", "help", testLocation(), models.AuthorityPolice)

	results := d.DispatchAll(context.Background(), []*models.Alert{sms, email, push, auth})

	wantStatus := []models.AlertStatus{
		models.StatusSent,
		models.StatusSent,
		models.StatusDelivered,
		models.StatusDispatched,
	}
	for i, r := range results {
		if !r.Outcome.Success {
			t.Errorf("result %d: expected success, got %q", i, r.Outcome.Detail)
		}
		if r.Alert.Status != wantStatus[i] {
			t.Errorf("result %d: expected status %s, got %s", i, wantStatus[i], r.Alert.Status)
		}
		if r.AuditErr != nil {
			t.Errorf("result %d: unexpected audit error %v", i, r.AuditErr)
		}
	}
}

func TestDispatchAll_UnknownChannelIsolated(t *testing.T) {
	d := New(testAuditLog(t), 0)
	d.Register(sender.NewSMSSender())
	// No push sender registered

	sms, _ := models.NewSMSAlert("user1", "help", testLocation(), []string{"+1"})
	push, _ := models.NewPushAlert("user1", "help", testLocation(), []string{"tok1"}, "")

	results := d.DispatchAll(context.Background(), []*models.Alert{sms, push})

	if !results[0].Outcome.Success {
		t.Errorf("registered channel should still succeed, got %q", results[0].Outcome.Detail)
	}
	if results[1].Outcome.Success {
		t.Error("unregistered channel should fail")
	}
	if !errors.Is(results[1].Err, ErrUnknownChannel) {
		t.Errorf("expected ErrUnknownChannel, got %v", results[1].Err)
	}
	if results[1].Alert.Status != models.StatusFailed {
		t.Errorf("expected status failed, got %s", results[1].Alert.Status)
	}
}

func TestDispatchAll_AuditFailureDoesNotHideOutcome(t *testing.T) {
	// Point the audit store into a directory that does not exist.
	unwritable := audit.New(filepath.Join(t.TempDir(), "missing", "log.txt"))
	d := New(unwritable, 0)
	d.Register(sender.NewSMSSender())

	a, _ := models.NewSMSAlert("user1", "help", testLocation(), []string{"+1"})
	results := d.DispatchAll(context.Background(), []*models.Alert{a})

	if !results[0].Outcome.Success {
		t.Errorf("delivery outcome must still be returned, got %q", results[0].Outcome.Detail)
	}
	if results[0].AuditErr == nil {
		t.Error("expected a separate audit error")
	}
	if a.Status != models.StatusSent {
		t.Errorf("expected status sent, got %s", a.Status)
	}
}

func TestDispatchAll_WritesAuditRecords(t *testing.T) {
	log := testAuditLog(t)
	d := New(log, 0)
	d.Register(sender.NewSMSSender())
	d.Register(sender.NewAuthoritySender("911"))

	sms, _ := models.NewSMSAlert("user1", "help", testLocation(), []string{"+1"})
	auth, _ := models.NewAuthorityAlert("user1", "help", testLocation(), models.AuthorityFire)

	d.DispatchAll(context.Background(), []*models.Alert{sms, auth})

	lines, err := log.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	records, err := audit.ParseRecords(lines)
	if err != nil {
		t.Fatalf("ParseRecords failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 audit records, got %d", len(records))
	}
	seen := map[string]models.AlertStatus{}
	for _, r := range records {
		seen[r.AlertID] = r.Status
	}
	if seen[sms.ID] != models.StatusSent {
		t.Errorf("expected sms record with status sent, got %s", seen[sms.ID])
	}
	if seen[auth.ID] != models.StatusDispatched {
		t.Errorf("expected authority record with status dispatched, got %s", seen[auth.ID])
	}
}

func TestDispatchAll_RedispatchKeepsID(t *testing.T) {
	d := newTestDispatcher(t)

	a, _ := models.NewSMSAlert("user1", "help", testLocation(), []string{"+1"})
	id := a.ID

	d.DispatchAll(context.Background(), []*models.Alert{a})
	results := d.DispatchAll(context.Background(), []*models.Alert{a})

	if a.ID != id {
		t.Errorf("re-dispatch mutated id: %s != %s", a.ID, id)
	}
	if !results[0].Outcome.Success {
		t.Errorf("re-dispatch should succeed, got %q", results[0].Outcome.Detail)
	}
	if a.Status != models.StatusSent {
		t.Errorf("expected status sent after re-dispatch, got %s", a.Status)
	}
}

func TestDispatchAll_TimeoutResolvesToFailed(t *testing.T) {
	d := New(testAuditLog(t), 10*time.Millisecond)
	d.Register(&slowSMSSender{
		inner: sender.NewSMSSender(),
		delay: func(*models.Alert) time.Duration { return 50 * time.Millisecond },
	})

	a, _ := models.NewSMSAlert("user1", "help", testLocation(), []string{"+1"})
	results := d.DispatchAll(context.Background(), []*models.Alert{a})

	if results[0].Outcome.Success {
		t.Error("expected timed-out delivery to fail")
	}
	if a.Status != models.StatusFailed {
		t.Errorf("expected status failed, got %s", a.Status)
	}
}

func TestDispatchAll_LargeBatchOrder(t *testing.T) {
	d := newTestDispatcher(t)

	const n = 64
	alerts := make([]*models.Alert, n)
	for i := range alerts {
		a, err := models.NewSMSAlert(fmt.Sprintf("user%d", i), "help", testLocation(), []string{"+1"})
		if err != nil {
			t.Fatalf("NewSMSAlert failed: %v", err)
		}
		alerts[i] = a
	}

	results := d.DispatchAll(context.Background(), alerts)

	if len(results) != n {
		t.Fatalf("expected %d results, got %d", n, len(results))
	}
	for i, r := range results {
		if r.Alert != alerts[i] {
			t.Fatalf("result %d out of order", i)
		}
	}
}

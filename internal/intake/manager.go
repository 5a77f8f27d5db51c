package intake

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/beaconops/emergency-dispatch/internal/config"
	"github.com/beaconops/emergency-dispatch/internal/dispatch"
	"github.com/beaconops/emergency-dispatch/internal/feed"
	"github.com/beaconops/emergency-dispatch/internal/repository"
	"github.com/beaconops/emergency-dispatch/internal/worker"
)

// Manager accepts incidents from the HTTP and Kafka surfaces, fans them out
// into alerts, runs them through the dispatcher, and pushes the report to
// feed subscribers. Queued incidents drain through a worker pool.
type Manager struct {
	cfg         *config.Config
	book        repository.ContactBook
	dispatcher  *dispatch.Dispatcher
	broadcaster *feed.Broadcaster
	pool        *worker.Pool[Incident]
	wg          sync.WaitGroup
}

func NewManager(cfg *config.Config, book repository.ContactBook, d *dispatch.Dispatcher, b *feed.Broadcaster) *Manager {
	return &Manager{
		cfg:         cfg,
		book:        book,
		dispatcher:  d,
		broadcaster: b,
	}
}

func (m *Manager) Start(ctx context.Context) {
	processor := func(ctx context.Context, inc Incident) error {
		if _, err := m.Dispatch(ctx, inc); err != nil {
			slog.Error("queued incident failed", "incident_id", inc.ID, "error", err)
			return err
		}
		return nil
	}

	m.pool = worker.NewPool(m.cfg.Worker.Count, m.cfg.Worker.BufferSize, processor)
	m.pool.Start(ctx)

	if m.cfg.Kafka.Enabled {
		m.wg.Add(1)
		go m.runKafkaSource(ctx)
	}
}

// Dispatch handles one incident synchronously and returns the report. The
// report always carries every delivery outcome; audit failures ride along
// per result instead of aborting.
func (m *Manager) Dispatch(ctx context.Context, inc Incident) (feed.Report, error) {
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}

	alerts, err := BuildAlerts(ctx, m.book, inc)
	if err != nil {
		return feed.Report{}, fmt.Errorf("build alerts: %w", err)
	}

	results := m.dispatcher.DispatchAll(ctx, alerts)
	report := feed.Report{IncidentID: inc.ID, UserID: inc.UserID, Results: results}

	for _, r := range results {
		slog.Info("alert dispatched",
			"incident_id", inc.ID,
			"alert_id", r.Alert.ID,
			"channel", r.Alert.Channel,
			"status", r.Alert.Status,
			"delivered", r.Outcome.Delivered,
			"success", r.Outcome.Success)
	}

	if m.broadcaster != nil {
		m.broadcaster.Broadcast(report)
	}
	return report, nil
}

// Enqueue hands an incident to the worker pool without blocking; reports
// whether the queue had room. Requires Start.
func (m *Manager) Enqueue(inc Incident) bool {
	if m.pool == nil {
		return false
	}
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}
	return m.pool.TrySubmit(inc)
}

func (m *Manager) Stop() {
	m.wg.Wait()
	if m.pool != nil {
		m.pool.Stop()
	}
}

package intake

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// runKafkaSource consumes incident JSON from the configured topic and queues
// each message for dispatch. Malformed messages are logged and skipped so a
// bad producer cannot stall the partition.
func (m *Manager) runKafkaSource(ctx context.Context) {
	defer m.wg.Done()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: m.cfg.Kafka.Brokers,
		Topic:   m.cfg.Kafka.Topic,
		GroupID: "emergency-dispatch",
	})
	defer reader.Close()

	slog.Info("kafka source started", "topic", m.cfg.Kafka.Topic, "brokers", m.cfg.Kafka.Brokers)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				slog.Info("kafka source shutting down")
				return
			}
			slog.Error("kafka read failed", "error", err)
			continue
		}

		var inc Incident
		if err := json.Unmarshal(msg.Value, &inc); err != nil {
			slog.Error("invalid incident message", "offset", msg.Offset, "error", err)
			continue
		}
		if inc.UserID == "" || inc.Message == "" {
			slog.Error("incident message missing user_id or message", "offset", msg.Offset)
			continue
		}

		if !m.Enqueue(inc) {
			slog.Warn("incident queue full, dropping", "incident_id", inc.ID)
		}
	}
}

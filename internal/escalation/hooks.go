package escalation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/vigil/internal/decisions"
	"github.com/JaimeStill/vigil/internal/events"
	"github.com/JaimeStill/vigil/pkg/broker"
)

// KafkaHook publishes a Notification to the escalations topic, keyed by
// tenant so one tenant's escalations stay ordered on a partition.
type KafkaHook struct {
	publisher broker.Publisher
	topic     string
}

func NewKafkaHook(publisher broker.Publisher, topic string) *KafkaHook {
	return &KafkaHook{publisher: publisher, topic: topic}
}

func (h *KafkaHook) OnEscalate(ctx context.Context, d decisions.Decision, e events.Event) error {
	body, err := json.Marshal(NewNotification(d, e))
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	return h.publisher.Publish(ctx, broker.Message{
		Topic: h.topic,
		Key:   []byte(e.OrganizationID.String()),
		Value: body,
		Headers: map[string]string{
			"decision_id": d.ID.String(),
			"event_type":  string(e.EventType),
		},
	})
}

// LogHook records escalations in the log when no broker is configured.
type LogHook struct {
	logger *slog.Logger
}

func NewLogHook(logger *slog.Logger) *LogHook {
	return &LogHook{logger: logger.With("hook", "log")}
}

func (h *LogHook) OnEscalate(_ context.Context, d decisions.Decision, e events.Event) error {
	h.logger.Warn("escalation",
		"decision_id", d.ID,
		"event_id", e.ID,
		"organization_id", e.OrganizationID,
		"event_type", e.EventType,
		"source_id", e.SourceID,
		"reason", d.Reason,
	)
	return nil
}

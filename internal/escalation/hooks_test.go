package escalation_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/JaimeStill/vigil/internal/escalation"
	"github.com/JaimeStill/vigil/internal/events"
	"github.com/JaimeStill/vigil/pkg/broker"
)

type capturePublisher struct {
	msgs []broker.Message
	err  error
}

func (p *capturePublisher) Publish(_ context.Context, msg broker.Message) error {
	p.msgs = append(p.msgs, msg)
	return p.err
}

func TestKafkaHookPublishes(t *testing.T) {
	pub := &capturePublisher{}
	hook := escalation.NewKafkaHook(pub, "attention.escalations")
	d, e := escalated()
	e.PayloadSnapshot = events.Payload{"severity": "critical"}

	if err := hook.OnEscalate(context.Background(), d, e); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if len(pub.msgs) != 1 {
		t.Fatalf("messages: got %d, want 1", len(pub.msgs))
	}

	msg := pub.msgs[0]
	if msg.Topic != "attention.escalations" {
		t.Errorf("topic: got %s", msg.Topic)
	}
	if string(msg.Key) != e.OrganizationID.String() {
		t.Errorf("key: got %s, want organization id", msg.Key)
	}
	if msg.Headers["decision_id"] != d.ID.String() || msg.Headers["event_type"] != "system_error" {
		t.Errorf("headers: got %v", msg.Headers)
	}

	var n escalation.Notification
	if err := json.Unmarshal(msg.Value, &n); err != nil {
		t.Fatalf("decode notification: %v", err)
	}
	if n.DecisionID != d.ID || n.Severity != events.SeverityCritical || n.Reason != "critical" {
		t.Errorf("notification: got %+v", n)
	}
}

func TestKafkaHookPropagatesPublishError(t *testing.T) {
	hook := escalation.NewKafkaHook(&capturePublisher{err: errors.New("leader not available")}, "t")
	d, e := escalated()

	if err := hook.OnEscalate(context.Background(), d, e); err == nil {
		t.Error("expected publish error")
	}
}

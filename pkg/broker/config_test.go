package broker_test

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/vigil/pkg/broker"
)

func TestFinalizeDefaults(t *testing.T) {
	cfg := broker.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if !slices.Equal(cfg.Brokers, []string{"localhost:9092"}) {
		t.Errorf("brokers: got %v", cfg.Brokers)
	}
	if cfg.GroupID != "vigil" {
		t.Errorf("group_id: got %s, want vigil", cfg.GroupID)
	}
	if cfg.EventsTopic != "attention.events" || cfg.EscalationsTopic != "attention.escalations" {
		t.Errorf("topics: got %s / %s", cfg.EventsTopic, cfg.EscalationsTopic)
	}
	if cfg.WriteTimeoutDuration() != 10*time.Second {
		t.Errorf("write_timeout: got %v, want 10s", cfg.WriteTimeoutDuration())
	}
	if cfg.MaxWaitDuration() != 500*time.Millisecond {
		t.Errorf("max_wait: got %v, want 500ms", cfg.MaxWaitDuration())
	}
}

func TestFinalizeEnvOverrides(t *testing.T) {
	t.Setenv("TEST_BROKER_ENABLED", "true")
	t.Setenv("TEST_BROKER_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("TEST_BROKER_GROUP", "vigil-east")

	cfg := broker.Config{}
	err := cfg.Finalize(&broker.Env{
		Enabled: "TEST_BROKER_ENABLED",
		Brokers: "TEST_BROKER_BROKERS",
		GroupID: "TEST_BROKER_GROUP",
	})
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if !cfg.Enabled {
		t.Error("enabled should be true")
	}
	if !slices.Equal(cfg.Brokers, []string{"kafka-1:9092", "kafka-2:9092"}) {
		t.Errorf("brokers: got %v", cfg.Brokers)
	}
	if cfg.GroupID != "vigil-east" {
		t.Errorf("group_id: got %s", cfg.GroupID)
	}
}

func TestFinalizeValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     broker.Config
		wantErr string
	}{
		{"invalid write_timeout", broker.Config{Enabled: true, WriteTimeout: "never"}, "invalid write_timeout"},
		{"invalid max_wait", broker.Config{Enabled: true, MaxWait: "soon"}, "invalid max_wait"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}

	disabled := broker.Config{WriteTimeout: "never"}
	if err := disabled.Finalize(nil); err != nil {
		t.Errorf("disabled config should skip validation: %v", err)
	}
}

func TestMerge(t *testing.T) {
	base := broker.Config{Enabled: true, Brokers: []string{"a:9092"}, GroupID: "vigil"}
	base.Merge(&broker.Config{EventsTopic: "events.v2"})

	if !base.Enabled || base.GroupID != "vigil" || base.EventsTopic != "events.v2" {
		t.Errorf("merged = %+v", base)
	}
	if !slices.Equal(base.Brokers, []string{"a:9092"}) {
		t.Errorf("brokers should be kept: %v", base.Brokers)
	}
}

func TestParseBrokers(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"localhost:9092", []string{"localhost:9092"}},
		{" a:1 , b:2 ,, ", []string{"a:1", "b:2"}},
	}

	for _, tt := range tests {
		if got := broker.ParseBrokers(tt.input); !slices.Equal(got, tt.want) {
			t.Errorf("ParseBrokers(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

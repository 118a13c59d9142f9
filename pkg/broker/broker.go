// Package broker publishes and consumes Kafka messages for the attention pipeline.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/JaimeStill/vigil/pkg/lifecycle"
)

// Message is a broker record decoupled from the Kafka client types.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Time      time.Time
}

// Publisher writes messages to a topic.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Subscription reads messages from one topic under the configured consumer group.
// Offsets advance only when Commit is called.
type Subscription interface {
	Fetch(ctx context.Context) (Message, error)
	Commit(ctx context.Context, msg Message) error
	Close() error
}

// System owns the shared writer and every subscription it hands out.
type System interface {
	Publisher

	// Subscribe opens a consumer group reader on topic.
	Subscribe(topic string) Subscription
	// Start registers a close hook that releases the writer and all readers
	// after in-flight work has drained.
	Start(lc *lifecycle.Coordinator) error
}

type kafkaBroker struct {
	cfg    *Config
	writer *kafka.Writer
	logger *slog.Logger

	mu      sync.Mutex
	readers []*kafka.Reader
}

// New creates a Kafka broker. No connection is made until the first write or fetch.
func New(cfg *Config, logger *slog.Logger) System {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		WriteTimeout: cfg.WriteTimeoutDuration(),
		RequiredAcks: kafka.RequireOne,
	}

	return &kafkaBroker{
		cfg:    cfg,
		writer: writer,
		logger: logger.With("system", "broker"),
	}
}

func (b *kafkaBroker) Publish(ctx context.Context, msg Message) error {
	if msg.Topic == "" {
		return fmt.Errorf("publish: topic required")
	}
	if err := b.writer.WriteMessages(ctx, toKafka(msg)); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.Topic, err)
	}
	return nil
}

func (b *kafkaBroker) Subscribe(topic string) Subscription {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.cfg.Brokers,
		Topic:       topic,
		GroupID:     b.cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     b.cfg.MaxWaitDuration(),
		StartOffset: kafka.FirstOffset,
	})

	b.mu.Lock()
	b.readers = append(b.readers, reader)
	b.mu.Unlock()

	b.logger.Info("subscribed", "topic", topic, "group_id", b.cfg.GroupID)
	return &subscription{reader: reader}
}

func (b *kafkaBroker) Start(lc *lifecycle.Coordinator) error {
	b.logger.Info("starting broker", "brokers", b.cfg.Brokers)

	lc.OnClose(func() {
		b.mu.Lock()
		readers := b.readers
		b.readers = nil
		b.mu.Unlock()

		for _, r := range readers {
			if err := r.Close(); err != nil {
				b.logger.Error("reader close failed", "topic", r.Config().Topic, "error", err)
			}
		}
		if err := b.writer.Close(); err != nil {
			b.logger.Error("writer close failed", "error", err)
			return
		}
		b.logger.Info("broker closed")
	})

	return nil
}

type subscription struct {
	reader *kafka.Reader
}

func (s *subscription) Fetch(ctx context.Context) (Message, error) {
	m, err := s.reader.FetchMessage(ctx)
	if err != nil {
		return Message{}, err
	}
	return fromKafka(m), nil
}

func (s *subscription) Commit(ctx context.Context, msg Message) error {
	return s.reader.CommitMessages(ctx, kafka.Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	})
}

func (s *subscription) Close() error {
	return s.reader.Close()
}

func toKafka(msg Message) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	ts := msg.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	return kafka.Message{
		Topic:   msg.Topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
		Time:    ts,
	}
}

func fromKafka(m kafka.Message) Message {
	headers := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}

	return Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Headers:   headers,
		Time:      m.Time,
	}
}

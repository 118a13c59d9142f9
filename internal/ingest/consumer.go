package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/internal/events"
	"github.com/JaimeStill/vigil/pkg/broker"
	"github.com/JaimeStill/vigil/pkg/cache"
)

// IdempotencyHeader carries the producer's deduplication key on broker messages.
const IdempotencyHeader = "Idempotency-Key"

// Redelivery backoff bounds for a message that keeps failing.
const (
	minRedeliveryBackoff = 10 * time.Millisecond
	maxRedeliveryBackoff = 30 * time.Second
)

// ConsumerConfig bounds retries for one message.
type ConsumerConfig struct {
	Attempts int
	Backoff  time.Duration
}

// Consumer reads events from a broker subscription and submits them in
// partition order. A message that cannot be ingested blocks the consumer:
// it is retried with backoff until it succeeds or the context ends, and no
// later offset is committed past it. Keys are marked handled in the claims
// cache only after ingestion succeeds, so a redelivery of a marked key is
// skipped and a redelivery of an unmarked key is ingested.
type Consumer struct {
	sub    broker.Subscription
	sys    System
	claims cache.Claimer
	cfg    ConsumerConfig
	logger *slog.Logger

	// pending carries the event stored for a message whose decision write
	// failed, so the next attempt re-evaluates it instead of storing it again.
	pending pending
}

type pending struct {
	key     string
	eventID uuid.UUID
}

// NewConsumer creates a Consumer. A nil claims disables redelivery dedup.
func NewConsumer(sub broker.Subscription, sys System, claims cache.Claimer, cfg ConsumerConfig, logger *slog.Logger) *Consumer {
	cfg.Attempts = max(cfg.Attempts, 1)
	return &Consumer{
		sub:    sub,
		sys:    sys,
		claims: claims,
		cfg:    cfg,
		logger: logger.With("system", "consumer"),
	}
}

// Run processes messages until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("consumer started")
	defer c.logger.Info("consumer stopped")

	for {
		msg, err := c.sub.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("fetch failed", "error", err)
			if !sleep(ctx, c.cfg.Backoff) {
				return
			}
			continue
		}

		if !c.deliver(ctx, msg) {
			return
		}
		if err := c.sub.Commit(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
	}
}

// deliver handles msg until it succeeds. It reports false when ctx ends
// first, in which case the offset must not be committed.
func (c *Consumer) deliver(ctx context.Context, msg broker.Message) bool {
	backoff := max(c.cfg.Backoff, minRedeliveryBackoff)

	for {
		err := c.Handle(ctx, msg)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		c.logger.Error("event not ingested; holding offset",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"retry_in", backoff,
			"error", err,
		)
		if !sleep(ctx, backoff) {
			return false
		}
		backoff = min(backoff*2, maxRedeliveryBackoff)
	}
}

// Handle processes one message. A nil error means the offset may be
// committed; undecodable or invalid events return nil so they do not block
// the partition. Calling Handle again with a message that failed after its
// event was stored re-evaluates that event. Handle is not safe for
// concurrent use.
func (c *Consumer) Handle(ctx context.Context, msg broker.Message) error {
	log := c.logger.With("topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
	key := "ingest:" + dedupKey(msg)

	if c.pending.key != key {
		c.pending = pending{key: key}
	}

	if c.pending.eventID == uuid.Nil && c.claims != nil {
		held, err := c.claims.Held(ctx, key)
		switch {
		case err != nil:
			log.Warn("dedup check unavailable", "error", err)
		case held:
			log.Info("duplicate delivery skipped", "key", key)
			c.pending = pending{}
			return nil
		}
	}

	var in events.Input
	if err := json.Unmarshal(msg.Value, &in); err != nil {
		log.Error("undecodable event dropped", "error", err)
		c.pending = pending{}
		return nil
	}

	err := c.submit(ctx, in)
	switch {
	case errors.Is(err, events.ErrInvalidInput):
		log.Warn("invalid event rejected", "error", err)
		c.pending = pending{}
		return nil
	case err != nil:
		return err
	}

	c.pending = pending{}
	if c.claims != nil {
		if _, err := c.claims.Claim(ctx, key, 0); err != nil {
			log.Warn("dedup mark failed", "key", key, "error", err)
		}
	}
	return nil
}

// submit creates the event once, then retries only evaluation when the
// decision write is what failed.
func (c *Consumer) submit(ctx context.Context, in events.Input) error {
	backoff := c.cfg.Backoff

	for attempt := 1; ; attempt++ {
		var (
			receipt Receipt
			err     error
		)
		if c.pending.eventID == uuid.Nil {
			receipt, err = c.sys.Submit(ctx, in)
		} else {
			receipt, err = c.sys.Reevaluate(ctx, c.pending.eventID)
		}
		if receipt.EventID != uuid.Nil {
			c.pending.eventID = receipt.EventID
		}

		if err == nil || errors.Is(err, events.ErrInvalidInput) {
			return err
		}
		if attempt >= c.cfg.Attempts {
			return fmt.Errorf("event %s after %d attempts: %w", c.pending.eventID, attempt, err)
		}

		c.logger.Warn("ingest attempt failed", "attempt", attempt, "event_id", c.pending.eventID, "error", err)
		if !sleep(ctx, backoff) {
			return ctx.Err()
		}
		backoff *= 2
	}
}

func dedupKey(msg broker.Message) string {
	if k := msg.Headers[IdempotencyHeader]; k != "" {
		return k
	}
	return fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

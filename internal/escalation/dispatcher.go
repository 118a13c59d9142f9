package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JaimeStill/vigil/internal/decisions"
	"github.com/JaimeStill/vigil/internal/events"
	"github.com/JaimeStill/vigil/pkg/cache"
	"github.com/JaimeStill/vigil/pkg/lifecycle"
)

// Dispatcher runs a Hook asynchronously for each escalation. Each call is
// bounded by a timeout, never retried, and its failures are only logged.
type Dispatcher struct {
	hook    Hook
	claims  cache.Claimer
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. A nil claims disables the cross-process
// at-most-once guard.
func NewDispatcher(hook Hook, claims cache.Claimer, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		hook:    hook,
		claims:  claims,
		timeout: timeout,
		logger:  logger.With("system", "escalation"),
	}
}

// Escalate schedules the hook and returns immediately. After Close the hook
// runs on the caller's goroutine instead.
func (d *Dispatcher) Escalate(dec decisions.Decision, e events.Event) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("dispatcher closed; escalating inline", "decision_id", dec.ID)
		d.dispatch(dec, e)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.dispatch(dec, e)
	}()
}

// Wait blocks until every scheduled hook has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close stops scheduling asynchronous hooks and waits for in-flight ones.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

// Start registers a drain hook that closes the dispatcher once request
// handlers and background workers have stopped.
func (d *Dispatcher) Start(lc *lifecycle.Coordinator) {
	lc.OnDrain(func() {
		d.Close()
		d.logger.Info("escalations drained")
	})
}

func (d *Dispatcher) dispatch(dec decisions.Decision, e events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	log := d.logger.With("decision_id", dec.ID, "event_id", e.ID, "organization_id", e.OrganizationID)

	if !d.claim(ctx, dec, log) {
		return
	}

	start := time.Now()
	if err := d.invoke(ctx, dec, e); err != nil {
		log.Error("escalation failed", "error", err, "duration", time.Since(start))
		return
	}
	log.Info("escalation dispatched", "duration", time.Since(start))
}

// claim reports whether this process owns delivery for dec. Delivery proceeds
// when the claim store is unreachable.
func (d *Dispatcher) claim(ctx context.Context, dec decisions.Decision, log *slog.Logger) bool {
	if d.claims == nil {
		return true
	}

	ok, err := d.claims.Claim(ctx, "escalation:"+dec.ID.String(), 0)
	if err != nil {
		log.Warn("escalation claim unavailable", "error", err)
		return true
	}
	if !ok {
		log.Info("escalation already claimed")
	}
	return ok
}

func (d *Dispatcher) invoke(ctx context.Context, dec decisions.Decision, e events.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panicked: %v", r)
		}
	}()
	return d.hook.OnEscalate(ctx, dec, e)
}

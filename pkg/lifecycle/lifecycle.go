// Package lifecycle coordinates startup, background work, and shutdown for long-running systems.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ReadinessChecker reports whether a subsystem is ready to serve traffic.
type ReadinessChecker interface {
	Ready() bool
}

// Coordinator manages startup hooks, background workers, and shutdown hooks.
//
// Shutdown runs in three phases. Shutdown hooks and background workers stop
// first, then drain hooks run, then close hooks run. Each phase starts only
// after the previous one has returned, so work accepted by an earlier phase
// never observes a resource released by a later one.
type Coordinator struct {
	ctx        context.Context
	cancel     context.CancelFunc
	startupWg  sync.WaitGroup
	shutdownWg sync.WaitGroup
	ready      atomic.Bool

	mu    sync.Mutex
	drainHooks []func()
	closeHooks []func()
}

// New creates a Coordinator with a cancellable context.
func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context returns the coordinator's context, cancelled on shutdown.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// OnStartup registers a function to run concurrently during startup.
func (c *Coordinator) OnStartup(fn func()) {
	c.startupWg.Go(fn)
}

// OnShutdown registers a function to run concurrently during shutdown.
// Shutdown hooks should block on <-c.Context().Done() before executing cleanup.
func (c *Coordinator) OnShutdown(fn func()) {
	c.shutdownWg.Go(fn)
}

// OnDrain registers a function to run once every shutdown hook and background
// worker has returned. Drain hooks run concurrently with each other.
func (c *Coordinator) OnDrain(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drainHooks = append(c.drainHooks, fn)
}

// OnClose registers a function to release a shared resource once every drain
// hook has returned. Close hooks run concurrently with each other.
func (c *Coordinator) OnClose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeHooks = append(c.closeHooks, fn)
}

// Background runs fn for the life of the coordinator. The context passed to fn
// is cancelled on shutdown and Shutdown waits for fn to return.
func (c *Coordinator) Background(fn func(ctx context.Context)) {
	c.shutdownWg.Go(func() {
		fn(c.ctx)
	})
}

// Ready returns true after all startup hooks have completed.
func (c *Coordinator) Ready() bool {
	return c.ready.Load()
}

// WaitForStartup blocks until all startup hooks have completed and sets the ready flag.
func (c *Coordinator) WaitForStartup() {
	c.startupWg.Wait()
	c.ready.Store(true)
}

// Shutdown cancels the context and runs the shutdown phases in order,
// returning an error if they do not complete within the given timeout.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.ready.Store(false)
	c.cancel()

	c.mu.Lock()
	drain, closers := c.drainHooks, c.closeHooks
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.shutdownWg.Wait()
		runPhase(drain)
		runPhase(closers)
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}

func runPhase(hooks []func()) {
	var wg sync.WaitGroup
	for _, fn := range hooks {
		wg.Go(fn)
	}
	wg.Wait()
}

// Package lifecycle coordinates startup and shutdown of long-lived subsystems.
package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ReadinessChecker reports whether a subsystem is ready to serve traffic.
type ReadinessChecker interface {
	Ready() bool
}

// Coordinator manages startup and shutdown hooks for the application lifecycle.
type Coordinator struct {
	ctx        context.Context
	cancel     context.CancelFunc
	startupWg  sync.WaitGroup
	shutdownWg sync.WaitGroup

	mu       sync.RWMutex
	started  bool
	checkers map[string]ReadinessChecker
}

// New creates a Coordinator with a cancellable context.
func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		ctx:      ctx,
		cancel:   cancel,
		checkers: make(map[string]ReadinessChecker),
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

// Track adds a named subsystem whose readiness gates Ready.
func (c *Coordinator) Track(name string, checker ReadinessChecker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkers[name] = checker
}

// Ready returns true after all startup hooks have completed and every
// tracked subsystem reports ready.
func (c *Coordinator) Ready() bool {
	return len(c.Pending()) == 0
}

// Pending lists what is still holding readiness back, sorted by name.
// "startup" appears until WaitForStartup has returned.
func (c *Coordinator) Pending() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pending := make([]string, 0)
	if !c.started {
		pending = append(pending, "startup")
	}
	for name, checker := range c.checkers {
		if !checker.Ready() {
			pending = append(pending, name)
		}
	}
	sort.Strings(pending)
	return pending
}

// WaitForStartup blocks until all startup hooks have completed and marks startup done.
func (c *Coordinator) WaitForStartup() {
	c.startupWg.Wait()
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
}

// Shutdown cancels the context and waits for shutdown hooks to complete
// within the given timeout.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.shutdownWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}

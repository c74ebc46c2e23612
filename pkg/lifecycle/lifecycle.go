// Package lifecycle runs the startup and shutdown hooks of the server's
// long-lived subsystems against one cancellable context.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrShutdownTimeout is returned when shutdown hooks outlive the deadline.
var ErrShutdownTimeout = errors.New("shutdown timed out")

// Coordinator starts hooks concurrently and tracks readiness. Ready flips
// true once WaitForStartup sees every startup hook succeed, and false again
// when Shutdown begins.
type Coordinator struct {
	ctx    context.Context
	cancel context.CancelFunc

	starting sync.WaitGroup
	stopping sync.WaitGroup
	ready    atomic.Bool

	mu   sync.Mutex
	errs []error
}

func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{ctx: ctx, cancel: cancel}
}

// Context is cancelled when Shutdown is called.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// OnStartup runs fn in its own goroutine. An error from fn fails startup.
func (c *Coordinator) OnStartup(fn func() error) {
	c.starting.Add(1)
	go func() {
		defer c.starting.Done()
		if err := fn(); err != nil {
			c.mu.Lock()
			c.errs = append(c.errs, err)
			c.mu.Unlock()
		}
	}()
}

// OnShutdown runs fn in its own goroutine right away. Hooks block on
// <-Context().Done() before releasing their resources; Shutdown waits for
// all of them.
func (c *Coordinator) OnShutdown(fn func()) {
	c.stopping.Add(1)
	go func() {
		defer c.stopping.Done()
		fn()
	}()
}

func (c *Coordinator) Ready() bool {
	return c.ready.Load()
}

// WaitForStartup blocks until every startup hook has returned and reports
// their joined errors.
func (c *Coordinator) WaitForStartup() error {
	c.starting.Wait()

	c.mu.Lock()
	err := errors.Join(c.errs...)
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	c.ready.Store(true)
	return nil
}

// Shutdown cancels the context and waits up to timeout for the shutdown
// hooks to finish.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.ready.Store(false)
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.stopping.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w after %v", ErrShutdownTimeout, timeout)
	}
}

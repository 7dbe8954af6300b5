// Package shutdown turns termination signals into one process-wide stop
// condition and drains live relay connections.
package shutdown

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// DefaultReason is reported when Stop was never called.
const DefaultReason = "Unknown"

// Coordinator records why the process is stopping and signals it exactly
// once.
type Coordinator struct {
	once   sync.Once
	done   chan struct{}
	mu     sync.Mutex
	reason string
}

// NewCoordinator returns a coordinator that has not stopped yet.
func NewCoordinator() *Coordinator {
	return &Coordinator{done: make(chan struct{}), reason: DefaultReason}
}

// Stop records reason and closes Done. Only the first call has any effect;
// it reports whether this call was that one.
func (c *Coordinator) Stop(reason string) bool {
	stopped := false
	c.once.Do(func() {
		c.mu.Lock()
		c.reason = reason
		c.mu.Unlock()
		close(c.done)
		stopped = true
	})
	return stopped
}

// Done is closed once Stop has been called.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Reason returns the recorded stop reason.
func (c *Coordinator) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Listen calls Stop when one of sigs arrives, or SIGINT and SIGTERM when
// none are given. It returns when the coordinator stops or ctx ends.
func (c *Coordinator) Listen(ctx context.Context, sigs ...os.Signal) {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	defer signal.Stop(ch)
	c.watch(ctx, ch)
}

func (c *Coordinator) watch(ctx context.Context, ch <-chan os.Signal) {
	select {
	case sig := <-ch:
		reason := ReasonFor(sig)
		slog.Info("shutdown signal received", "signal", sig.String(), "reason", reason)
		c.Stop(reason)
	case <-c.done:
	case <-ctx.Done():
	}
}

// ReasonFor maps a signal to the reason sent to clients.
func ReasonFor(sig os.Signal) string {
	switch sig {
	case syscall.SIGTERM:
		return "Planned maintenance"
	case os.Interrupt:
		return "Manual shutdown (CTRL+C)"
	default:
		return fmt.Sprintf("Stopped due to signal %v", sig)
	}
}

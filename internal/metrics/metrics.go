// Package metrics keeps the relay's counters in a go-metrics registry.
package metrics

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
)

// Counter names.
const (
	Connections  = "relay.connections"
	Frames       = "relay.frames"
	Broadcasts   = "relay.broadcasts"
	SendFailures = "relay.send_failures"
	RateLimited  = "relay.rate_limited"
	Malformed    = "relay.malformed"
	Rejected     = "relay.rejected"
	RoomsCreated = "rooms.created"
)

// Relay wraps a registry. A nil *Relay is valid and records nothing.
type Relay struct {
	reg gometrics.Registry
}

// New returns a Relay backed by a fresh registry.
func New() *Relay {
	return &Relay{reg: gometrics.NewRegistry()}
}

// Incr adds i to the named counter.
func (m *Relay) Incr(name string, i int64) {
	if m == nil {
		return
	}
	gometrics.GetOrRegisterCounter(name, m.reg).Inc(i)
}

// Decr subtracts i from the named counter.
func (m *Relay) Decr(name string, i int64) {
	if m == nil {
		return
	}
	gometrics.GetOrRegisterCounter(name, m.reg).Dec(i)
}

// Count returns the current value of a counter, or 0 if it was never used.
func (m *Relay) Count(name string) int64 {
	if m == nil {
		return 0
	}
	if c, ok := m.reg.Get(name).(gometrics.Counter); ok {
		return c.Count()
	}
	return 0
}

// Snapshot returns every counter by name.
func (m *Relay) Snapshot() map[string]int64 {
	out := map[string]int64{}
	if m == nil {
		return out
	}
	m.reg.Each(func(name string, v interface{}) {
		if c, ok := v.(gometrics.Counter); ok {
			out[name] = c.Count()
		}
	})
	return out
}

// WriteJSON writes the registry once as JSON.
func (m *Relay) WriteJSON(w io.Writer) {
	if m == nil {
		_, _ = io.WriteString(w, "{}\n")
		return
	}
	gometrics.WriteJSONOnce(m.reg, w)
}

// Run logs a snapshot every interval until ctx is canceled.
func (m *Relay) Run(ctx context.Context, interval time.Duration) error {
	if m == nil || interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.report("final relay metrics")
			return nil
		case <-ticker.C:
			m.report("relay metrics")
		}
	}
}

func (m *Relay) report(msg string) {
	snap := m.Snapshot()
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]any, 0, 2*len(names))
	for _, name := range names {
		args = append(args, name, snap[name])
	}
	slog.Info(msg, args...)
}

package core

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/valed-dm/chatroom-server/internal/protocol"
)

// ConnectionRegistry is the set of live connections eligible to receive
// broadcasts. The lock is never held across a network send.
type ConnectionRegistry struct {
	mu     sync.Mutex
	conns  map[Conn]Identity
	closed bool
	reason string
}

// NewConnectionRegistry returns an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{conns: make(map[Conn]Identity)}
}

// Register adds conn and sends it a system acknowledgement carrying its
// identity. After Close it refuses with ErrRegistryClosed. When the
// acknowledgement cannot be delivered the connection is treated as already
// dead and removed again.
func (r *ConnectionRegistry) Register(conn Conn) (Identity, error) {
	id := conn.Identity()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return id, ErrRegistryClosed
	}
	r.conns[conn] = id
	total := len(r.conns)
	r.mu.Unlock()

	slog.Info("client registered", "client", id.String(), "total_clients", total)

	ack, err := protocol.Encode(protocol.System(fmt.Sprintf("Client %s added to connected clients", id)))
	if err == nil {
		err = conn.Send(ack)
	}
	if err != nil {
		r.Unregister(conn)
		slog.Warn("client acknowledgement failed", "client", id.String(), "err", err)
		return id, fmt.Errorf("acknowledge client: %w", err)
	}
	return id, nil
}

// Unregister removes conn. It is safe to call for connections that were
// never registered or were already removed.
func (r *ConnectionRegistry) Unregister(conn Conn) Identity {
	r.mu.Lock()
	id, ok := r.conns[conn]
	delete(r.conns, conn)
	total := len(r.conns)
	r.mu.Unlock()

	if !ok {
		return conn.Identity()
	}
	slog.Info("client unregistered", "client", id.String(), "remaining_clients", total)
	return id
}

// Close refuses every later Register and returns a snapshot of the
// connections live at that moment. The first reason is kept.
func (r *ConnectionRegistry) Close(reason string) []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.closed {
		r.closed = true
		r.reason = reason
	}
	return r.listLocked()
}

// ClosedReason returns the reason given to Close and whether Close was
// called.
func (r *ConnectionRegistry) ClosedReason() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reason, r.closed
}

// List returns a snapshot of the live connections.
func (r *ConnectionRegistry) List() []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listLocked()
}

func (r *ConnectionRegistry) listLocked() []Conn {
	out := make([]Conn, 0, len(r.conns))
	for conn := range r.conns {
		out = append(out, conn)
	}
	return out
}

// Contains reports whether conn is currently registered.
func (r *ConnectionRegistry) Contains(conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[conn]
	return ok
}

// Len returns the number of live connections.
func (r *ConnectionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Broadcast sends ev to every live connection.
func (r *ConnectionRegistry) Broadcast(ev protocol.Event) Delivery {
	d := BroadcastEvent(r.List(), ev)
	slog.Debug("registry broadcast", "type", ev.Type, "recipients", d.Recipients, "failed", d.Failed)
	return d
}

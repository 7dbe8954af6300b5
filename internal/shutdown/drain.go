package shutdown

import (
	"log/slog"
	"sync"

	"github.com/valed-dm/chatroom-server/internal/core"
	"github.com/valed-dm/chatroom-server/internal/protocol"
)

// Result summarizes one drain.
type Result struct {
	Connections int
	Notified    int
}

// Drain closes the registry to new connections, notifies every live
// connection of reason, then unregisters and closes all of them. Notices
// always go out before any socket is closed.
func Drain(registry *core.ConnectionRegistry, reason string) Result {
	conns := registry.Close(reason)
	if len(conns) == 0 {
		return Result{}
	}

	d := core.BroadcastEvent(conns, protocol.Shutdown(reason))

	for _, conn := range conns {
		registry.Unregister(conn)
	}

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func(conn core.Conn) {
			defer wg.Done()
			if err := conn.Close(); err != nil {
				slog.Debug("close during drain", "client", conn.Identity().String(), "err", err)
			}
		}(conn)
	}
	wg.Wait()

	slog.Info("connections drained", "reason", reason, "connections", len(conns), "notified", d.Delivered)
	return Result{Connections: len(conns), Notified: d.Delivered}
}

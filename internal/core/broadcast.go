package core

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/valed-dm/chatroom-server/internal/protocol"
)

// Delivery summarizes one fan-out.
type Delivery struct {
	Recipients int
	Delivered  int
	Failed     int
}

// Fanout sends payload to every target on its own goroutine and waits for
// all of them. A failed or panicking send is logged and counted; it never
// affects delivery to the other targets.
func Fanout(targets []Conn, payload []byte) Delivery {
	var (
		wg        sync.WaitGroup
		delivered atomic.Int64
	)
	for _, conn := range targets {
		wg.Add(1)
		go func(conn Conn) {
			defer wg.Done()
			if err := safeSend(conn, payload); err != nil {
				slog.Warn("peer send failed", "peer", conn.Identity().String(), "err", err)
				return
			}
			delivered.Add(1)
		}(conn)
	}
	wg.Wait()

	d := Delivery{Recipients: len(targets), Delivered: int(delivered.Load())}
	d.Failed = d.Recipients - d.Delivered
	return d
}

// BroadcastEvent encodes ev once and fans it out to targets.
func BroadcastEvent(targets []Conn, ev protocol.Event) Delivery {
	if len(targets) == 0 {
		return Delivery{}
	}
	payload, err := protocol.Encode(ev)
	if err != nil {
		slog.Error("broadcast encode failed", "type", ev.Type, "err", err)
		return Delivery{Recipients: len(targets), Failed: len(targets)}
	}
	return Fanout(targets, payload)
}

func safeSend(conn Conn, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("send panicked: %v", r)
		}
	}()
	return conn.Send(payload)
}

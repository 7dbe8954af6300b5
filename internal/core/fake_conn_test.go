package core

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/valed-dm/chatroom-server/internal/protocol"
)

var errSendFailed = errors.New("send failed")

type fakeConn struct {
	id Identity

	mu      sync.Mutex
	sent    [][]byte
	fail    bool
	closed  bool
	block   chan struct{}
	entered chan struct{}
}

func newFakeConn(token string) *fakeConn {
	return &fakeConn{id: Identity{Token: token, RemoteAddr: "127.0.0.1"}}
}

func (c *fakeConn) Identity() Identity { return c.id }

func (c *fakeConn) Send(payload []byte) error {
	if c.entered != nil {
		select {
		case c.entered <- struct{}{}:
		default:
		}
	}
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail || c.closed {
		return errSendFailed
	}
	c.sent = append(c.sent, append([]byte(nil), payload...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) setFail(fail bool) {
	c.mu.Lock()
	c.fail = fail
	c.mu.Unlock()
}

func (c *fakeConn) events(t *testing.T) []protocol.Event {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]protocol.Event, 0, len(c.sent))
	for _, raw := range c.sent {
		var ev protocol.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("unmarshal sent payload: %v", err)
		}
		out = append(out, ev)
	}
	return out
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

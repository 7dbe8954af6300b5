package ws

import (
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/valed-dm/chatroom-server/internal/core"
)

// Conn is a core.Conn backed by a gorilla websocket. Writes are serialized
// so broadcasts from many goroutines never interleave frames.
type Conn struct {
	ws           *websocket.Conn
	id           core.Identity
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newConn(ws *websocket.Conn, token, remoteAddr string, writeTimeout time.Duration) *Conn {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	return &Conn{
		ws:           ws,
		id:           core.Identity{Token: token, RemoteAddr: host},
		writeTimeout: writeTimeout,
	}
}

// Identity returns the identity captured when the connection was accepted.
func (c *Conn) Identity() core.Identity { return c.id }

// Send writes one text frame.
func (c *Conn) Send(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// Close sends a close frame and releases the socket. Later calls return the
// first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func (c *Conn) read() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

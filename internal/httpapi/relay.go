package httpapi

import (
	"github.com/labstack/echo/v4"

	"github.com/valed-dm/chatroom-server/internal/ws"
)

// NewRelay builds the Echo app that serves only the websocket relay.
func NewRelay(h *ws.Handler) *echo.Echo {
	e := newEcho()
	h.Register(e)
	return e
}

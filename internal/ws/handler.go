package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/valed-dm/chatroom-server/internal/auth"
	"github.com/valed-dm/chatroom-server/internal/core"
	"github.com/valed-dm/chatroom-server/internal/metrics"
	"github.com/valed-dm/chatroom-server/internal/protocol"
	"github.com/valed-dm/chatroom-server/internal/ratelimit"
)

const (
	defaultMaxInvalidMessages = 5
	defaultMaxMessageSize     = 64 << 10
	defaultWriteTimeout       = 5 * time.Second
)

// Options tunes the relay read loop.
type Options struct {
	MaxInvalidMessages int
	MaxMessageSize     int64
	WriteTimeout       time.Duration
	// EchoToSender includes the author in chat broadcasts.
	EchoToSender bool
	// AllowedOrigins restricts the Origin header on upgrade. Empty allows
	// any origin.
	AllowedOrigins []string
}

// Config carries the shared state a Handler routes into.
type Config struct {
	Rooms      *core.RoomStore
	Registry   *core.ConnectionRegistry
	Limiter    *ratelimit.Limiter
	Authorizer auth.Authorizer
	Metrics    *metrics.Relay
	Options    Options
}

// Handler accepts relay connections and runs one read loop per connection.
type Handler struct {
	rooms    *core.RoomStore
	registry *core.ConnectionRegistry
	limiter  *ratelimit.Limiter
	authz    auth.Authorizer
	metrics  *metrics.Relay
	opts     Options
	upgrader websocket.Upgrader

	mu       sync.Mutex
	stopping bool
	loops    sync.WaitGroup
}

// NewHandler builds a Handler. Zero options fall back to defaults.
func NewHandler(cfg Config) *Handler {
	opts := cfg.Options
	if opts.MaxInvalidMessages <= 0 {
		opts.MaxInvalidMessages = defaultMaxInvalidMessages
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.NewLimiter(ratelimit.ScopeConnection, 10, 5*time.Second)
	}

	h := &Handler{
		rooms:    cfg.Rooms,
		registry: cfg.Registry,
		limiter:  limiter,
		authz:    cfg.Authorizer,
		metrics:  cfg.Metrics,
		opts:     opts,
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

// Register binds the relay route on an Echo router. Every path is accepted
// here so that bad room paths get an in-band notice instead of a 404.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/*", h.HandleWebSocket)
}

// Stop refuses new connections. Connections already accepted keep running
// until they are closed.
func (h *Handler) Stop() {
	h.mu.Lock()
	h.stopping = true
	h.mu.Unlock()
}

// Wait blocks until every read loop has returned or ctx is done.
func (h *Handler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.loops.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleWebSocket authorizes, upgrades and serves one connection.
func (h *Handler) HandleWebSocket(c echo.Context) error {
	req := c.Request()

	h.mu.Lock()
	if h.stopping {
		h.mu.Unlock()
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "Server is shutting down."})
	}
	h.loops.Add(1)
	h.mu.Unlock()
	defer h.loops.Done()

	if h.authz == nil || !h.authz.Authorized(req) {
		h.metrics.Incr(metrics.Rejected, 1)
		slog.Warn("unauthorized access attempt", "remote", req.RemoteAddr, "path", req.URL.Path)
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "Unauthorized. Missing or invalid token."})
	}
	token, _ := auth.BearerToken(req.Header)

	wsConn, err := h.upgrader.Upgrade(c.Response(), req, nil)
	if err != nil {
		return fmt.Errorf("upgrade websocket: %w", err)
	}
	wsConn.SetReadLimit(h.opts.MaxMessageSize)

	conn := newConn(wsConn, token, req.RemoteAddr, h.opts.WriteTimeout)
	h.serve(conn, req.URL.Path)
	return nil
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, u.Host) {
			return true
		}
	}
	slog.Warn("websocket origin rejected", "origin", origin, "remote", r.RemoteAddr)
	return false
}

// session is the per-connection state of one read loop.
type session struct {
	h       *Handler
	conn    core.Conn
	roomID  string
	state   State
	window  *ratelimit.Window
	invalid int
	log     *slog.Logger
}

func (s *session) setState(next State) {
	s.log.Debug("connection state", "from", s.state.String(), "to", next.String())
	s.state = next
}

func (s *session) notify(content string) {
	s.send(protocol.System(content))
}

func (s *session) send(ev protocol.Event) {
	payload, err := protocol.Encode(ev)
	if err != nil {
		return
	}
	if err := s.conn.Send(payload); err != nil {
		s.h.metrics.Incr(metrics.SendFailures, 1)
		s.log.Debug("notice not delivered", "err", err)
	}
}

func (h *Handler) serve(conn *Conn, path string) {
	s := &session{
		h:     h,
		conn:  conn,
		state: StateAuthorized,
		log:   slog.With("client", conn.Identity().String()),
	}

	roomID, ok := MatchRoomPath(path)
	if !ok {
		h.metrics.Incr(metrics.Rejected, 1)
		s.log.Warn("invalid relay path", "path", path)
		s.notify(fmt.Sprintf("Invalid path for %s. Disconnecting.", conn.Identity()))
		_ = conn.Close()
		s.setState(StateTerminated)
		return
	}
	s.roomID = roomID
	s.log = s.log.With("room_id", roomID)
	s.setState(StateRouted)

	if _, err := h.registry.Register(conn); err != nil {
		if errors.Is(err, core.ErrRegistryClosed) {
			// Accepted after the drain snapshot: tell the client why.
			reason, _ := h.registry.ClosedReason()
			h.metrics.Incr(metrics.Rejected, 1)
			s.log.Info("registration refused, server is shutting down", "reason", reason)
			s.send(protocol.Shutdown(reason))
		}
		_ = conn.Close()
		s.setState(StateTerminated)
		return
	}

	var cleanup sync.Once
	defer cleanup.Do(func() {
		h.rooms.RemoveMember(roomID, conn)
		h.registry.Unregister(conn)
		_ = conn.Close()
		h.metrics.Decr(metrics.Connections, 1)
		s.setState(StateTerminated)
		s.log.Info("client disconnected")
	})

	h.metrics.Incr(metrics.Connections, 1)
	s.window = h.limiter.ForConnection()
	s.setState(StateActive)
	s.log.Info("client connected")

	for {
		raw, err := conn.read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.log.Info("read failed", "err", err)
			}
			return
		}
		if !s.handleFrame(raw) {
			return
		}
	}
}

// handleFrame processes one inbound frame and reports whether the loop
// should continue.
func (s *session) handleFrame(raw []byte) bool {
	h := s.h
	h.metrics.Incr(metrics.Frames, 1)

	if !s.window.Take() {
		h.metrics.Incr(metrics.RateLimited, 1)
		s.log.Warn("client is sending messages too fast, disconnecting")
		s.notify("Rate limit exceeded. Disconnecting.")
		return false
	}

	ev, err := protocol.Decode(raw)
	if err != nil {
		s.invalid++
		h.metrics.Incr(metrics.Malformed, 1)
		s.log.Warn("invalid JSON received", "count", s.invalid, "err", err)
		s.notify("Invalid JSON format.")
		if s.invalid >= h.opts.MaxInvalidMessages {
			s.log.Warn("client disconnected due to excessive invalid messages")
			return false
		}
		return true
	}

	s.dispatch(ev)
	return true
}

func (s *session) dispatch(ev protocol.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("error processing message", "type", ev.Type, "panic", r)
		}
	}()

	s.log.Debug("frame received", "type", ev.Type)
	switch ev.Kind() {
	case protocol.KindJoin:
		s.handleJoin(ev)
	case protocol.KindMessage:
		s.handleMessage(ev)
	case protocol.KindDisconnect:
		s.handleDisconnect(ev)
	case protocol.KindSystem:
	default:
		s.log.Warn("unknown message type", "type", ev.Type)
		s.notify("Unknown message type: " + ev.Type)
	}
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/valed-dm/chatroom-server/internal/auth"
	"github.com/valed-dm/chatroom-server/internal/core"
	"github.com/valed-dm/chatroom-server/internal/metrics"
	"github.com/valed-dm/chatroom-server/internal/store"
)

// RoomSaver persists created rooms.
type RoomSaver interface {
	SaveRoom(ctx context.Context, r store.Room) error
}

// Deps is everything the REST surface reads or mutates.
type Deps struct {
	Rooms      *core.RoomStore
	Registry   *core.ConnectionRegistry
	Authorizer auth.Authorizer
	// Saver is optional; without it rooms live only in memory.
	Saver   RoomSaver
	Metrics *metrics.Relay

	DefaultDescription string
	DefaultMaxUsers    int
	// RateLimit is requests per second per client IP. Zero or negative
	// disables it.
	RateLimit float64
}

// Server is the Echo application for room metadata, health and metrics.
type Server struct {
	echo *echo.Echo
	deps Deps
}

// New constructs the REST app.
func New(d Deps) *Server {
	if d.DefaultDescription == "" {
		d.DefaultDescription = "A fun place to chat."
	}
	if d.DefaultMaxUsers <= 0 {
		d.DefaultMaxUsers = 100
	}

	e := newEcho()
	if d.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(d.RateLimit))))
	}

	s := &Server{echo: e, deps: d}
	s.registerRoutes()
	return s
}

// Echo exposes the underlying Echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			slog.Debug("http request", "method", v.Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	return e
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", s.handleMetrics)

	for _, prefix := range []string{"", "/api"} {
		s.echo.GET(prefix+"/chatrooms", s.handleListRooms)
		s.echo.POST(prefix+"/chatrooms", s.handleCreateRoom, s.requireAuth)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.deps.Authorizer == nil || !s.deps.Authorizer.Authorized(c.Request()) {
			slog.Warn("unauthorized api request", "remote", c.RealIP(), "path", c.Path())
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: "Unauthorized. Missing or invalid token."})
		}
		return next(c)
	}
}

type healthResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
	Rooms   int    `json:"rooms"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:  "ok",
		Clients: s.deps.Registry.Len(),
		Rooms:   s.deps.Rooms.Len(),
	})
}

func (s *Server) handleMetrics(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c.Response().WriteHeader(http.StatusOK)
	s.deps.Metrics.WriteJSON(c.Response())
	return nil
}

type roomResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	CreatedAt    string `json:"created_at"`
	MaxUsers     int    `json:"max_users"`
	CurrentUsers int    `json:"current_users"`
}

type listRoomsResponse struct {
	Chatrooms []roomResponse `json:"chatrooms"`
}

func toRoomResponse(r core.RoomSummary) roomResponse {
	return roomResponse{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		CreatedAt:    r.CreatedAt.UTC().Format(time.RFC3339Nano),
		MaxUsers:     r.MaxUsers,
		CurrentUsers: r.CurrentUsers,
	}
}

func (s *Server) handleListRooms(c echo.Context) error {
	rooms := s.deps.Rooms.Rooms()
	out := listRoomsResponse{Chatrooms: make([]roomResponse, 0, len(rooms))}
	for _, r := range rooms {
		out.Chatrooms = append(out.Chatrooms, toRoomResponse(r))
	}
	return c.JSON(http.StatusOK, out)
}

type createRoomRequest struct {
	Name        string
	Description string
	MaxUsers    int
}

func (s *Server) handleCreateRoom(c echo.Context) error {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(c.Request().Body).Decode(&raw); err != nil || raw == nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid JSON payload."})
	}
	req, msg := s.parseCreateRoom(raw)
	if msg != "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
	}

	info, err := s.deps.Rooms.CreateRoom(req.Name, req.Description, req.MaxUsers)
	switch {
	case errors.Is(err, core.ErrDuplicateName):
		return c.JSON(http.StatusConflict, errorResponse{Error: "Chatroom with the same name already exists."})
	case errors.Is(err, core.ErrInvalidRoom):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("create chatroom: %v", err))
	}
	s.deps.Metrics.Incr(metrics.RoomsCreated, 1)

	if s.deps.Saver != nil {
		rec := store.Room{
			ID:          info.ID,
			Name:        info.Name,
			Description: info.Description,
			MaxUsers:    info.MaxUsers,
			CreatedAt:   info.CreatedAt,
		}
		if err := s.deps.Saver.SaveRoom(c.Request().Context(), rec); err != nil {
			slog.Warn("persist chatroom failed", "room_id", info.ID, "err", err)
		}
	}

	return c.JSON(http.StatusCreated, toRoomResponse(core.RoomSummary{RoomInfo: info}))
}

// parseCreateRoom validates the body field by field and returns a
// client-facing message on the first problem.
func (s *Server) parseCreateRoom(raw map[string]json.RawMessage) (createRoomRequest, string) {
	req := createRoomRequest{
		Description: s.deps.DefaultDescription,
		MaxUsers:    s.deps.DefaultMaxUsers,
	}

	nameRaw, ok := raw["name"]
	if !ok {
		return req, "Missing fields: name"
	}
	if err := json.Unmarshal(nameRaw, &req.Name); err != nil {
		return req, "'name' must be a string."
	}
	if strings.TrimSpace(req.Name) == "" {
		return req, "'name' must not be empty."
	}

	if v, ok := raw["description"]; ok {
		if err := json.Unmarshal(v, &req.Description); err != nil {
			return req, "'description' must be a string."
		}
	}

	if v, ok := raw["max_users"]; ok {
		n, err := parsePositiveInt(v)
		if err != nil {
			return req, "'max_users' must be a positive integer."
		}
		req.MaxUsers = n
	}
	return req, ""
}

// parsePositiveInt accepts a JSON integer or a string holding one.
func parsePositiveInt(v json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(v, &n); err != nil {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return 0, err
		}
		if n, err = strconv.Atoi(strings.TrimSpace(s)); err != nil {
			return 0, err
		}
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}

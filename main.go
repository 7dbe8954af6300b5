package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/valed-dm/chatroom-server/internal/auth"
	"github.com/valed-dm/chatroom-server/internal/config"
	"github.com/valed-dm/chatroom-server/internal/core"
	"github.com/valed-dm/chatroom-server/internal/httpapi"
	"github.com/valed-dm/chatroom-server/internal/metrics"
	"github.com/valed-dm/chatroom-server/internal/ratelimit"
	"github.com/valed-dm/chatroom-server/internal/shutdown"
	"github.com/valed-dm/chatroom-server/internal/store"
	"github.com/valed-dm/chatroom-server/internal/ws"
)

// Version is injected at build time with -ldflags.
var Version = "0.1.0-dev"

func main() {
	configPath := flag.String("config", "", "YAML config file (empty uses defaults and environment)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	if handled, err := RunCLI(flag.Args(), *configPath, os.Stdout); handled {
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	level, _ := cfg.Log.SlogLevel()
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("starting server", "version", Version, "api_addr", cfg.Server.APIAddr, "relay_addr", cfg.Server.RelayAddr)
	if err := run(cfg); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rooms := core.NewRoomStore()
	registry := core.NewConnectionRegistry()
	relayMetrics := metrics.New()

	var saver httpapi.RoomSaver
	if cfg.Database.Path != "" {
		st, err := store.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("close sqlite store", "err", closeErr)
			}
		}()
		if err := loadRooms(ctx, st, rooms); err != nil {
			return err
		}
		saver = st
	}

	scope, err := ratelimit.ParseScope(cfg.RateLimit.Scope)
	if err != nil {
		return err
	}
	tlsCfg, err := httpapi.NewTLSConfig(httpapi.TLSOptions{
		CertFile:   cfg.TLS.CertFile,
		KeyFile:    cfg.TLS.KeyFile,
		SelfSigned: cfg.TLS.SelfSigned,
		Hostname:   cfg.TLS.Hostname,
	})
	if err != nil {
		return err
	}
	authz := auth.NewStaticToken(cfg.Auth.Token)
	limiter := ratelimit.NewLimiter(scope, cfg.RateLimit.Limit, cfg.RateLimit.Window)
	slog.Info("message rate limit", "scope", limiter.Scope(), "limit", cfg.RateLimit.Limit, "window", cfg.RateLimit.Window)

	relay := ws.NewHandler(ws.Config{
		Rooms:      rooms,
		Registry:   registry,
		Limiter:    limiter,
		Authorizer: authz,
		Metrics:    relayMetrics,
		Options: ws.Options{
			MaxInvalidMessages: cfg.Relay.MaxInvalidMessages,
			MaxMessageSize:     cfg.Relay.MaxMessageSize,
			WriteTimeout:       cfg.Relay.WriteTimeout,
			EchoToSender:       cfg.Relay.EchoToSender,
			AllowedOrigins:     cfg.Server.AllowedOrigins,
		},
	})
	api := httpapi.New(httpapi.Deps{
		Rooms:              rooms,
		Registry:           registry,
		Authorizer:         authz,
		Saver:              saver,
		Metrics:            relayMetrics,
		DefaultDescription: cfg.Rooms.DefaultDescription,
		DefaultMaxUsers:    cfg.Rooms.DefaultMaxUsers,
		RateLimit:          cfg.API.RateLimit,
	})

	apiLn, err := net.Listen("tcp", cfg.Server.APIAddr)
	if err != nil {
		return fmt.Errorf("listen api: %w", err)
	}
	relayLn, err := net.Listen("tcp", cfg.Server.RelayAddr)
	if err != nil {
		_ = apiLn.Close()
		return fmt.Errorf("listen relay: %w", err)
	}

	coord := shutdown.NewCoordinator()
	go coord.Listen(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-coord.Done():
		case <-gctx.Done():
		}
		cancel()
		return nil
	})
	g.Go(func() error {
		return httpapi.Serve(gctx, apiLn, httpapi.Listener{
			Name:            "api",
			Handler:         api.Echo(),
			TLS:             tlsCfg,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		})
	})
	g.Go(func() error {
		return httpapi.Serve(gctx, relayLn, httpapi.Listener{
			Name:            "relay",
			Handler:         httpapi.NewRelay(relay),
			TLS:             tlsCfg,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			BeforeShutdown: func(sctx context.Context) {
				coord.Stop("Server shutting down")
				relay.Stop()
				shutdown.Drain(registry, coord.Reason())
				if err := relay.Wait(sctx); err != nil {
					slog.Warn("relay loops still running at shutdown", "err", err)
				}
			},
		})
	})
	g.Go(func() error {
		return relayMetrics.Run(gctx, cfg.Metrics.Interval)
	})

	err = g.Wait()
	slog.Info("server stopped", "reason", coord.Reason())
	return err
}

// loadRooms adds persisted rooms to the in-memory store.
func loadRooms(ctx context.Context, st *store.Store, rooms *core.RoomStore) error {
	persisted, err := st.Rooms(ctx)
	if err != nil {
		return fmt.Errorf("load rooms: %w", err)
	}
	for _, r := range persisted {
		err := rooms.AddRoom(r.ID, core.RoomInfo{
			Name:        r.Name,
			Description: r.Description,
			CreatedAt:   r.CreatedAt,
			MaxUsers:    r.MaxUsers,
		})
		if err != nil {
			slog.Warn("skipping persisted room", "room_id", r.ID, "err", err)
		}
	}
	slog.Info("rooms loaded", "count", rooms.Len())
	return nil
}

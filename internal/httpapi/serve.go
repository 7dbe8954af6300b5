package httpapi

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Listener describes one HTTP listener and how it winds down.
type Listener struct {
	Name    string
	Handler http.Handler
	TLS     *tls.Config
	// ShutdownTimeout bounds BeforeShutdown plus the HTTP shutdown.
	ShutdownTimeout time.Duration
	// BeforeShutdown runs after ctx is canceled and before the listening
	// socket is released.
	BeforeShutdown func(ctx context.Context)
}

// Serve runs l on ln until ctx is canceled or the server fails.
func Serve(ctx context.Context, ln net.Listener, l Listener) error {
	if l.TLS != nil {
		ln = tls.NewListener(ln, l.TLS)
	}
	srv := &http.Server{
		Handler:           l.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	slog.Info("listening", "server", l.Name, "addr", ln.Addr().String(), "tls", l.TLS != nil)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := l.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if l.BeforeShutdown != nil {
		l.BeforeShutdown(shutCtx)
	}
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("http shutdown", "server", l.Name, "err", err)
		_ = srv.Close()
	}
	slog.Info("server stopped", "server", l.Name)
	return nil
}

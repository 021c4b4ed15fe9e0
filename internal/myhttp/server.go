package myhttp

import (
	"comparison-controller/internal/env"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/xerrors"
)

type Server struct {
	Address                string
	TerminationGracePeriod time.Duration
	Lameduck               time.Duration
	KeepAlive              bool
	MaxConnections         int
}

// NewServerFromEnv reads the listener settings shared by all servers.
func NewServerFromEnv(defaultAddress string) *Server {
	return &Server{
		Address:                env.OrDefault("ADDRESS", defaultAddress),
		TerminationGracePeriod: env.OrDefault("TERMINATION_GRACE_PERIOD", 10*time.Second),
		Lameduck:               env.OrDefault("LAMEDUCK", 1*time.Second),
		KeepAlive:              env.OrDefault("HTTP_KEEPALIVE", true),
		MaxConnections:         env.OrDefault("MAX_CONNECTIONS", 65532),
	}
}

// Serve runs handler until SIGTERM is received or ctx is done, then waits
// for the lameduck period and shuts down gracefully.
func (s *Server) Serve(ctx context.Context, handler http.Handler, logger *slog.Logger) error {
	listener, err := net.Listen("tcp", s.Address)
	if err != nil {
		return xerrors.Errorf("failed to listen on address %s: %w", s.Address, err)
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server.SetKeepAlivesEnabled(s.KeepAlive)

	go func() {
		if err := server.Serve(netutil.LimitListener(listener, s.MaxConnections)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to serve HTTP", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM)
	defer signal.Stop(quit)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	time.Sleep(s.Lameduck)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.TerminationGracePeriod)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return xerrors.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

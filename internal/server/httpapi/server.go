package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/librarykeeper/internal/logging"
	"github.com/dmitrijs2005/librarykeeper/internal/server/metrics"
)

// Options configures the HTTP server.
type Options struct {
	Addr                string
	CORSOrigin          string
	MaxBodyBytes        int64
	RateLimitWindow     time.Duration
	RateLimitMax        int
	AuthRateLimitWindow time.Duration
	AuthRateLimitMax    int
	ShutdownTimeout     time.Duration
}

// Server serves the authentication API.
type Server struct {
	opts     Options
	logger   logging.Logger
	auth     AuthService
	verifier AccessVerifier
	audit    AuditRecorder
	db       Pinger
	metrics  *metrics.Metrics
	handler  http.Handler
}

// NewServer builds the router. db may be nil, in which case /health does
// not check the database. m may be nil.
func NewServer(opts Options, l logging.Logger, svc AuthService, v AccessVerifier, a AuditRecorder, db Pinger, m *metrics.Metrics) *Server {
	s := &Server{
		opts:     opts,
		logger:   l.With("module", "http_server"),
		auth:     svc,
		verifier: v,
		audit:    a,
		db:       db,
		metrics:  m,
	}
	s.handler = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully within ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, listen)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())
		errc <- srv.Serve(listen)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

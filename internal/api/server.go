// Package api provides the HTTP status server for SoilSense Core.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/soilsense-core/internal/infrastructure/config"
	"github.com/nerrad567/soilsense-core/internal/infrastructure/logging"
	"github.com/nerrad567/soilsense-core/internal/pipeline"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// readHeaderTimeout bounds how long a client may take to send request headers.
const readHeaderTimeout = 5 * time.Second

// HealthChecker reports whether a dependency is usable.
// *mqtt.Client satisfies it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// StateReporter exposes the pipeline lifecycle state.
// *pipeline.Pipeline satisfies it.
type StateReporter interface {
	State() pipeline.State
}

// Deps holds the dependencies required by the status server.
type Deps struct {
	Config    config.StatusConfig
	Logger    *logging.Logger
	Transport HealthChecker
	Pipeline  StateReporter
	Gatherer  prometheus.Gatherer // If nil, prometheus.DefaultGatherer is used
	Version   string
}

// Server is the HTTP status server for the ingester.
//
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.StatusConfig
	logger    *logging.Logger
	transport HealthChecker
	pipeline  StateReporter
	gatherer  prometheus.Gatherer
	version   string

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates a new status server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		transport: deps.Transport,
		pipeline:  deps.Pipeline,
		gatherer:  gatherer,
		version:   deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// The listener is bound synchronously so that a port conflict is reported
// here; requests are then served in a background goroutine until Close().
//
// Returns:
//   - error: If the listener cannot be bound (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("status server already started")
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	srv := s.server
	go func() {
		s.logger.Info("status server starting", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the status server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("status server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down status server: %w", err)
	}
	return nil
}

// HealthCheck verifies the status server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("status server health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("status server not started")
	}

	return nil
}

// Package api provides the HTTP REST API and WebSocket server for sensord.
//
// It exposes the ingest endpoint, reading and device queries, the connection
// log, statistics, cleanup, CSV export, and real-time reading broadcasts to
// dashboards and monitoring tools.
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
	"net/http"
	"time"

	"github.com/quietlane/sensord/internal/auth"
	"github.com/quietlane/sensord/internal/infrastructure/config"
	"github.com/quietlane/sensord/internal/infrastructure/logging"
	"github.com/quietlane/sensord/internal/ingest"
	"github.com/quietlane/sensord/internal/telemetry"
)

// gracefulShutdownTimeout is the fallback wait for in-flight requests when no
// shutdown timeout is configured.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker reports the availability of a backing store. The SQLite
// database satisfies it directly; the memory backend passes nil.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.ServerConfig
	WS          config.WebSocketConfig
	Metrics     config.MetricsConfig
	Logger      *logging.Logger
	Pipeline    *ingest.Pipeline
	Engine      *telemetry.Engine
	Verifier    *auth.Verifier
	StoreName   string        // reading store backend name, reported by /api/health
	StoreHealth HealthChecker // optional; nil skips the store probe in /api/health
	ExternalHub *Hub          // if set, the server uses this hub instead of creating its own
	Version     string
}

// Server is the HTTP API server for sensord.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.ServerConfig
	wsCfg       config.WebSocketConfig
	metricsCfg  config.MetricsConfig
	logger      *logging.Logger
	pipeline    *ingest.Pipeline
	engine      *telemetry.Engine
	verifier    *auth.Verifier
	storeName   string
	storeHealth HealthChecker
	version     string
	startedAt   time.Time
	server      *http.Server
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("ingest pipeline is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("query engine is required")
	}
	if deps.Verifier == nil {
		return nil, fmt.Errorf("credential verifier is required")
	}

	s := &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		metricsCfg:  deps.Metrics,
		logger:      deps.Logger,
		pipeline:    deps.Pipeline,
		engine:      deps.Engine,
		verifier:    deps.Verifier,
		storeName:   deps.StoreName,
		storeHealth: deps.StoreHealth,
		version:     deps.Version,
		startedAt:   time.Now().UTC(),
	}

	// Use an externally-provided hub if available (needed when the ingest
	// pipeline also broadcasts through it as a sink).
	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub when enabled, and launches
// the HTTP listener in a background goroutine. The server can be stopped with
// Close().
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	// Create the WebSocket hub unless one was injected externally. An
	// external hub is run by whoever created it.
	if s.wsCfg.Enabled && s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	// Start listening in background
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits for in-flight requests to complete up to the configured shutdown
// timeout, then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub)
	if s.cancel != nil {
		s.cancel()
	}

	timeout := time.Duration(s.cfg.Timeouts.Shutdown) * time.Second
	if timeout <= 0 {
		timeout = gracefulShutdownTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quietlane/sensord/internal/infrastructure/metrics"
)

// apiEndpoints lists the valid routes, returned with every 404 so misdirected
// sensors get a usable hint instead of a bare error.
var apiEndpoints = []string{
	"POST /api/data",
	"GET /api/data",
	"GET /api/data/export",
	"DELETE /api/data/cleanup",
	"GET /api/devices",
	"GET /api/logs",
	"GET /api/stats",
	"GET /api/health",
	"GET /api/ws",
}

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	// Prometheus exposition lives outside /api
	if s.metricsCfg.Enabled {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		// Health check (no credential required)
		r.Get("/health", s.handleHealth)

		r.Route("/data", func(r chi.Router) {
			r.Post("/", s.handleSubmitData)
			r.Get("/", s.handleListData)
			r.Get("/export", s.handleExportData)
			r.Delete("/cleanup", s.handleCleanup)
		})

		r.Get("/devices", s.handleListDevices)
		r.Get("/logs", s.handleListLogs)
		r.Get("/stats", s.handleStats)

		if s.wsCfg.Enabled {
			r.Get("/ws", s.handleWebSocket)
		}
	})

	return r
}

// handleHealth returns the server health status. The store probe turns the
// response into a 503 when the SQLite backend stops answering.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if s.storeHealth != nil {
		if err := s.storeHealth.HealthCheck(r.Context()); err != nil {
			s.logger.Error("store health check failed", "error", err)
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
		"store":   s.storeName,
	})
}

// handleNotFound answers unmatched routes with the endpoint directory.
func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"success":   false,
		"error":     ErrCodeNotFound,
		"message":   "Endpoint not found",
		"endpoints": apiEndpoints,
	})
}

// handleMethodNotAllowed answers known routes hit with the wrong method.
func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow,
		"Method "+r.Method+" not allowed on "+r.URL.Path)
}

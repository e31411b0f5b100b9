package api

import (
	"net/http"
	"time"
)

// handleStats returns the aggregate statistics snapshot.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Statistics(r.Context(), time.Now().UTC())
	if err != nil {
		s.logger.Error("computing statistics failed", "error", err)
		writeInternalError(w, "Failed to compute statistics")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"statistics": stats,
	})
}

package api

import "net/http"

// handleListDevices returns all registered devices keyed by ID.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices, count := s.engine.ListDevices()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   count,
		"devices": devices,
	})
}

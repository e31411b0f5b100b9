package api

import "net/http"

// handleListLogs returns recent connection log entries, newest first.
// Without a limit parameter the log's default applies.
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := parseIntParam(r.URL.Query().Get("limit"), "limit")
	if err != nil {
		writeInvalidPayload(w, err.Error())
		return
	}

	logs := s.engine.RecentLogs(limit)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(logs),
		"logs":    logs,
	})
}

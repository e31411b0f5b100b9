package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/quietlane/sensord/internal/ingest"
	"github.com/quietlane/sensord/internal/telemetry"
)

// headerAPIKey carries the shared-secret ingest credential.
const headerAPIKey = "X-API-Key"

// handleSubmitData accepts one sensor reading and runs it through the ingest
// pipeline. Every outcome, including rejections, leaves a connection log entry.
func (s *Server) handleSubmitData(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeInvalidPayload(w, "Unable to read request body")
		return
	}

	// An empty credential header is treated as absent, matching the broker
	// feed where the field is simply missing.
	key := r.Header.Get(headerAPIKey)

	res, err := s.pipeline.Submit(r.Context(), ingest.Request{
		Body:          body,
		APIKey:        key,
		APIKeyPresent: key != "",
		ClientAddr:    r.RemoteAddr,
		UserAgent:     r.UserAgent(),
		Source:        "http",
	})
	if err != nil {
		s.writeIngestError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Data received successfully",
		"entry_id":  res.EntryID,
		"device_id": res.DeviceID,
		"timestamp": res.ReceivedAt.Format(time.RFC3339),
	})
}

// handleListData returns a filtered, paginated page of readings, newest first.
func (s *Server) handleListData(w http.ResponseWriter, r *http.Request) {
	limit, err := parseIntParam(r.URL.Query().Get("limit"), "limit")
	if err != nil {
		writeInvalidPayload(w, err.Error())
		return
	}
	offset, err := parseIntParam(r.URL.Query().Get("offset"), "offset")
	if err != nil {
		writeInvalidPayload(w, err.Error())
		return
	}

	result, err := s.engine.ListReadings(r.Context(), telemetry.QueryParams{
		DeviceID: r.URL.Query().Get("device_id"),
		Offset:   offset,
		Limit:    limit,
	})
	if err != nil {
		s.logger.Error("listing readings failed", "error", err)
		writeInternalError(w, "Failed to query readings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"total":    result.Total,
		"returned": len(result.Readings),
		"offset":   result.Offset,
		"limit":    result.Limit,
		"data":     result.Readings,
	})
}

// handleCleanup removes readings older than the requested number of days.
// Without a days parameter the engine's default applies.
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	days, err := parseIntParam(r.URL.Query().Get("days"), "days")
	if err != nil {
		writeInvalidPayload(w, err.Error())
		return
	}

	res, err := s.engine.Cleanup(r.Context(), days)
	if err != nil {
		s.logger.Error("cleanup failed", "error", err)
		writeInternalError(w, "Failed to clean up readings")
		return
	}

	s.logger.Info("cleanup complete", "removed", res.Removed, "remaining", res.Remaining, "days", res.Days)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   fmt.Sprintf("Removed %d readings older than %d days", res.Removed, res.Days),
		"remaining": res.Remaining,
	})
}

// writeIngestError maps a pipeline failure to its HTTP status.
func (s *Server) writeIngestError(w http.ResponseWriter, err error) {
	var ingestErr *ingest.Error
	if !errors.As(err, &ingestErr) {
		writeInternalError(w, "Failed to store reading")
		return
	}

	switch ingestErr.Kind {
	case ingest.KindUnauthenticated:
		writeUnauthenticated(w, ingestErr.Message)
	case ingest.KindInvalidPayload:
		writeInvalidPayload(w, ingestErr.Message)
	default:
		writeInternalError(w, ingestErr.Message)
	}
}

// parseIntParam parses an optional integer query parameter. Empty means zero,
// which callers treat as "apply the default". Out-of-range values are the
// store's concern; only unparseable input is rejected here.
func parseIntParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return v, nil
}

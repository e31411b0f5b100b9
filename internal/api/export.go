package api

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/quietlane/sensord/internal/telemetry"
)

// csvHeader is the column layout of reading exports.
var csvHeader = []string{
	"id",
	"device_id",
	"sensor",
	"temperature",
	"humidity",
	"device_ts",
	"received_at",
	"client_addr",
	"device_name",
	"device_location",
	"auto_registered",
}

// handleExportData streams the filtered readings as CSV, oldest first.
// Queries return pages newest first, so the export walks offsets from the
// last page down to zero and each page back to front.
func (s *Server) handleExportData(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")

	// Probe for the total before writing headers so a query failure can
	// still become a JSON error response.
	probe, err := s.engine.ListReadings(r.Context(), telemetry.QueryParams{DeviceID: deviceID, Limit: 1})
	if err != nil {
		s.logger.Error("export query failed", "error", err)
		writeInternalError(w, "Failed to query readings")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="readings.csv"`)

	writer := csv.NewWriter(w)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	writer.Write(csvHeader)

	for off := lastPageOffset(probe.Total); off >= 0; off -= telemetry.MaxQueryLimit {
		result, err := s.engine.ListReadings(r.Context(), telemetry.QueryParams{
			DeviceID: deviceID,
			Offset:   off,
			Limit:    telemetry.MaxQueryLimit,
		})
		if err != nil {
			// Headers are already sent; all we can do is stop the stream.
			s.logger.Error("export query failed mid-stream", "error", err)
			break
		}

		for i := len(result.Readings) - 1; i >= 0; i-- {
			//nolint:errcheck // Best-effort write to response
			writer.Write(csvRow(result.Readings[i]))
		}
	}

	writer.Flush()
}

// lastPageOffset returns the offset of the final page when paging
// MaxQueryLimit rows at a time, or -1 for an empty result set.
func lastPageOffset(total int) int {
	if total <= 0 {
		return -1
	}
	return (total - 1) / telemetry.MaxQueryLimit * telemetry.MaxQueryLimit
}

// csvRow flattens one reading into export columns.
func csvRow(r telemetry.Reading) []string {
	deviceTS := ""
	if r.DeviceTS != nil {
		deviceTS = r.DeviceTS.Format(time.RFC3339)
	}

	return []string{
		r.ID,
		r.DeviceID,
		r.Sensor,
		strconv.FormatFloat(r.Temperature, 'f', -1, 64),
		strconv.FormatFloat(r.Humidity, 'f', -1, 64),
		deviceTS,
		r.ReceivedAt.Format(time.RFC3339),
		r.ClientAddr,
		r.DeviceMeta.Name,
		r.DeviceMeta.Location,
		strconv.FormatBool(r.DeviceMeta.AutoRegistered),
	}
}

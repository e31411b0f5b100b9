package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Physical plausibility bounds for the supported sensors. Values outside
// these ranges are stored anyway; they only trigger a warning.
const (
	TempMin = -50.0
	TempMax = 100.0

	HumidityMin = 0.0
	HumidityMax = 100.0
)

// epochMillisThreshold separates epoch seconds from epoch milliseconds:
// anything above it cannot be a plausible seconds value.
const epochMillisThreshold = 1_000_000_000_000

// payload is the wire shape of a reading submission. Temperature, humidity
// and ts stay raw so that presence can be told apart from a zero value, and
// so numeric strings can be coerced in a separate step.
type payload struct {
	DeviceID    string          `json:"device_id"`
	DeviceName  string          `json:"device_name"`
	Sensor      string          `json:"sensor"`
	Temperature json.RawMessage `json:"temperature"`
	Humidity    json.RawMessage `json:"humidity"`
	TS          json.RawMessage `json:"ts"`
}

// missingFields names the required fields absent from the payload. A literal
// 0 is present; only a missing key (or an empty identifier) counts.
func (p *payload) missingFields() []string {
	var missing []string
	if p.DeviceID == "" {
		missing = append(missing, "device_id")
	}
	if p.Sensor == "" {
		missing = append(missing, "sensor")
	}
	if len(p.Temperature) == 0 {
		missing = append(missing, "temperature")
	}
	if len(p.Humidity) == 0 {
		missing = append(missing, "humidity")
	}
	return missing
}

// coerceFloat accepts a JSON number or a numeric string. Non-finite values
// are refused: a NaN would poison every later JSON encode of the store.
func coerceFloat(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseDeviceTS interprets the optional device timestamp. Epoch seconds,
// epoch milliseconds and RFC 3339 text are accepted; anything else falls
// back to nil rather than failing the submission.
func parseDeviceTS(raw json.RawMessage) *time.Time {
	if len(raw) == 0 {
		return nil
	}

	var epoch int64
	if err := json.Unmarshal(raw, &epoch); err == nil {
		t := epochToTime(epoch)
		return &t
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)

	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
		t := epochToTime(epoch)
		return &t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t
	}
	return nil
}

// epochToTime accepts seconds or milliseconds.
func epochToTime(epoch int64) time.Time {
	if epoch > epochMillisThreshold {
		return time.UnixMilli(epoch).UTC()
	}
	return time.Unix(epoch, 0).UTC()
}

// rangeViolations lists which values fall outside the physical bounds.
func rangeViolations(temperature, humidity float64) []string {
	var violations []string
	if temperature < TempMin || temperature > TempMax {
		violations = append(violations,
			fmt.Sprintf("temperature %.1f outside [%g, %g]", temperature, TempMin, TempMax))
	}
	if humidity < HumidityMin || humidity > HumidityMax {
		violations = append(violations,
			fmt.Sprintf("humidity %.1f outside [%g, %g]", humidity, HumidityMin, HumidityMax))
	}
	return violations
}

// ExtractAPIKey pulls the optional api_key field out of a raw payload. Used
// by transports that have no header channel, such as the MQTT feed.
func ExtractAPIKey(body []byte) (string, bool) {
	var probe struct {
		APIKey *string `json:"api_key"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || probe.APIKey == nil {
		return "", false
	}
	return *probe.APIKey, true
}

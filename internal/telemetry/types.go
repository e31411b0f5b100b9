package telemetry

import (
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultCapacity bounds stored readings when no capacity is configured.
	DefaultCapacity = 1000

	// DefaultQueryLimit is the page size when a query names none.
	DefaultQueryLimit = 100

	// MaxQueryLimit caps the page size of a single query.
	MaxQueryLimit = 500
)

// Reading is one stored sensor measurement. Readings are immutable after
// creation; they leave the store only through capacity eviction or age-based
// cleanup.
type Reading struct {
	// ID is a generated, collision-free identifier.
	ID string `json:"id"`

	// DeviceID names the submitting device. It is a snapshot key, not a
	// live reference; the registry is not consulted after insert.
	DeviceID string `json:"device_id"`

	// Sensor is the sensor type label as supplied, e.g. "dht22".
	Sensor string `json:"sensor"`

	// Temperature in degrees Celsius. Out-of-range values are stored as-is.
	Temperature float64 `json:"temperature"`

	// Humidity as relative percentage. Same out-of-range policy.
	Humidity float64 `json:"humidity"`

	// DeviceTS is the device-supplied timestamp, when one was sent and
	// could be parsed.
	DeviceTS *time.Time `json:"device_ts,omitempty"`

	// ReceivedAt is the server receipt time (UTC), always set.
	ReceivedAt time.Time `json:"received_at"`

	// ClientAddr is the submitting client's address, or "mqtt:<topic>" for
	// broker-fed readings.
	ClientAddr string `json:"client_addr"`

	// DeviceMeta is the registry record for DeviceID frozen at insert time.
	DeviceMeta DeviceMeta `json:"device"`
}

// DeviceMeta is the slice of registry metadata snapshotted into each reading.
// Later registry changes never alter stored readings.
type DeviceMeta struct {
	Name           string `json:"name"`
	Location       string `json:"location"`
	AutoRegistered bool   `json:"auto_registered"`
}

// NewReadingID returns a globally unique reading identifier.
func NewReadingID() string {
	return "rdg-" + uuid.NewString()
}

// QueryParams selects and pages stored readings.
type QueryParams struct {
	// DeviceID filters to one device by exact match. Empty means all.
	DeviceID string

	// Offset skips readings from the oldest end of the filtered set.
	Offset int

	// Limit caps the page size. Zero means DefaultQueryLimit; values above
	// MaxQueryLimit are clamped.
	Limit int
}

// QueryResult is one page of readings plus the pagination actually applied.
type QueryResult struct {
	// Readings holds the page, newest reading first.
	Readings []Reading

	// Total is the filtered count before pagination.
	Total int

	// Offset and Limit echo the effective values after defaulting and
	// clamping.
	Offset int
	Limit  int
}

// normaliseLimit applies the default page size and the hard cap.
func normaliseLimit(limit int) int {
	if limit <= 0 {
		return DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}

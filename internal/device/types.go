package device

import "time"

// DefaultLocation is assigned when a device registers without a location.
const DefaultLocation = "Unknown"

// Device is a registered telemetry source.
//
// Records are immutable once created: registration never updates an existing
// entry, and all fields are plain values so copies are always safe to hand
// out.
type Device struct {
	// ID is the stable identifier devices send with every reading.
	ID string `json:"id"`

	// Name is a human-readable label, e.g. "Greenhouse Sensor".
	Name string `json:"name"`

	// Location describes where the device is installed. Defaults to
	// DefaultLocation when not supplied at registration.
	Location string `json:"location"`

	// RegisteredAt is when the device first became known (UTC).
	RegisteredAt time.Time `json:"registered_at"`

	// AutoRegistered is true when the device was created by the ingest
	// pipeline on first contact rather than configured up front.
	AutoRegistered bool `json:"auto_registered"`
}

// FallbackName derives a display name for devices that register without one.
func FallbackName(id string) string {
	return "Device " + id
}

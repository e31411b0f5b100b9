package ingest

import (
	"github.com/quietlane/sensord/internal/device"
	"github.com/quietlane/sensord/internal/telemetry"
)

// Sink receives pipeline events after they are committed. Calls happen on
// the submitting goroutine, so implementations must return quickly and do
// their own buffering; a sink can never fail a submission.
type Sink interface {
	// ReadingStored fires once per persisted reading.
	ReadingStored(r telemetry.Reading)

	// DeviceRegistered fires when a reading auto-registers its device.
	DeviceRegistered(d device.Device)

	// RangeViolation fires for stored readings with out-of-range values.
	RangeViolation(r telemetry.Reading, violations []string)
}

// NopSink implements Sink with no-ops. Sinks that only care about a subset
// of events embed it and override what they need.
type NopSink struct{}

func (NopSink) ReadingStored(telemetry.Reading)            {}
func (NopSink) DeviceRegistered(device.Device)             {}
func (NopSink) RangeViolation(telemetry.Reading, []string) {}

// MultiSink fans each event out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) ReadingStored(r telemetry.Reading) {
	for _, s := range m {
		s.ReadingStored(r)
	}
}

func (m MultiSink) DeviceRegistered(d device.Device) {
	for _, s := range m {
		s.DeviceRegistered(d)
	}
}

func (m MultiSink) RangeViolation(r telemetry.Reading, violations []string) {
	for _, s := range m {
		s.RangeViolation(r, violations)
	}
}

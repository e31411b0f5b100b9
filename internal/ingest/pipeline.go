package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quietlane/sensord/internal/audit"
	"github.com/quietlane/sensord/internal/auth"
	"github.com/quietlane/sensord/internal/device"
	"github.com/quietlane/sensord/internal/infrastructure/metrics"
	"github.com/quietlane/sensord/internal/telemetry"
)

// Logger is a minimal logging interface satisfied by *slog.Logger and the
// project's logging wrapper.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is configured.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Request is one raw submission handed to the pipeline by a transport.
type Request struct {
	// Body is the raw JSON payload.
	Body []byte

	// APIKey is the submitted credential; APIKeyPresent distinguishes an
	// empty credential from none at all.
	APIKey        string
	APIKeyPresent bool

	// ClientAddr and UserAgent identify the submitter in audit records.
	ClientAddr string
	UserAgent  string

	// Source names the transport, e.g. "http" or "mqtt".
	Source string
}

// Result identifies the stored reading on success.
type Result struct {
	EntryID    string
	DeviceID   string
	ReceivedAt time.Time
}

// Deps bundles the pipeline's collaborators.
type Deps struct {
	Verifier *auth.Verifier
	Registry *device.Registry
	Store    telemetry.Store
	Log      *audit.ConnectionLog

	// Sink receives post-persist events. Optional.
	Sink Sink

	// Logger for operational logging. Optional.
	Logger Logger
}

// Pipeline carries a submission from raw bytes to a stored reading, leaving
// behind the audit trail every attempt must produce: exactly one terminal
// SUCCESS or ERROR record, plus WARNING/INFO records for out-of-range values
// and auto-registration.
type Pipeline struct {
	verifier *auth.Verifier
	registry *device.Registry
	store    telemetry.Store
	log      *audit.ConnectionLog
	sink     Sink
	logger   Logger
}

// New creates an ingest pipeline from its dependencies.
func New(deps Deps) *Pipeline {
	p := &Pipeline{
		verifier: deps.Verifier,
		registry: deps.Registry,
		store:    deps.Store,
		log:      deps.Log,
		sink:     deps.Sink,
		logger:   deps.Logger,
	}
	if p.sink == nil {
		p.sink = NopSink{}
	}
	if p.logger == nil {
		p.logger = noopLogger{}
	}
	return p
}

// Submit runs one submission through the pipeline, short-circuiting on the
// first failure. Failures come back as *Error with the client-facing
// message; the matching ConnectionLog record is written before returning.
func (p *Pipeline) Submit(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	res, err := p.submit(ctx, req)

	result := "success"
	var ingestErr *Error
	if errors.As(err, &ingestErr) {
		result = ingestErr.Kind.String()
	} else if err != nil {
		result = KindInternal.String()
	}
	metrics.ObserveIngest(result, time.Since(start))

	return res, err
}

func (p *Pipeline) submit(ctx context.Context, req Request) (Result, error) {
	// Auth. An unset key means open mode: everything passes.
	if !p.verifier.Open() {
		if !req.APIKeyPresent {
			return p.reject(req, KindUnauthenticated, "Missing API key")
		}
		if !p.verifier.Verify(req.APIKey) {
			return p.reject(req, KindUnauthenticated, "Invalid API key")
		}
	}

	// Parse.
	var pl payload
	if err := json.Unmarshal(req.Body, &pl); err != nil {
		return p.reject(req, KindInvalidPayload, "Invalid JSON payload")
	}

	// Presence. Zero values count as present.
	if missing := pl.missingFields(); len(missing) > 0 {
		return p.reject(req, KindInvalidPayload,
			"Missing required fields: "+strings.Join(missing, ", "))
	}

	// Coercion.
	temperature, tOK := coerceFloat(pl.Temperature)
	humidity, hOK := coerceFloat(pl.Humidity)
	if !tOK || !hOK {
		return p.reject(req, KindInvalidPayload,
			"Temperature and humidity must be valid numbers")
	}

	// Range check. Non-fatal: warn and carry on.
	violations := rangeViolations(temperature, humidity)
	if len(violations) > 0 {
		p.record(req, audit.StatusWarning,
			fmt.Sprintf("Out-of-range values from %s: %s", pl.DeviceID, strings.Join(violations, "; ")))
		metrics.IncRangeViolation()
	}

	// Registry resolution, auto-registering unknown devices.
	dev, err := p.registry.Lookup(pl.DeviceID)
	autoRegistered := false
	if errors.Is(err, device.ErrNotFound) {
		dev, err = p.registry.Register(ctx, pl.DeviceID, pl.DeviceName, "", true)
		if err == nil {
			autoRegistered = true
			p.record(req, audit.StatusInfo, "Auto-registered new device: "+pl.DeviceID)
			metrics.IncDeviceAutoRegistered()
		}
	}
	if err != nil {
		p.logger.Error("device registration failed", "device_id", pl.DeviceID, "error", err)
		return p.reject(req, KindInternal, "Failed to store reading")
	}

	// Persist with the registry metadata frozen at this moment.
	reading := telemetry.Reading{
		ID:          telemetry.NewReadingID(),
		DeviceID:    pl.DeviceID,
		Sensor:      pl.Sensor,
		Temperature: temperature,
		Humidity:    humidity,
		DeviceTS:    parseDeviceTS(pl.TS),
		ReceivedAt:  time.Now().UTC(),
		ClientAddr:  req.ClientAddr,
		DeviceMeta: telemetry.DeviceMeta{
			Name:           dev.Name,
			Location:       dev.Location,
			AutoRegistered: dev.AutoRegistered,
		},
	}
	if err := p.store.Append(ctx, reading); err != nil {
		p.logger.Error("storing reading failed", "device_id", pl.DeviceID, "error", err)
		return p.reject(req, KindInternal, "Failed to store reading")
	}

	// Terminal audit record.
	p.record(req, audit.StatusSuccess, "Data received from "+pl.DeviceID)
	metrics.IncReadingStored()

	p.logger.Debug("reading stored",
		"entry_id", reading.ID,
		"device_id", reading.DeviceID,
		"source", req.Source,
	)

	// Post-persist fan-out. Sinks never affect the result.
	if autoRegistered {
		p.sink.DeviceRegistered(dev)
	}
	p.sink.ReadingStored(reading)
	if len(violations) > 0 {
		p.sink.RangeViolation(reading, violations)
	}

	return Result{
		EntryID:    reading.ID,
		DeviceID:   reading.DeviceID,
		ReceivedAt: reading.ReceivedAt,
	}, nil
}

// record appends one connection log entry for this request.
func (p *Pipeline) record(req Request, status audit.Status, message string) {
	p.log.Record(audit.Entry{
		Timestamp:     time.Now().UTC(),
		ClientAddr:    req.ClientAddr,
		UserAgent:     req.UserAgent,
		Status:        status,
		Message:       message,
		APIKeyPresent: req.APIKeyPresent,
	})
}

// reject writes the terminal ERROR record and returns the typed failure.
func (p *Pipeline) reject(req Request, kind Kind, message string) (Result, error) {
	p.record(req, audit.StatusError, message)
	return Result{}, &Error{Kind: kind, Message: message}
}

package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quietlane/sensord/internal/audit"
	"github.com/quietlane/sensord/internal/auth"
	"github.com/quietlane/sensord/internal/device"
	"github.com/quietlane/sensord/internal/telemetry"
)

func newTestPipeline(t *testing.T, apiKey string) (*Pipeline, *device.Registry, *telemetry.MemoryStore, *audit.ConnectionLog) {
	t.Helper()

	registry := device.NewRegistry(device.NewMemoryRepository())
	store := telemetry.NewMemoryStore(100)
	log := audit.NewConnectionLog(100)

	p := New(Deps{
		Verifier: auth.NewVerifier(apiKey),
		Registry: registry,
		Store:    store,
		Log:      log,
	})
	return p, registry, store, log
}

func authedRequest(body string) Request {
	return Request{
		Body:          []byte(body),
		APIKey:        "secret123",
		APIKeyPresent: true,
		ClientAddr:    "192.168.1.40",
		UserAgent:     "sensor-fw/1.2",
		Source:        "http",
	}
}

const validBody = `{"device_id":"DEV1","sensor":"dht22","temperature":22.5,"humidity":55}`

func assertKind(t *testing.T, err error, kind Kind, message string) {
	t.Helper()

	var ingestErr *Error
	if !errors.As(err, &ingestErr) {
		t.Fatalf("error = %v, want *ingest.Error", err)
	}
	if ingestErr.Kind != kind {
		t.Errorf("Kind = %v, want %v", ingestErr.Kind, kind)
	}
	if ingestErr.Message != message {
		t.Errorf("Message = %q, want %q", ingestErr.Message, message)
	}
}

func TestPipeline_Success(t *testing.T) {
	p, _, store, log := newTestPipeline(t, "secret123")
	ctx := context.Background()

	before := time.Now().UTC()
	res, err := p.Submit(ctx, authedRequest(validBody))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if res.EntryID == "" {
		t.Error("EntryID is empty")
	}
	if res.DeviceID != "DEV1" {
		t.Errorf("DeviceID = %q, want %q", res.DeviceID, "DEV1")
	}
	if res.ReceivedAt.Before(before) {
		t.Errorf("ReceivedAt = %v, want >= %v", res.ReceivedAt, before)
	}

	size, err := store.Size(ctx)
	if err != nil {
		t.Fatalf("Size() error = %v", err)
	}
	if size != 1 {
		t.Fatalf("store size = %d, want 1", size)
	}

	latest, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.Temperature != 22.5 || latest.Humidity != 55 {
		t.Errorf("stored values = %v/%v, want 22.5/55", latest.Temperature, latest.Humidity)
	}
	if latest.ClientAddr != "192.168.1.40" {
		t.Errorf("ClientAddr = %q, want %q", latest.ClientAddr, "192.168.1.40")
	}

	entries := log.Recent(0)
	if len(entries) != 2 {
		t.Fatalf("log has %d entries, want 2 (auto-register INFO + SUCCESS)", len(entries))
	}
	if entries[0].Status != audit.StatusSuccess {
		t.Errorf("terminal status = %v, want SUCCESS", entries[0].Status)
	}
	if entries[0].Message != "Data received from DEV1" {
		t.Errorf("terminal message = %q", entries[0].Message)
	}
	if !entries[0].APIKeyPresent {
		t.Error("APIKeyPresent = false, want true")
	}
}

func TestPipeline_MissingAPIKey(t *testing.T) {
	p, _, store, log := newTestPipeline(t, "secret123")
	ctx := context.Background()

	req := authedRequest(validBody)
	req.APIKey = ""
	req.APIKeyPresent = false

	_, err := p.Submit(ctx, req)
	assertKind(t, err, KindUnauthenticated, "Missing API key")

	size, _ := store.Size(ctx)
	if size != 0 {
		t.Errorf("store size = %d, want 0", size)
	}

	entries := log.Recent(0)
	if len(entries) != 1 {
		t.Fatalf("log has %d entries, want exactly 1", len(entries))
	}
	if entries[0].Status != audit.StatusError {
		t.Errorf("status = %v, want ERROR", entries[0].Status)
	}
	if entries[0].APIKeyPresent {
		t.Error("APIKeyPresent = true, want false")
	}
}

func TestPipeline_InvalidAPIKey(t *testing.T) {
	p, _, _, log := newTestPipeline(t, "secret123")

	req := authedRequest(validBody)
	req.APIKey = "wrong"

	_, err := p.Submit(context.Background(), req)
	assertKind(t, err, KindUnauthenticated, "Invalid API key")

	if entries := log.Recent(0); len(entries) != 1 {
		t.Errorf("log has %d entries, want exactly 1", len(entries))
	}
}

func TestPipeline_OpenMode(t *testing.T) {
	p, _, store, _ := newTestPipeline(t, "")
	ctx := context.Background()

	// No credential at all.
	req := Request{Body: []byte(validBody), ClientAddr: "10.0.0.1", UserAgent: "curl"}
	if _, err := p.Submit(ctx, req); err != nil {
		t.Fatalf("Submit() without credential error = %v", err)
	}

	// A bogus credential is ignored in open mode.
	req.APIKey = "anything"
	req.APIKeyPresent = true
	if _, err := p.Submit(ctx, req); err != nil {
		t.Fatalf("Submit() with bogus credential error = %v", err)
	}

	size, _ := store.Size(ctx)
	if size != 2 {
		t.Errorf("store size = %d, want 2", size)
	}
}

func TestPipeline_InvalidJSON(t *testing.T) {
	p, _, _, log := newTestPipeline(t, "secret123")

	_, err := p.Submit(context.Background(), authedRequest(`{oops`))
	assertKind(t, err, KindInvalidPayload, "Invalid JSON payload")

	if entries := log.Recent(0); len(entries) != 1 {
		t.Errorf("log has %d entries, want exactly 1", len(entries))
	}
}

func TestPipeline_MissingFields(t *testing.T) {
	p, _, _, _ := newTestPipeline(t, "secret123")

	_, err := p.Submit(context.Background(),
		authedRequest(`{"device_id":"DEV1","temperature":22.5}`))
	assertKind(t, err, KindInvalidPayload, "Missing required fields: sensor, humidity")
}

func TestPipeline_ZeroValuesAccepted(t *testing.T) {
	p, _, store, _ := newTestPipeline(t, "secret123")
	ctx := context.Background()

	_, err := p.Submit(ctx,
		authedRequest(`{"device_id":"DEV1","sensor":"dht22","temperature":0,"humidity":0}`))
	if err != nil {
		t.Fatalf("Submit() with zero values error = %v", err)
	}

	latest, _ := store.Latest(ctx)
	if latest.Temperature != 0 || latest.Humidity != 0 {
		t.Errorf("stored values = %v/%v, want 0/0", latest.Temperature, latest.Humidity)
	}
}

func TestPipeline_BadNumbers(t *testing.T) {
	p, _, _, _ := newTestPipeline(t, "secret123")

	_, err := p.Submit(context.Background(),
		authedRequest(`{"device_id":"DEV1","sensor":"dht22","temperature":"abc","humidity":55}`))
	assertKind(t, err, KindInvalidPayload, "Temperature and humidity must be valid numbers")
}

func TestPipeline_NumericStrings(t *testing.T) {
	p, _, store, _ := newTestPipeline(t, "secret123")
	ctx := context.Background()

	_, err := p.Submit(ctx,
		authedRequest(`{"device_id":"DEV1","sensor":"dht22","temperature":"21.75","humidity":"48"}`))
	if err != nil {
		t.Fatalf("Submit() with numeric strings error = %v", err)
	}

	latest, _ := store.Latest(ctx)
	if latest.Temperature != 21.75 || latest.Humidity != 48 {
		t.Errorf("stored values = %v/%v, want 21.75/48", latest.Temperature, latest.Humidity)
	}
}

func TestPipeline_RangeWarning(t *testing.T) {
	p, _, store, log := newTestPipeline(t, "secret123")
	ctx := context.Background()

	res, err := p.Submit(ctx,
		authedRequest(`{"device_id":"DEV1","sensor":"dht22","temperature":150,"humidity":55}`))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.EntryID == "" {
		t.Error("out-of-range reading was not stored")
	}

	size, _ := store.Size(ctx)
	if size != 1 {
		t.Errorf("store size = %d, want 1", size)
	}

	// WARNING precedes the terminal SUCCESS, plus the auto-register INFO.
	entries := log.Recent(0)
	if len(entries) != 3 {
		t.Fatalf("log has %d entries, want 3", len(entries))
	}
	if entries[0].Status != audit.StatusSuccess {
		t.Errorf("terminal status = %v, want SUCCESS", entries[0].Status)
	}

	var sawWarning bool
	for _, e := range entries {
		if e.Status == audit.StatusWarning {
			sawWarning = true
		}
	}
	if !sawWarning {
		t.Error("no WARNING entry recorded")
	}
}

func TestPipeline_AutoRegistration(t *testing.T) {
	p, registry, _, log := newTestPipeline(t, "secret123")
	ctx := context.Background()

	_, err := p.Submit(ctx,
		authedRequest(`{"device_id":"NEWDEV01","device_name":"Garage Sensor","sensor":"dht22","temperature":20,"humidity":40}`))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	dev, err := registry.Lookup("NEWDEV01")
	if err != nil {
		t.Fatalf("device not registered: %v", err)
	}
	if dev.Name != "Garage Sensor" {
		t.Errorf("Name = %q, want %q", dev.Name, "Garage Sensor")
	}
	if dev.Location != device.DefaultLocation {
		t.Errorf("Location = %q, want %q", dev.Location, device.DefaultLocation)
	}
	if !dev.AutoRegistered {
		t.Error("AutoRegistered = false, want true")
	}

	var sawInfo bool
	for _, e := range log.Recent(0) {
		if e.Status == audit.StatusInfo && e.Message == "Auto-registered new device: NEWDEV01" {
			sawInfo = true
		}
	}
	if !sawInfo {
		t.Error("no auto-registration INFO entry recorded")
	}
}

func TestPipeline_AutoRegistrationFallbackName(t *testing.T) {
	p, registry, _, _ := newTestPipeline(t, "secret123")

	_, err := p.Submit(context.Background(),
		authedRequest(`{"device_id":"NEWDEV02","sensor":"dht22","temperature":20,"humidity":40}`))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	dev, err := registry.Lookup("NEWDEV02")
	if err != nil {
		t.Fatalf("device not registered: %v", err)
	}
	if dev.Name != "Device NEWDEV02" {
		t.Errorf("Name = %q, want fallback %q", dev.Name, "Device NEWDEV02")
	}
}

func TestPipeline_KnownDeviceSnapshot(t *testing.T) {
	p, registry, store, log := newTestPipeline(t, "secret123")
	ctx := context.Background()

	if _, err := registry.Register(ctx, "DEV1", "Greenhouse", "North wall", false); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// A differing device_name in the payload must not touch the registry.
	_, err := p.Submit(ctx,
		authedRequest(`{"device_id":"DEV1","device_name":"Imposter","sensor":"dht22","temperature":20,"humidity":40}`))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	latest, _ := store.Latest(ctx)
	if latest.DeviceMeta.Name != "Greenhouse" || latest.DeviceMeta.Location != "North wall" {
		t.Errorf("DeviceMeta = %+v, want registry snapshot", latest.DeviceMeta)
	}
	if latest.DeviceMeta.AutoRegistered {
		t.Error("DeviceMeta.AutoRegistered = true, want false")
	}

	dev, _ := registry.Lookup("DEV1")
	if dev.Name != "Greenhouse" {
		t.Errorf("registry Name = %q, registration must stay immutable", dev.Name)
	}

	// No INFO record for a known device: just the terminal SUCCESS.
	if entries := log.Recent(0); len(entries) != 1 {
		t.Errorf("log has %d entries, want 1", len(entries))
	}
}

func TestPipeline_DeviceTimestamp(t *testing.T) {
	p, _, store, _ := newTestPipeline(t, "secret123")
	ctx := context.Background()

	_, err := p.Submit(ctx,
		authedRequest(`{"device_id":"DEV1","sensor":"dht22","temperature":20,"humidity":40,"ts":1710412013}`))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	latest, _ := store.Latest(ctx)
	want := time.Date(2024, 3, 14, 10, 26, 53, 0, time.UTC)
	if latest.DeviceTS == nil || !latest.DeviceTS.Equal(want) {
		t.Errorf("DeviceTS = %v, want %v", latest.DeviceTS, want)
	}

	// Unparseable timestamps degrade to nil, they never fail the submit.
	_, err = p.Submit(ctx,
		authedRequest(`{"device_id":"DEV1","sensor":"dht22","temperature":20,"humidity":40,"ts":"yesterday"}`))
	if err != nil {
		t.Fatalf("Submit() with bad ts error = %v", err)
	}
	latest, _ = store.Latest(ctx)
	if latest.DeviceTS != nil {
		t.Errorf("DeviceTS = %v, want nil", latest.DeviceTS)
	}
}

type failingStore struct{}

func (failingStore) Append(context.Context, telemetry.Reading) error {
	return errors.New("disk full")
}

func (failingStore) Query(context.Context, telemetry.QueryParams) (telemetry.QueryResult, error) {
	return telemetry.QueryResult{}, nil
}

func (failingStore) CleanupOlderThan(context.Context, time.Time) (int, error) { return 0, nil }
func (failingStore) Size(context.Context) (int, error)                        { return 0, nil }
func (failingStore) Latest(context.Context) (*telemetry.Reading, error)       { return nil, nil }
func (failingStore) CountSince(context.Context, time.Time) (int, error)       { return 0, nil }

func TestPipeline_StoreFailure(t *testing.T) {
	registry := device.NewRegistry(device.NewMemoryRepository())
	log := audit.NewConnectionLog(100)
	spy := &spySink{}

	p := New(Deps{
		Verifier: auth.NewVerifier("secret123"),
		Registry: registry,
		Store:    failingStore{},
		Log:      log,
		Sink:     spy,
	})

	if _, err := registry.Register(context.Background(), "DEV1", "Sensor", "", false); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, err := p.Submit(context.Background(), authedRequest(validBody))
	assertKind(t, err, KindInternal, "Failed to store reading")

	entries := log.Recent(0)
	if len(entries) != 1 {
		t.Fatalf("log has %d entries, want 1", len(entries))
	}
	if entries[0].Status != audit.StatusError {
		t.Errorf("status = %v, want ERROR", entries[0].Status)
	}

	if len(spy.stored) != 0 {
		t.Error("sink received a reading despite the store failure")
	}
}

type spySink struct {
	stored     []telemetry.Reading
	registered []device.Device
	violations [][]string
}

func (s *spySink) ReadingStored(r telemetry.Reading) { s.stored = append(s.stored, r) }
func (s *spySink) DeviceRegistered(d device.Device)  { s.registered = append(s.registered, d) }

func (s *spySink) RangeViolation(_ telemetry.Reading, v []string) {
	s.violations = append(s.violations, v)
}

func TestPipeline_SinkFanOut(t *testing.T) {
	registry := device.NewRegistry(device.NewMemoryRepository())
	store := telemetry.NewMemoryStore(100)
	log := audit.NewConnectionLog(100)
	spy := &spySink{}

	p := New(Deps{
		Verifier: auth.NewVerifier("secret123"),
		Registry: registry,
		Store:    store,
		Log:      log,
		Sink:     spy,
	})

	_, err := p.Submit(context.Background(),
		authedRequest(`{"device_id":"NEWDEV01","sensor":"dht22","temperature":150,"humidity":40}`))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if len(spy.stored) != 1 {
		t.Errorf("ReadingStored calls = %d, want 1", len(spy.stored))
	}
	if len(spy.registered) != 1 || spy.registered[0].ID != "NEWDEV01" {
		t.Errorf("DeviceRegistered calls = %+v, want one for NEWDEV01", spy.registered)
	}
	if len(spy.violations) != 1 {
		t.Errorf("RangeViolation calls = %d, want 1", len(spy.violations))
	}
}

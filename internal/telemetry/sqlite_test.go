package telemetry

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the readings table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE readings (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			device_id TEXT NOT NULL,
			sensor TEXT NOT NULL,
			temperature REAL NOT NULL,
			humidity REAL NOT NULL,
			device_ts TEXT,
			received_at TEXT NOT NULL,
			received_unix INTEGER NOT NULL,
			client_addr TEXT NOT NULL DEFAULT '',
			device_name TEXT NOT NULL DEFAULT '',
			device_location TEXT NOT NULL DEFAULT '',
			device_auto_registered INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX idx_readings_device_id ON readings(device_id);
		CREATE INDEX idx_readings_received_unix ON readings(received_unix);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t), 100)
	ctx := context.Background()

	deviceTS := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	received := time.Date(2026, 3, 14, 9, 26, 54, 123456789, time.UTC)
	r := Reading{
		ID:          NewReadingID(),
		DeviceID:    "ESP8266-01",
		Sensor:      "dht22",
		Temperature: 22.5,
		Humidity:    55,
		DeviceTS:    &deviceTS,
		ReceivedAt:  received,
		ClientAddr:  "192.168.1.40",
		DeviceMeta: DeviceMeta{
			Name:           "Greenhouse Sensor",
			Location:       "North wall",
			AutoRegistered: true,
		},
	}

	if err := store.Append(ctx, r); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	res, err := store.Query(ctx, QueryParams{DeviceID: "ESP8266-01"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(res.Readings) != 1 {
		t.Fatalf("page length = %d, want 1", len(res.Readings))
	}

	got := res.Readings[0]
	if got.ID != r.ID {
		t.Errorf("ID = %q, want %q", got.ID, r.ID)
	}
	if got.Temperature != 22.5 || got.Humidity != 55 {
		t.Errorf("values = %v/%v, want 22.5/55", got.Temperature, got.Humidity)
	}
	if got.DeviceTS == nil || !got.DeviceTS.Equal(deviceTS) {
		t.Errorf("DeviceTS = %v, want %v", got.DeviceTS, deviceTS)
	}
	if !got.ReceivedAt.Equal(received) {
		t.Errorf("ReceivedAt = %v, want %v", got.ReceivedAt, received)
	}
	if got.DeviceMeta.Name != "Greenhouse Sensor" || !got.DeviceMeta.AutoRegistered {
		t.Errorf("DeviceMeta = %+v", got.DeviceMeta)
	}
}

func TestSQLiteStore_NilDeviceTS(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t), 100)
	ctx := context.Background()

	if err := store.Append(ctx, makeReading("DEV1", time.Now().UTC(), 1)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	latest, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.DeviceTS != nil {
		t.Errorf("DeviceTS = %v, want nil", latest.DeviceTS)
	}
}

func TestSQLiteStore_FIFOEviction(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t), 5)
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 1; i <= 8; i++ {
		if err := store.Append(ctx, makeReading("DEV1", now, float64(i))); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	size, err := store.Size(ctx)
	if err != nil {
		t.Fatalf("Size() error = %v", err)
	}
	if size != 5 {
		t.Errorf("Size = %d, want 5", size)
	}

	res, err := store.Query(ctx, QueryParams{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if got := res.Readings[0].Temperature; got != 8 {
		t.Errorf("newest marker = %v, want 8", got)
	}
	if got := res.Readings[4].Temperature; got != 4 {
		t.Errorf("oldest surviving marker = %v, want 4", got)
	}
}

func TestSQLiteStore_QueryPagination(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t), 100)
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 1; i <= 10; i++ {
		if err := store.Append(ctx, makeReading("DEV1", now, float64(i))); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	res, err := store.Query(ctx, QueryParams{Offset: 2, Limit: 3})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if res.Total != 10 {
		t.Errorf("Total = %d, want 10", res.Total)
	}
	want := []float64{5, 4, 3}
	for i, r := range res.Readings {
		if r.Temperature != want[i] {
			t.Errorf("Readings[%d] marker = %v, want %v", i, r.Temperature, want[i])
		}
	}
}

func TestSQLiteStore_QueryDeviceFilter(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t), 100)
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 1; i <= 6; i++ {
		id := "DEV1"
		if i%2 == 0 {
			id = "DEV2"
		}
		if err := store.Append(ctx, makeReading(id, now, float64(i))); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	res, err := store.Query(ctx, QueryParams{DeviceID: "DEV2"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if res.Total != 3 {
		t.Errorf("Total = %d, want 3", res.Total)
	}
	for _, r := range res.Readings {
		if r.DeviceID != "DEV2" {
			t.Errorf("filtered page contains %q", r.DeviceID)
		}
	}
}

func TestSQLiteStore_CleanupOlderThan(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t), 100)
	ctx := context.Background()

	cutoff := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	if err := store.Append(ctx, makeReading("DEV1", cutoff.Add(-time.Hour), 1)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := store.Append(ctx, makeReading("DEV1", cutoff, 2)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := store.Append(ctx, makeReading("DEV1", cutoff.Add(time.Hour), 3)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	removed, err := store.CleanupOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("CleanupOlderThan() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	size, err := store.Size(ctx)
	if err != nil {
		t.Fatalf("Size() error = %v", err)
	}
	if size != 2 {
		t.Errorf("Size after cleanup = %d, want 2", size)
	}
}

func TestSQLiteStore_LatestEmpty(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t), 100)

	latest, err := store.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest != nil {
		t.Errorf("Latest on empty store = %+v, want nil", latest)
	}
}

func TestSQLiteStore_CountSince(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t), 100)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	for i, ts := range []time.Time{base.Add(-time.Minute), base, base.Add(time.Minute)} {
		if err := store.Append(ctx, makeReading("DEV1", ts, float64(i))); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	count, err := store.CountSince(ctx, base)
	if err != nil {
		t.Fatalf("CountSince() error = %v", err)
	}
	if count != 2 {
		t.Errorf("CountSince = %d, want 2", count)
	}
}

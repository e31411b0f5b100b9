package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/quietlane/sensord/internal/audit"
	"github.com/quietlane/sensord/internal/device"
)

// DefaultCleanupDays is the cleanup age when a request names none.
const DefaultCleanupDays = 7

// Statistics is the aggregate snapshot served by the stats endpoint.
type Statistics struct {
	TotalDevices  int      `json:"total_devices"`
	TotalReadings int      `json:"total_readings"`
	DataLastHour  int      `json:"data_last_hour"`
	DataLast24h   int      `json:"data_last_24h"`
	LatestReading *Reading `json:"latest_reading"`
}

// CleanupResult reports an age-based cleanup run.
type CleanupResult struct {
	Removed   int
	Remaining int
	Days      int
}

// Engine answers the read side: listings, statistics, and cleanup. It owns no
// state of its own; everything delegates to the registry, store, and
// connection log.
type Engine struct {
	registry *device.Registry
	store    Store
	log      *audit.ConnectionLog
}

// NewEngine creates a query engine over the given collaborators.
func NewEngine(registry *device.Registry, store Store, log *audit.ConnectionLog) *Engine {
	return &Engine{
		registry: registry,
		store:    store,
		log:      log,
	}
}

// ListDevices returns all registered devices keyed by ID, with the count.
func (e *Engine) ListDevices() (map[string]device.Device, int) {
	devices := e.registry.List()
	return devices, len(devices)
}

// ListReadings returns a filtered, paginated page of stored readings.
func (e *Engine) ListReadings(ctx context.Context, params QueryParams) (QueryResult, error) {
	return e.store.Query(ctx, params)
}

// RecentLogs returns the last n connection log entries, newest first.
// n <= 0 applies the connection log's default.
func (e *Engine) RecentLogs(n int) []audit.Entry {
	return e.log.Recent(n)
}

// Statistics summarises the stored data as of now.
func (e *Engine) Statistics(ctx context.Context, now time.Time) (Statistics, error) {
	total, err := e.store.Size(ctx)
	if err != nil {
		return Statistics{}, fmt.Errorf("sizing store: %w", err)
	}

	lastHour, err := e.store.CountSince(ctx, now.Add(-time.Hour))
	if err != nil {
		return Statistics{}, fmt.Errorf("counting last hour: %w", err)
	}

	lastDay, err := e.store.CountSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return Statistics{}, fmt.Errorf("counting last 24h: %w", err)
	}

	latest, err := e.store.Latest(ctx)
	if err != nil {
		return Statistics{}, fmt.Errorf("loading latest reading: %w", err)
	}

	return Statistics{
		TotalDevices:  e.registry.Count(),
		TotalReadings: total,
		DataLastHour:  lastHour,
		DataLast24h:   lastDay,
		LatestReading: latest,
	}, nil
}

// Cleanup removes readings older than the given number of days and reports
// what was removed and what remains. days <= 0 falls back to
// DefaultCleanupDays.
func (e *Engine) Cleanup(ctx context.Context, days int) (CleanupResult, error) {
	if days <= 0 {
		days = DefaultCleanupDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	removed, err := e.store.CleanupOlderThan(ctx, cutoff)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("cleaning up readings: %w", err)
	}

	remaining, err := e.store.Size(ctx)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("sizing store: %w", err)
	}

	return CleanupResult{Removed: removed, Remaining: remaining, Days: days}, nil
}

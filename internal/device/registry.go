package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Logger is a minimal logging interface satisfied by *slog.Logger and the
// project's logging wrapper. Defined here to avoid a dependency on the
// logging package.
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

// Registry is the catalogue of every device known to the service. Reads are
// served from an in-memory cache; writes go through the repository first and
// are cached on success.
//
// Device records are immutable: Register never modifies an existing entry.
type Registry struct {
	repo    Repository
	cache   map[string]Device
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a device registry backed by the given repository.
// Call RefreshCache before serving lookups.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for registry operations.
// If not called, a no-op logger is used.
func (r *Registry) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// RefreshCache reloads all devices from the repository into the cache.
// Called at startup so persisted registrations survive restarts in
// SQLite mode.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]Device, len(devices))
	for _, d := range devices {
		r.cache[d.ID] = d
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// Lookup returns the device with the given ID.
// Returns ErrNotFound if the device is not registered.
func (r *Registry) Lookup(id string) (Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	d, ok := r.cache[id]
	if !ok {
		return Device{}, ErrNotFound
	}
	return d, nil
}

// Register adds a device to the registry. Registration is idempotent: if the
// ID already exists, the stored record is returned untouched regardless of
// the remaining arguments.
//
// An empty name falls back to FallbackName(id); an empty location falls back
// to DefaultLocation.
func (r *Registry) Register(ctx context.Context, id, name, location string, autoRegistered bool) (Device, error) {
	if id == "" {
		return Device{}, ErrInvalidID
	}

	r.cacheMu.RLock()
	existing, ok := r.cache[id]
	r.cacheMu.RUnlock()
	if ok {
		return existing, nil
	}

	if name == "" {
		name = FallbackName(id)
	}
	if location == "" {
		location = DefaultLocation
	}

	d := Device{
		ID:             id,
		Name:           name,
		Location:       location,
		RegisteredAt:   time.Now().UTC(),
		AutoRegistered: autoRegistered,
	}

	if err := r.repo.Create(ctx, &d); err != nil {
		if errors.Is(err, ErrExists) {
			// Lost a registration race; the stored record wins.
			stored, getErr := r.repo.GetByID(ctx, id)
			if getErr != nil {
				return Device{}, fmt.Errorf("loading device %q: %w", id, getErr)
			}
			r.cacheMu.Lock()
			r.cache[id] = *stored
			r.cacheMu.Unlock()
			return *stored, nil
		}
		return Device{}, fmt.Errorf("registering device %q: %w", id, err)
	}

	r.cacheMu.Lock()
	r.cache[id] = d
	r.cacheMu.Unlock()

	r.logger.Info("device registered",
		"id", d.ID,
		"name", d.Name,
		"location", d.Location,
		"auto_registered", d.AutoRegistered,
	)
	return d, nil
}

// List returns all registered devices keyed by ID.
// The returned map is a copy and safe for the caller to modify.
func (r *Registry) List() map[string]Device {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	devices := make(map[string]Device, len(r.cache))
	for id, d := range r.cache {
		devices[id] = d
	}
	return devices
}

// Count returns the number of registered devices.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	return len(r.cache)
}

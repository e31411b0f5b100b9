// Package alert delivers out-of-range readings to an operator webhook.
//
// The notifier hangs off the ingest pipeline as a sink: every range
// violation becomes a JSON POST to the configured endpoint. Delivery is
// best-effort and never blocks ingestion; a per-device cooldown stops a
// misbehaving sensor from flooding the channel.
package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/quietlane/sensord/internal/ingest"
	"github.com/quietlane/sensord/internal/telemetry"
)

// Defaults applied when options are not supplied.
const (
	DefaultTimeout  = 10 * time.Second
	DefaultCooldown = 5 * time.Minute
)

// Logger captures the subset of logging the notifier needs.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(msg string, args ...any) {}

// Clock provides time for cooldown bookkeeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Notifier posts range-violation alerts to a webhook endpoint.
//
// It implements the ingest sink interface; the reading-stored and
// device-registered events are ignored.
type Notifier struct {
	ingest.NopSink

	url      string
	client   *resty.Client
	cooldown time.Duration
	clock    Clock
	logger   Logger

	mu       sync.Mutex
	lastSent map[string]time.Time

	wg sync.WaitGroup
}

// Option configures the notifier.
type Option func(*Notifier)

// WithTimeout overrides the webhook request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.client.SetTimeout(timeout)
		}
	}
}

// WithCooldown sets the minimum interval between alerts for the same device.
func WithCooldown(interval time.Duration) Option {
	return func(n *Notifier) {
		if interval > 0 {
			n.cooldown = interval
		}
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithLogger attaches a logger for delivery failures.
func WithLogger(logger Logger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewNotifier constructs a webhook notifier for the given endpoint.
func NewNotifier(url string, opts ...Option) (*Notifier, error) {
	if url == "" {
		return nil, errors.New("alert: empty webhook url")
	}
	n := &Notifier{
		url:      url,
		client:   resty.New().SetTimeout(DefaultTimeout),
		cooldown: DefaultCooldown,
		clock:    systemClock{},
		logger:   noopLogger{},
		lastSent: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

type alertPayload struct {
	DeviceID    string    `json:"device_id"`
	Sensor      string    `json:"sensor"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Violations  []string  `json:"violations"`
	ReceivedAt  time.Time `json:"received_at"`
}

// Notify posts a single alert, honouring the per-device cooldown. A
// suppressed alert returns nil; the cooldown is only marked after a
// successful delivery so transient failures retry on the next violation.
func (n *Notifier) Notify(ctx context.Context, reading telemetry.Reading, violations []string) error {
	if n == nil || n.url == "" {
		return errors.New("alert: notifier not configured")
	}
	if !n.shouldSend(reading.DeviceID) {
		return nil
	}

	payload := alertPayload{
		DeviceID:    reading.DeviceID,
		Sensor:      reading.Sensor,
		Temperature: reading.Temperature,
		Humidity:    reading.Humidity,
		Violations:  violations,
		ReceivedAt:  reading.ReceivedAt,
	}
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("alert: webhook post: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("alert: webhook returned %d", resp.StatusCode())
	}

	n.markSent(reading.DeviceID)
	return nil
}

// RangeViolation dispatches the alert in the background so the caller is
// never held up by webhook latency.
func (n *Notifier) RangeViolation(reading telemetry.Reading, violations []string) {
	if n == nil {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.Notify(context.Background(), reading, violations); err != nil {
			n.logger.Warn("alert webhook delivery failed",
				"device_id", reading.DeviceID,
				"error", err)
		}
	}()
}

// Close waits for in-flight deliveries to finish.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

func (n *Notifier) shouldSend(deviceID string) bool {
	if n.cooldown <= 0 {
		return true
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	last, ok := n.lastSent[deviceID]
	if !ok {
		return true
	}
	return n.clock.Now().Sub(last) >= n.cooldown
}

func (n *Notifier) markSent(deviceID string) {
	n.mu.Lock()
	n.lastSent[deviceID] = n.clock.Now()
	n.mu.Unlock()
}

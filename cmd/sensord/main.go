// sensord - IoT Sensor Telemetry Service
//
// This is the main entry point for the sensord application. sensord is a
// small telemetry backbone for sensor fleets:
//   - HTTP and MQTT ingest with shared-secret authentication
//   - Bounded reading store (in-memory or SQLite)
//   - Query, statistics, CSV export, and WebSocket live feeds
//   - Optional InfluxDB mirroring and range-violation webhooks
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	_ "github.com/quietlane/sensord/migrations"

	"github.com/quietlane/sensord/internal/alert"
	"github.com/quietlane/sensord/internal/api"
	"github.com/quietlane/sensord/internal/audit"
	"github.com/quietlane/sensord/internal/auth"
	"github.com/quietlane/sensord/internal/device"
	"github.com/quietlane/sensord/internal/infrastructure/config"
	"github.com/quietlane/sensord/internal/infrastructure/database"
	"github.com/quietlane/sensord/internal/infrastructure/influxdb"
	"github.com/quietlane/sensord/internal/infrastructure/logging"
	"github.com/quietlane/sensord/internal/infrastructure/metrics"
	"github.com/quietlane/sensord/internal/infrastructure/mqtt"
	"github.com/quietlane/sensord/internal/ingest"
	"github.com/quietlane/sensord/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Optional .env for local development; a missing file is not an error.
	_ = godotenv.Load()

	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	// This is the Go pattern for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Run the application
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting sensord",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Register Prometheus collectors before anything observes them
	if cfg.Metrics.Enabled {
		metrics.Init()
		log.Info("Prometheus metrics enabled", "path", "/metrics")
	}

	// Select the storage backend. The sqlite backend persists devices and
	// readings across restarts; memory keeps everything in-process.
	var (
		db          *database.DB
		deviceRepo  device.Repository
		store       telemetry.Store
		storeHealth api.HealthChecker
	)
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		db, err = database.Open(database.Config{
			Path:        cfg.Store.SQLite.Path,
			WALMode:     cfg.Store.SQLite.WALMode,
			BusyTimeout: cfg.Store.SQLite.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database ready", "path", cfg.Store.SQLite.Path)

		deviceRepo = device.NewSQLiteRepository(db.DB)
		store = telemetry.NewSQLiteStore(db.DB, cfg.Store.Capacity)
		storeHealth = db

	case config.BackendMemory:
		deviceRepo = device.NewMemoryRepository()
		store = telemetry.NewMemoryStore(cfg.Store.Capacity)
		log.Info("using in-memory store", "capacity", cfg.Store.Capacity)

	default:
		// Unreachable after config validation; kept for safety.
		return fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	// Initialise device registry
	deviceRegistry := device.NewRegistry(deviceRepo)
	deviceRegistry.SetLogger(log)

	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.Count())

	// Pre-register configured devices. Register is idempotent, so restarts
	// with the same config are safe.
	for _, d := range cfg.Devices {
		if _, seedErr := deviceRegistry.Register(ctx, d.ID, d.Name, d.Location, false); seedErr != nil {
			return fmt.Errorf("seeding device %s: %w", d.ID, seedErr)
		}
	}
	if len(cfg.Devices) > 0 {
		log.Info("seed devices registered", "count", len(cfg.Devices))
	}

	// Connection log is in-memory in both storage modes
	connLog := audit.NewConnectionLog(cfg.Store.LogCapacity)

	verifier := auth.NewVerifier(cfg.Auth.APIKey)
	if verifier.Open() {
		log.Warn("no API key configured, accepting unauthenticated submissions")
	}

	// Assemble the post-persist sinks: WebSocket broadcasts, the InfluxDB
	// mirror, and the range-violation webhook. All optional.
	var sinks ingest.MultiSink

	var hub *api.Hub
	if cfg.WebSocket.Enabled {
		hub = api.NewHub(cfg.WebSocket, log)
		go hub.Run(ctx)
		sinks = append(sinks, &wsHubSink{hub: hub})
	}

	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB mirror disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		sinks = append(sinks, &influxSink{client: influxClient})
		log.Info("InfluxDB mirror connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	var notifier *alert.Notifier
	if cfg.Alerts.WebhookURL != "" {
		notifier, err = alert.NewNotifier(cfg.Alerts.WebhookURL,
			alert.WithTimeout(cfg.GetAlertTimeout()),
			alert.WithCooldown(cfg.GetAlertCooldown()),
			alert.WithLogger(log),
		)
		if err != nil {
			return fmt.Errorf("creating alert notifier: %w", err)
		}
		defer func() {
			log.Info("draining alert notifier")
			notifier.Close()
		}()
		sinks = append(sinks, notifier)
		log.Info("alert webhook configured", "url", cfg.Alerts.WebhookURL)
	}

	// Ingest pipeline and read-side query engine share the same stores
	pipeline := ingest.New(ingest.Deps{
		Verifier: verifier,
		Registry: deviceRegistry,
		Store:    store,
		Log:      connLog,
		Sink:     sinks,
		Logger:   log,
	})
	engine := telemetry.NewEngine(deviceRegistry, store, connLog)

	// Connect the MQTT ingest feed (optional)
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	switch {
	case errors.Is(err, mqtt.ErrDisabled):
		log.Info("MQTT ingest feed disabled")
	case err != nil:
		return fmt.Errorf("connecting to MQTT: %w", err)
	default:
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		feed := ingest.NewFeed(pipeline, cfg.MQTT.Topic, byte(cfg.MQTT.QoS))
		if feedErr := feed.Start(mqttClient); feedErr != nil {
			return fmt.Errorf("starting ingest feed: %w", feedErr)
		}
		log.Info("MQTT ingest feed started",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"topic", cfg.MQTT.Topic,
		)
	}

	// Start the API server
	srv, err := api.New(api.Deps{
		Config:      cfg.Server,
		WS:          cfg.WebSocket,
		Metrics:     cfg.Metrics,
		Logger:      log,
		Pipeline:    pipeline,
		Engine:      engine,
		Verifier:    verifier,
		StoreName:   cfg.Store.Backend,
		StoreHealth: storeHealth,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := srv.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()
	log.Info("API server listening",
		"addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
	)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. MQTT (if enabled)
	// 3. Alert notifier (if configured)
	// 4. InfluxDB (if enabled)
	// 5. Database (sqlite backend only)

	log.Info("sensord stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SENSORD_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SENSORD_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// Every component is optional, so each check is skipped when its client
// is nil.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check (nil in memory mode)
//   - mqttClient: MQTT client to check (nil when the feed is disabled)
//   - influxClient: InfluxDB client to check (nil when the mirror is disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// wsHubSink adapts the WebSocket hub to the ingest pipeline's Sink
// interface, broadcasting post-persist events to subscribed clients.
type wsHubSink struct {
	ingest.NopSink
	hub *api.Hub
}

// ReadingStored implements ingest.Sink.
func (s *wsHubSink) ReadingStored(r telemetry.Reading) {
	s.hub.Broadcast(api.ChannelReadingCreated, r)
}

// DeviceRegistered implements ingest.Sink.
func (s *wsHubSink) DeviceRegistered(d device.Device) {
	s.hub.Broadcast(api.ChannelDeviceRegistered, d)
}

// influxSink mirrors stored readings into InfluxDB. Writes are batched and
// asynchronous, so a mirror failure never affects the primary store.
type influxSink struct {
	ingest.NopSink
	client *influxdb.Client
}

// ReadingStored implements ingest.Sink.
func (s *influxSink) ReadingStored(r telemetry.Reading) {
	s.client.WriteReading(r.DeviceID, r.Sensor, r.Temperature, r.Humidity, r.ReceivedAt)
}

// Package device provides the device registry for sensord.
//
// The registry is the catalogue of every sensor endpoint known to the
// service, whether seeded from configuration or auto-registered at first
// contact. It answers identity lookups during ingestion and device listings
// for the REST API.
//
// # Architecture
//
//	┌───────────────────────────────────────────────────────────┐
//	│                      Device Registry                      │
//	│                                                           │
//	│  ┌──────────────────┐         ┌──────────────────────┐   │
//	│  │     Registry     │         │      Repository      │   │
//	│  │   (registry.go)  │────────▶│   (repository.go)    │   │
//	│  │                  │         │                      │   │
//	│  │ • Cached lookups │         │ • MemoryRepository   │   │
//	│  │ • Idempotent     │         │ • SQLiteRepository   │   │
//	│  │   registration   │         │                      │   │
//	│  └──────────────────┘         └──────────────────────┘   │
//	└───────────────────────────────────────────────────────────┘
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	dev, err := registry.Register(ctx, "ESP8266-01", "Greenhouse Sensor", "North wall", false)
//
// Device records are immutable once created: registering an ID that already
// exists returns the stored record untouched. Auto-registration during
// ingestion goes through the same Register call with autoRegistered set.
package device

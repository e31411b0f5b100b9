// Package influxdb mirrors accepted sensor readings into InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with the patterns
// the rest of the service uses for connection management and shutdown.
//
// # Purpose
//
// The in-process reading store is deliberately bounded, so it only ever
// holds the recent window. The mirror gives readings a durable,
// queryable home for long-horizon dashboards without widening the
// service's own query surface.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "sensord",
//	    Bucket:  "readings",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteReading("ESP32-001", "DHT22", 21.5, 48.0, time.Now())
//
// # Error Handling
//
// Writes are non-blocking; batch errors surface via the SetOnError
// callback. Connection and health check errors are returned directly.
// A disabled mirror is signalled with ErrDisabled so startup can carry
// on without it.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size,
// flush_interval), which keeps network overhead flat under sustained
// sensor traffic.
package influxdb

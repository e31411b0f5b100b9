package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// readingMeasurement is the measurement name for mirrored sensor readings.
const readingMeasurement = "sensor_reading"

// WriteReading mirrors a single accepted reading to InfluxDB.
//
// The write is non-blocking; points are batched and sent asynchronously.
// Device id and sensor model become tags, the measured values become
// fields, and the point carries the server receipt time so the mirror
// lines up with the in-process store.
//
// Example:
//
//	client.WriteReading("ESP32-001", "DHT22", 21.5, 48.0, receivedAt)
func (c *Client) WriteReading(deviceID, sensor string, temperature, humidity float64, at time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		readingMeasurement,
		map[string]string{
			"device_id": deviceID,
			"sensor":    sensor,
		},
		map[string]interface{}{
			"temperature": temperature,
			"humidity":    humidity,
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that do not fit WriteReading, such as
// one-off operational markers.
//
// Example:
//
//	client.WritePoint("ingest_stats",
//	    map[string]string{"host": "sensord-01"},
//	    map[string]interface{}{"stored_total": 1532})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

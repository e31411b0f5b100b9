// Package metrics registers and exposes the service's Prometheus
// instrumentation. Collectors live on the default registry; call Init once
// at startup and serve Handler on /metrics.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "sensord_"

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	readingsStored  prometheus.Counter
	autoRegistered  prometheus.Counter
	rangeViolations prometheus.Counter

	wsClients prometheus.Gauge
)

// Init registers all collectors. Safe to call more than once; only the
// first call registers.
func Init() {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total ingest submissions by result",
			},
			[]string{"result"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Ingest pipeline latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		readingsStored = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "readings_stored_total",
				Help: "Total readings persisted to the store",
			},
		)
		autoRegistered = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "devices_auto_registered_total",
				Help: "Total devices created by auto-registration",
			},
		)
		rangeViolations = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "range_violations_total",
				Help: "Total stored readings with out-of-range values",
			},
		)

		wsClients = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "websocket_clients",
				Help: "Currently connected WebSocket clients",
			},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestLatency,
			readingsStored,
			autoRegistered,
			rangeViolations,
			wsClients,
		)
	})
}

// Handler serves the default registry in Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveIngest records one pipeline submission with its result label.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = "success"
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncReadingStored counts one persisted reading.
func IncReadingStored() {
	if readingsStored != nil {
		readingsStored.Inc()
	}
}

// IncDeviceAutoRegistered counts one auto-registration.
func IncDeviceAutoRegistered() {
	if autoRegistered != nil {
		autoRegistered.Inc()
	}
}

// IncRangeViolation counts one stored out-of-range reading.
func IncRangeViolation() {
	if rangeViolations != nil {
		rangeViolations.Inc()
	}
}

// SetWSClients tracks the connected WebSocket client count.
func SetWSClients(n int) {
	if wsClients != nil {
		wsClients.Set(float64(n))
	}
}

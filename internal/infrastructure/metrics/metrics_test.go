package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// Runs first in this file: before Init the helpers must be no-ops, not
// panics, so code paths instrumented in tests never require a registry.
func TestHelpers_NoopBeforeInit(t *testing.T) {
	ObserveIngest("success", 5*time.Millisecond)
	ObserveIngest("", time.Millisecond)
	IncReadingStored()
	IncDeviceAutoRegistered()
	IncRangeViolation()
	SetWSClients(3)
}

func TestInit_Idempotent(t *testing.T) {
	Init()
	Init() // second call must not re-register

	ObserveIngest("invalid_payload", time.Millisecond)
	IncReadingStored()
}

func TestHandler_ServesCollectors(t *testing.T) {
	Init()
	ObserveIngest("success", 2*time.Millisecond)
	IncReadingStored()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	Handler().ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	body := w.Body.String()
	for _, name := range []string{
		"sensord_ingest_requests_total",
		"sensord_readings_stored_total",
		"sensord_websocket_clients",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("exposition missing %s", name)
		}
	}
}

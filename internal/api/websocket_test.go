package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quietlane/sensord/internal/audit"
	"github.com/quietlane/sensord/internal/auth"
	"github.com/quietlane/sensord/internal/device"
	"github.com/quietlane/sensord/internal/infrastructure/config"
	"github.com/quietlane/sensord/internal/infrastructure/logging"
	"github.com/quietlane/sensord/internal/ingest"
	"github.com/quietlane/sensord/internal/telemetry"
)

// testServerWithRealListener starts a full server on a fixed port for tests
// that need a real TCP listener (WebSocket upgrades, lifecycle checks).
func testServerWithRealListener(t *testing.T, port int, apiKey string) (*Server, string) {
	t.Helper()

	registry := device.NewRegistry(device.NewMemoryRepository())
	if err := registry.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}
	store := telemetry.NewMemoryStore(telemetry.DefaultCapacity)
	connLog := audit.NewConnectionLog(audit.DefaultCapacity)
	verifier := auth.NewVerifier(apiKey)

	pipeline := ingest.New(ingest.Deps{
		Verifier: verifier,
		Registry: registry,
		Store:    store,
		Log:      connLog,
	})
	engine := telemetry.NewEngine(registry, store, connLog)

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
		Config: config.ServerConfig{
			Host: "127.0.0.1",
			Port: port,
			Timeouts: config.ServerTimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			Enabled:        true,
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:    log,
		Pipeline:  pipeline,
		Engine:    engine,
		Verifier:  verifier,
		StoreName: "memory",
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	// Start server in background
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	t.Cleanup(func() { srv.Close() })

	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	// Wait for server to be ready
	time.Sleep(100 * time.Millisecond)

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	return srv, addr
}

// connectWebSocket dials the WebSocket endpoint of a running test server.
func connectWebSocket(t *testing.T, addr string) *websocket.Conn {
	t.Helper()

	wsURL := "ws://" + addr + "/api/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket connect failed: %v", err)
	}
	return ws
}

func TestServer_StartAndClose(t *testing.T) {
	srv, addr := testServerWithRealListener(t, 19180, "")

	resp, err := http.Get("http://" + addr + "/api/health")
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("health check status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}

	// Verify the listener is gone
	time.Sleep(100 * time.Millisecond)
	if _, err := http.Get("http://" + addr + "/api/health"); err == nil {
		t.Error("expected connection failure after Close()")
	}
}

func TestServer_HealthCheckLifecycle(t *testing.T) {
	srv, _, _ := testServer(t, "")

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("expected health check failure before Start()")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer srv.Close()

	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error: %v", err)
	}
}

func TestWebSocket_Connect(t *testing.T) {
	srv, addr := testServerWithRealListener(t, 19181, "")

	ws := connectWebSocket(t, addr)
	defer ws.Close()

	// Subscribe so the round trip confirms registration completed.
	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelReadingCreated}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read subscribe response: %v", err)
	}

	if resp.Type != WSTypeResponse {
		t.Errorf("response type = %s, want %s", resp.Type, WSTypeResponse)
	}
	if resp.ID != "sub-1" {
		t.Errorf("response ID = %s, want sub-1", resp.ID)
	}

	if srv.hub.ClientCount() != 1 {
		t.Errorf("hub client count = %d, want 1", srv.hub.ClientCount())
	}
}

func TestWebSocket_SubscribeUnsubscribe(t *testing.T) {
	_, addr := testServerWithRealListener(t, 19182, "")

	ws := connectWebSocket(t, addr)
	defer ws.Close()

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelReadingCreated, ChannelDeviceRegistered}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read subscribe response: %v", err)
	}
	if resp.Type != WSTypeResponse {
		t.Errorf("subscribe response type = %s, want response", resp.Type)
	}

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeUnsubscribe,
		ID:      "unsub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelDeviceRegistered}},
	}); err != nil {
		t.Fatalf("write unsubscribe: %v", err)
	}

	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read unsubscribe response: %v", err)
	}
	if resp.Type != WSTypeResponse {
		t.Errorf("unsubscribe response type = %s, want response", resp.Type)
	}
}

func TestWebSocket_Ping(t *testing.T) {
	_, addr := testServerWithRealListener(t, 19183, "")

	ws := connectWebSocket(t, addr)
	defer ws.Close()

	if err := ws.WriteJSON(WSMessage{
		Type: WSTypePing,
		ID:   "ping-1",
	}); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read pong: %v", err)
	}

	if resp.Type != WSTypePong {
		t.Errorf("response type = %s, want pong", resp.Type)
	}
	if resp.ID != "ping-1" {
		t.Errorf("response ID = %s, want ping-1", resp.ID)
	}
}

func TestWebSocket_InvalidMessage(t *testing.T) {
	_, addr := testServerWithRealListener(t, 19184, "")

	ws := connectWebSocket(t, addr)
	defer ws.Close()

	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write invalid message: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read error response: %v", err)
	}

	if resp.Type != WSTypeError {
		t.Errorf("response type = %s, want error", resp.Type)
	}
}

func TestWebSocket_UnknownMessageType(t *testing.T) {
	_, addr := testServerWithRealListener(t, 19185, "")

	ws := connectWebSocket(t, addr)
	defer ws.Close()

	if err := ws.WriteJSON(WSMessage{
		Type: "unknown_type",
		ID:   "test-1",
	}); err != nil {
		t.Fatalf("write unknown type: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read error response: %v", err)
	}

	if resp.Type != WSTypeError {
		t.Errorf("response type = %s, want error", resp.Type)
	}
}

func TestWebSocket_Broadcast(t *testing.T) {
	srv, addr := testServerWithRealListener(t, 19186, "")

	ws := connectWebSocket(t, addr)
	defer ws.Close()

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelReadingCreated}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read subscribe response: %v", err)
	}

	srv.hub.Broadcast(ChannelReadingCreated, map[string]string{"device_id": "DEV1"})

	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}

	if resp.Type != WSTypeEvent {
		t.Errorf("broadcast type = %s, want event", resp.Type)
	}
	if resp.EventType != ChannelReadingCreated {
		t.Errorf("broadcast event_type = %s, want %s", resp.EventType, ChannelReadingCreated)
	}
}

func TestWebSocket_BroadcastFiltersChannels(t *testing.T) {
	srv, addr := testServerWithRealListener(t, 19187, "")

	ws := connectWebSocket(t, addr)
	defer ws.Close()

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelReadingCreated}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read subscribe response: %v", err)
	}

	// The unsubscribed channel must not reach this client; the subscribed
	// one sent afterwards arrives first.
	srv.hub.Broadcast(ChannelDeviceRegistered, map[string]string{"id": "OTHER"})
	srv.hub.Broadcast(ChannelReadingCreated, map[string]string{"device_id": "DEV1"})

	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if resp.EventType != ChannelReadingCreated {
		t.Errorf("event_type = %s, want %s (filtered channel leaked)", resp.EventType, ChannelReadingCreated)
	}
}

func TestWebSocket_MissingKey(t *testing.T) {
	_, addr := testServerWithRealListener(t, 19188, "secret123")

	wsURL := "ws://" + addr + "/api/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected error connecting without api_key")
	}
	if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestWebSocket_WrongKey(t *testing.T) {
	_, addr := testServerWithRealListener(t, 19189, "secret123")

	wsURL := "ws://" + addr + "/api/ws?api_key=wrong"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected error connecting with wrong api_key")
	}
	if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestWebSocket_CorrectKey(t *testing.T) {
	_, addr := testServerWithRealListener(t, 19190, "secret123")

	wsURL := "ws://" + addr + "/api/ws?api_key=secret123"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	ws.Close()
}

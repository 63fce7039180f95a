package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func newTestServer(t *testing.T, status StatusFunc) *Server {
	t.Helper()

	server := NewServer(&Config{
		Port:   0, // Use random available port
		Status: status,
		Logger: log.New(os.Stderr, "[test] ", log.LstdFlags),
	})

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	return server
}

func dialTest(t *testing.T, ctx context.Context, server *Server) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(&Config{
		Port:   0,
		Logger: log.New(os.Stderr, "[test] ", log.LstdFlags),
	})

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if server.GetAddr() == "" {
		t.Fatal("Server address is empty")
	}

	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestWelcomeMessageCarriesStatus(t *testing.T) {
	status := Status{
		Online:  true,
		Pending: map[string]int{"tasks": 3},
	}
	server := newTestServer(t, func(ctx context.Context) Status { return status })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialTest(t, ctx, server)

	if count := server.ClientCount(); count != 1 {
		t.Errorf("Expected 1 client, got %d", count)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read welcome message: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if msg.Type != MessageTypeStatus {
		t.Errorf("Expected welcome message type %s, got %s", MessageTypeStatus, msg.Type)
	}

	var got Status
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatalf("Failed to unmarshal status payload: %v", err)
	}
	if !got.Online || got.Pending["tasks"] != 3 {
		t.Errorf("Status payload mismatch: %+v", got)
	}
}

func TestMultipleClients(t *testing.T) {
	server := newTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	numClients := 3
	for i := 0; i < numClients; i++ {
		conn := dialTest(t, ctx, server)

		// Read welcome message
		if _, _, err := conn.Read(ctx); err != nil {
			t.Fatalf("Failed to read welcome message for client %d: %v", i, err)
		}
	}

	if count := server.ClientCount(); count != numClients {
		t.Errorf("Expected %d clients, got %d", numClients, count)
	}
}

func TestMessageBroadcast(t *testing.T) {
	server := newTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialTest(t, ctx, server)

	// Read welcome message
	if _, _, err := conn.Read(ctx); err != nil {
		t.Fatalf("Failed to read welcome message: %v", err)
	}

	server.Broadcast(NewMessage(MessageTypeConnectivity, map[string]any{
		"online": true,
	}))

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read broadcast message: %v", err)
	}

	var received Message
	if err := json.Unmarshal(data, &received); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if received.Type != MessageTypeConnectivity {
		t.Errorf("Expected message type %s, got %s", MessageTypeConnectivity, received.Type)
	}
	if received.Timestamp.IsZero() {
		t.Error("Broadcast message missing timestamp")
	}

	var payload map[string]any
	if err := json.Unmarshal(received.Data, &payload); err != nil {
		t.Fatalf("Failed to unmarshal payload: %v", err)
	}
	if payload["online"] != true {
		t.Errorf("Payload mismatch: %v", payload)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t, nil)

	resp, err := http.Get("http://" + server.GetAddr() + "/health")
	if err != nil {
		t.Fatalf("Health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("Unexpected health response: %v", body)
	}
}

func TestStatusEndpoint(t *testing.T) {
	server := newTestServer(t, func(ctx context.Context) Status {
		return Status{
			Online:    true,
			LastSweep: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
			Pending:   map[string]int{"expenses": 2},
		}
	})

	resp, err := http.Get("http://" + server.GetAddr() + "/api/status")
	if err != nil {
		t.Fatalf("Status request failed: %v", err)
	}
	defer resp.Body.Close()

	var got Status
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode status response: %v", err)
	}
	if !got.Online || got.Pending["expenses"] != 2 {
		t.Errorf("Status mismatch: %+v", got)
	}
}

func TestNewMessageMarshalsPayload(t *testing.T) {
	msg := NewMessage(MessageTypeReminder, map[string]string{"title": "Pay rent"})

	if msg.Type != MessageTypeReminder {
		t.Errorf("Expected type %s, got %s", MessageTypeReminder, msg.Type)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}

	var payload map[string]string
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		t.Fatalf("Failed to unmarshal payload: %v", err)
	}
	if payload["title"] != "Pay rent" {
		t.Errorf("Payload mismatch: %v", payload)
	}

	// nil data yields a payload-less message
	empty := NewMessage(MessageTypeStatus, nil)
	if empty.Data != nil {
		t.Errorf("Expected no payload, got %s", empty.Data)
	}
}

package roomclient

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

const testRoomID = "7f9c24e5-2a31-4bfa-9a3e-1d6a2c5b8e01"

// ackServer accepts one ws connection, optionally sends the join ack, then
// forwards extra frames and holds the connection open
func ackServer(t *testing.T, sendAck bool, extra ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
		if err != nil {
			return
		}
		ctx := r.Context()
		if sendAck {
			_ = c.Write(ctx, websocket.MessageText, []byte(`{"event":"connected","payload":{"roomId":"`+testRoomID+`"}}`))
		}
		for _, e := range extra {
			_ = c.Write(ctx, websocket.MessageText, []byte(e))
		}
		for {
			if _, _, err := c.Read(ctx); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testConfig(url string) Config {
	return Config{
		URL:            url,
		RoomID:         testRoomID,
		ConnectTimeout: 2 * time.Second,
		MaxAttempts:    2,
		RetryDelay:     50 * time.Millisecond,
	}
}

func TestConnectHandshake(t *testing.T) {
	srv := ackServer(t, true, `{"event":"room_state_update","payload":{"roomId":"`+testRoomID+`"}}`)
	defer srv.Close()

	var events atomic.Int32
	c := New(slog.Default(), testConfig(wsURL(srv)), func(event string, _ json.RawMessage) {
		if event == "room_state_update" {
			events.Add(1)
		}
	})

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !c.IsConnected() {
		t.Fatalf("want connected, got %s", c.State())
	}

	// The post-ack event reaches the handler
	deadline := time.After(2 * time.Second)
	for events.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("event never dispatched")
		case <-time.After(10 * time.Millisecond):
		}
	}

	c.Disconnect()
	if c.State() != StateDisconnected {
		t.Fatalf("want disconnected, got %s", c.State())
	}
}

func TestConnectRequiresAck(t *testing.T) {
	srv := ackServer(t, false)
	defer srv.Close()

	cfg := testConfig(wsURL(srv))
	cfg.ConnectTimeout = 200 * time.Millisecond
	c := New(slog.Default(), cfg, nil)

	err := c.Connect(context.Background())
	if err == nil {
		t.Fatal("dial without ack must fail")
	}
	if c.State() != StateError {
		t.Fatalf("timeout is terminal for the call, want error state, got %s", c.State())
	}
}

func TestConnectWhileConnectedIsNoop(t *testing.T) {
	srv := ackServer(t, true)
	defer srv.Close()

	c := New(slog.Default(), testConfig(wsURL(srv)), nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Disconnect()

	// warns and no-ops
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("second connect must no-op, got %v", err)
	}
	if !c.IsConnected() {
		t.Fatal("still connected")
	}
}

func TestEmitDroppedWhenDisconnected(t *testing.T) {
	c := New(slog.Default(), testConfig("ws://127.0.0.1:1/ws"), nil)

	// silently dropped, not queued, not an error
	if err := c.Emit(context.Background(), "room_message", map[string]string{"message": "hi"}); err != nil {
		t.Fatalf("emit while disconnected must be a no-op, got %v", err)
	}
	if c.State() != StateDisconnected {
		t.Fatalf("state must be untouched, got %s", c.State())
	}
}

func TestReconnectSequential(t *testing.T) {
	srv := ackServer(t, true)
	defer srv.Close()

	c := New(slog.Default(), testConfig(wsURL(srv)), nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.Reconnect(context.Background()); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if !c.IsConnected() {
		t.Fatalf("want connected after reconnect, got %s", c.State())
	}
	c.Disconnect()
}

package roomclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"nhooyr.io/websocket"
)

// State of the client connection lifecycle
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

// ackEvent is the application-level handshake; a successful dial alone does
// not count as connected
const ackEvent = "connected"

var (
	ErrConnectTimeout   = errors.New("connect timed out")
	ErrRetriesExhausted = errors.New("reconnect attempts exhausted")
)

// Message is the wire frame exchanged with the server
type Message struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Handler receives every event delivered to this client
type Handler func(event string, payload json.RawMessage)

type Config struct {
	URL    string // ws endpoint, e.g. ws://host:8080/ws
	RoomID string

	ConnectTimeout time.Duration // default 10s
	MaxAttempts    int           // reconnect budget, default 5
	RetryDelay     time.Duration // fixed delay between attempts, default 2s
}

func (c *Config) defaults() {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
}

// Client manages one room connection with automatic bounded reconnection.
// Outbound emits are silently dropped while not connected; callers check
// IsConnected or rely on their own state resync after reconnect.
type Client struct {
	log     *slog.Logger
	cfg     Config
	onEvent Handler

	mu       sync.Mutex
	state    State
	ws       *websocket.Conn
	cancel   context.CancelFunc
	lastErr  error
	attempts int
}

func New(log *slog.Logger, cfg Config, onEvent Handler) *Client {
	cfg.defaults()
	return &Client{log: log, cfg: cfg, onEvent: onEvent, state: StateDisconnected}
}

// State returns the current lifecycle state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) IsConnected() bool { return c.State() == StateConnected }

// LastError returns the error that moved the client to the error state
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Connect dials the server and waits for the application-level ack, racing
// a bounded timeout. A call while already connecting is a no-op; a call
// while connected warns and no-ops.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateConnecting:
		c.mu.Unlock()
		return nil
	case StateConnected:
		c.mu.Unlock()
		c.log.Warn("roomclient.connect.already_connected", "room", c.cfg.RoomID)
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	ws, err := c.dial(ctx)
	if err != nil {
		c.fail(err)
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.ws = ws
	c.cancel = cancel
	c.state = StateConnected
	c.attempts = 0
	c.lastErr = nil
	c.mu.Unlock()

	go c.readLoop(runCtx)
	c.log.Debug("roomclient.connected", "room", c.cfg.RoomID)
	return nil
}

// dial performs one dial + ack handshake under the connect timeout
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	url := fmt.Sprintf("%s?roomId=%s", c.cfg.URL, c.cfg.RoomID)
	ws, _, err := websocket.Dial(dctx, url, nil)
	if err != nil {
		if dctx.Err() != nil {
			return nil, ErrConnectTimeout
		}
		return nil, err
	}

	// Wait for the server's join ack
	for {
		_, raw, err := ws.Read(dctx)
		if err != nil {
			_ = ws.Close(websocket.StatusPolicyViolation, "no ack")
			if dctx.Err() != nil {
				return nil, ErrConnectTimeout
			}
			return nil, err
		}
		var msg Message
		if json.Unmarshal(raw, &msg) != nil {
			continue
		}
		if msg.Event == ackEvent {
			return ws, nil
		}
	}
}

// Disconnect closes the connection and stops the read loop. Safe to call in
// any state.
func (c *Client) Disconnect() {
	c.mu.Lock()
	ws, cancel := c.ws, c.cancel
	c.ws, c.cancel = nil, nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ws != nil {
		_ = ws.Close(websocket.StatusNormalClosure, "bye")
	}
}

// Reconnect is disconnect followed by connect, sequential, never concurrent
func (c *Client) Reconnect(ctx context.Context) error {
	c.Disconnect()
	return c.Connect(ctx)
}

// Emit sends an event to the server. A no-op (dropped, not queued) when the
// client is not connected.
func (c *Client) Emit(ctx context.Context, event string, payload any) error {
	c.mu.Lock()
	ws := c.ws
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || ws == nil {
		c.log.Debug("roomclient.emit.dropped", "event", event)
		return nil
	}

	raw, err := json.Marshal(struct {
		Event   string `json:"event"`
		Payload any    `json:"payload,omitempty"`
	}{Event: event, Payload: payload})
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, raw)
}

// readLoop dispatches inbound events and drives auto-reconnect when the
// transport drops
func (c *Client) readLoop(ctx context.Context) {
	for {
		c.mu.Lock()
		ws := c.ws
		c.mu.Unlock()
		if ws == nil {
			return
		}

		_, raw, err := ws.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return // explicit disconnect
			}
			c.retry(ctx)
			return
		}

		var msg Message
		if json.Unmarshal(raw, &msg) != nil {
			continue
		}
		if c.onEvent != nil {
			c.onEvent(msg.Event, msg.Payload)
		}
	}
}

// retry runs the bounded reconnect budget with a fixed delay. Exhausting the
// budget is terminal: the client stays in the error state with no further
// automatic attempts.
func (c *Client) retry(ctx context.Context) {
	c.mu.Lock()
	c.ws = nil
	c.state = StateConnecting
	c.mu.Unlock()

	for {
		c.mu.Lock()
		c.attempts++
		n := c.attempts
		c.mu.Unlock()

		if n > c.cfg.MaxAttempts {
			c.fail(ErrRetriesExhausted)
			c.log.Error("roomclient.reconnect.exhausted", "room", c.cfg.RoomID, "attempts", n-1)
			return
		}

		c.log.Debug("roomclient.reconnect", "room", c.cfg.RoomID, "attempt", n)
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.RetryDelay):
		}

		ws, err := c.dial(context.Background())
		if err != nil {
			continue
		}

		c.mu.Lock()
		c.ws = ws
		c.state = StateConnected
		c.attempts = 0
		c.mu.Unlock()
		c.log.Info("roomclient.reconnected", "room", c.cfg.RoomID)
		go c.readLoop(ctx)
		return
	}
}

// fail moves the client to the terminal error state
func (c *Client) fail(err error) {
	c.mu.Lock()
	c.state = StateError
	c.lastErr = err
	c.ws = nil
	c.mu.Unlock()
}

package ws

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

type Conn struct {
	ws     *websocket.Conn
	out    chan []byte
	roomID string
}

// Accept upgrades HTTP to websocket (allow all origins)
func Accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
}

// NewConn wraps a WS connection joined to one room
func NewConn(ws *websocket.Conn, roomID string) *Conn {
	return &Conn{
		ws:     ws,
		roomID: roomID,
		out:    make(chan []byte, 256),
	}
}

func (c *Conn) RoomID() string { return c.roomID }

// Queue enqueues an outbound frame without blocking if the buffer is full
func (c *Conn) Queue(b []byte) {
	select {
	case c.out <- b:
	default: // skip if send buffer is full
	}
}

// Read blocks until it receives a text/binary message
// Returns false if connection is closed
func (c *Conn) Read(ctx context.Context) ([]byte, bool) {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			return nil, false
		}
		if typ == websocket.MessageText || typ == websocket.MessageBinary {
			return data, true
		}
	}
}

// WriteLoop sends outbound messages + periodic pings
// Exits when ctx is cancelled
func (c *Conn) WriteLoop(ctx context.Context) {
	t := time.NewTicker(20 * time.Second)
	defer t.Stop()

	for {
		select {
		case b := <-c.out:
			_ = c.ws.Write(ctx, websocket.MessageText, b)
		case <-t.C:
			_ = c.ws.Ping(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Close closes the WS connection normally
func (c *Conn) Close() error { return c.ws.Close(websocket.StatusNormalClosure, "bye") }

// CloseExpired closes the connection because its room was evicted
func (c *Conn) CloseExpired() error {
	return c.ws.Close(websocket.StatusGoingAway, "room expired")
}

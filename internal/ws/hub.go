package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"wheelroom/internal/room"
	"wheelroom/pkg/metrics"
)

// Hub is the join boundary for room groups. It implements the broadcaster's
// Transport: local fan-out plus cross-instance publish over the bus.
type Hub struct {
	log      *slog.Logger
	registry *Registry
	bus      *Bus // nil disables cross-instance fan-out
	origin   string
}

func NewHub(log *slog.Logger, registry *Registry, bus *Bus) *Hub {
	return &Hub{log: log, registry: registry, bus: bus, origin: uuid.NewString()}
}

// Registry exposes the group registry (eviction scheduler, stats)
func (h *Hub) Registry() *Registry { return h.registry }

// ClientCount reports the locally connected clients for a room
func (h *Hub) ClientCount(roomID string) int { return h.registry.ClientCount(roomID) }

// Emit fans an event out locally and, when a bus is attached, to the other
// instances serving the same room
func (h *Hub) Emit(ctx context.Context, roomID, event string, payload any) error {
	if err := h.registry.Emit(ctx, roomID, event, payload); err != nil {
		return err
	}
	if h.bus != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if err := h.bus.Publish(ctx, BusMessage{RoomID: roomID, Origin: h.origin, Event: event, Payload: raw}); err != nil {
			h.log.Warn("bus.publish", "room", roomID, "err", err)
		}
	}
	return nil
}

// Run re-emits bus messages from other instances to local groups
func (h *Hub) Run(ctx context.Context) {
	if h.bus == nil {
		<-ctx.Done()
		return
	}
	go h.bus.Subscribe(ctx, func(m BusMessage) {
		if m.Origin == h.origin {
			return
		}
		if h.registry.ClientCount(m.RoomID) == 0 {
			return
		}
		_ = h.registry.Emit(ctx, m.RoomID, m.Event, m.Payload)
	})
	<-ctx.Done()
}

// ServeWS handles a new /ws connection for a roomId
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roomID := r.URL.Query().Get("roomId")
	if err := ValidateRoomID(roomID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := Accept(w, r)
	if err != nil {
		h.log.Error("ws.accept", "err", err)
		return
	}

	c := NewConn(conn, roomID)
	if err := h.registry.Join(roomID, c); err != nil {
		_ = conn.Close(websocket.StatusPolicyViolation, "bad room")
		return
	}
	metrics.ConnectedClients.Inc()
	h.log.Debug("ws.join", "group", GroupName(roomID))

	// Outbound writer
	go c.WriteLoop(ctx)

	// Application-level join ack; clients treat the dial alone as not connected
	ack, _ := json.Marshal(envelope{Event: room.EventConnected, Payload: map[string]any{
		"roomId":    roomID,
		"timestamp": time.Now().UTC(),
	}})
	c.Queue(ack)

	// Inbound reader: relay room messages, ignore everything else
	for {
		payload, ok := c.Read(ctx)
		if !ok {
			break
		}
		var msg envelope
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}
		if msg.Event == room.EventRoomMessage {
			_ = h.Emit(ctx, roomID, room.EventRoomMessage, msg.Payload)
		}
	}

	h.registry.Leave(roomID, c)
	metrics.ConnectedClients.Dec()
	_ = c.Close()
}

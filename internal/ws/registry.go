package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"log/slog"

	"github.com/google/uuid"
)

// ErrInvalidRoomID means the identifier is not a version-4 UUID. Rejected at
// the join boundary so malformed names never reach a group.
var ErrInvalidRoomID = errors.New("invalid room id: must be a version-4 uuid")

// ValidateRoomID checks the uuid-v4 format the group naming scheme relies on
func ValidateRoomID(roomID string) error {
	u, err := uuid.Parse(roomID)
	if err != nil || u.Version() != 4 {
		return ErrInvalidRoomID
	}
	return nil
}

// GroupName derives the transport group name for a room
func GroupName(roomID string) string { return "room:" + roomID }

// envelope is the wire frame for every event
type envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// Registry maps room ids to groups of live connections. It is the only seam
// through which groups are enumerated, emitted to, or torn down.
type Registry struct {
	log *slog.Logger

	mu     sync.RWMutex
	groups map[string]map[*Conn]struct{} // roomID -> set of connections
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{log: log, groups: make(map[string]map[*Conn]struct{})}
}

// Join adds a connection to its room group, creating the group if needed
func (r *Registry) Join(roomID string, c *Conn) error {
	if err := ValidateRoomID(roomID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	g := r.groups[roomID]
	if g == nil {
		g = make(map[*Conn]struct{})
		r.groups[roomID] = g
		r.log.Debug("group.created", "group", GroupName(roomID))
	}
	g[c] = struct{}{}
	return nil
}

// Leave removes a connection, dropping the group when it empties
func (r *Registry) Leave(roomID string, c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.groups[roomID]; ok {
		delete(g, c)
		if len(g) == 0 {
			delete(r.groups, roomID)
		}
	}
}

// ClientCount returns the number of live connections in a room group
func (r *Registry) ClientCount(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[roomID])
}

// TotalClients counts connections across all groups
func (r *Registry) TotalClients() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, g := range r.groups {
		n += len(g)
	}
	return n
}

// Emit serializes the event once and fans it out to every connection in the
// group without blocking; lagging clients miss frames rather than stall the
// broadcast.
func (r *Registry) Emit(_ context.Context, roomID, event string, payload any) error {
	raw, err := json.Marshal(envelope{Event: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.groups[roomID] {
		c.Queue(raw)
	}
	return nil
}

// DisconnectAll closes every connection in the group and returns how many
func (r *Registry) DisconnectAll(roomID string) int {
	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.groups[roomID]))
	for c := range r.groups[roomID] {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	for _, c := range conns {
		_ = c.CloseExpired()
	}
	return len(conns)
}

// RemoveGroup drops the group entry itself, reporting whether it existed
func (r *Registry) RemoveGroup(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[roomID]; ok {
		delete(r.groups, roomID)
		r.log.Debug("group.removed", "group", GroupName(roomID))
		return true
	}
	return false
}

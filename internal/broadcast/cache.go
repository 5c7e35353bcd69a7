package broadcast

import (
	"sync"

	"wheelroom/internal/room"
)

// Cache holds the last-broadcast snapshot per room. The broadcaster is the
// only writer during normal operation; the eviction scheduler may delete
// entries but never writes new snapshots. No TTL of its own — lifetime is
// governed by reconciliation against the external store.
type Cache struct {
	mu    sync.RWMutex
	rooms map[string]*room.Room
}

type CacheStats struct {
	Size    int      `json:"size"`
	RoomIDs []string `json:"roomIds"`
}

func NewCache() *Cache {
	return &Cache{rooms: make(map[string]*room.Room)}
}

// Get returns the cached snapshot or nil
func (c *Cache) Get(roomID string) *room.Room {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rooms[roomID]
}

// Put stores a deep copy of the snapshot
func (c *Cache) Put(roomID string, r *room.Room) {
	cp := r.Clone()
	c.mu.Lock()
	c.rooms[roomID] = cp
	c.mu.Unlock()
}

// Delete drops one room, reporting whether it was present
func (c *Cache) Delete(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[roomID]
	delete(c.rooms, roomID)
	return ok
}

// ClearAll drops every entry
func (c *Cache) ClearAll() {
	c.mu.Lock()
	c.rooms = make(map[string]*room.Room)
	c.mu.Unlock()
}

// Preload seeds the cache without broadcasting (warm restarts, tests)
func (c *Cache) Preload(r *room.Room) {
	c.Put(r.ID, r)
}

// Stats returns the current size and room ids
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		ids = append(ids, id)
	}
	return CacheStats{Size: len(c.rooms), RoomIDs: ids}
}

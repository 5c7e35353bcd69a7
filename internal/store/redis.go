package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/redis/go-redis/v9"

	"wheelroom/internal/app"
	"wheelroom/internal/room"
)

// TTL sentinels as reported by redis: -2 key missing, -1 no expiry set.
// go-redis passes them through as raw durations.
const (
	TTLMissing  = time.Duration(-2)
	TTLNoExpiry = time.Duration(-1)
)

var ErrRoomNotFound = errors.New("room not found")

// Rooms is the external TTL-backed store of authoritative room snapshots.
// Keys are {prefix}{roomId}; values are the JSON snapshot; the TTL set here
// is what actually expires a room.
type Rooms struct {
	rdb    *redis.Client
	log    *slog.Logger
	prefix string
	ttl    time.Duration
}

// NewRooms connects to redis and verifies connectivity
func NewRooms(ctx context.Context, cfg app.Config, log *slog.Logger) (*Rooms, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Rooms{rdb: rdb, log: log, prefix: cfg.RoomKeyPrefix, ttl: cfg.RoomTTL}, nil
}

// Key builds the store key for a room id
func (s *Rooms) Key(roomID string) string { return s.prefix + roomID }

// RoomID strips the prefix from a scanned key
func (s *Rooms) RoomID(key string) (string, bool) {
	if !strings.HasPrefix(key, s.prefix) {
		return "", false
	}
	return strings.TrimPrefix(key, s.prefix), true
}

// Save writes the snapshot and (re)arms the room lifetime
func (s *Rooms) Save(ctx context.Context, r *room.Room) error {
	return s.rdb.Set(ctx, s.Key(r.ID), *r, s.ttl).Err()
}

// Load fetches a snapshot by room id
func (s *Rooms) Load(ctx context.Context, roomID string) (*room.Room, error) {
	raw, err := s.rdb.Get(ctx, s.Key(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	var r room.Room
	if err := r.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return &r, nil
}

// Delete removes the authoritative key, reporting whether it existed
func (s *Rooms) Delete(ctx context.Context, roomID string) (bool, error) {
	n, err := s.rdb.Del(ctx, s.Key(roomID)).Result()
	return n > 0, err
}

// DeleteKey removes a raw scanned key (eviction scheduler path)
func (s *Rooms) DeleteKey(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Del(ctx, key).Result()
	return n > 0, err
}

// ScanPage returns one cursor page of room keys
func (s *Rooms) ScanPage(ctx context.Context, cursor uint64, count int64) ([]string, uint64, error) {
	return s.rdb.Scan(ctx, cursor, s.prefix+"*", count).Result()
}

// TTL returns the remaining lifetime of a scanned key, preserving the
// redis sentinels (TTLMissing, TTLNoExpiry)
func (s *Rooms) TTL(ctx context.Context, key string) (time.Duration, error) {
	return s.rdb.TTL(ctx, key).Result()
}

// Ping verifies store connectivity (used by a cleanup pass before scanning)
func (s *Rooms) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close shuts down the redis connection
func (s *Rooms) Close() { _ = s.rdb.Close() }

package ws

import (
	"context"
	"encoding/json"

	"log/slog"

	"github.com/redis/go-redis/v9"

	"wheelroom/internal/app"
)

// BusMessage carries one room event across instances. Origin is the sending
// instance id, so a subscriber can skip its own messages.
type BusMessage struct {
	RoomID  string          `json:"roomId"`
	Origin  string          `json:"origin"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Bus fans room events out across server instances over redis pub/sub, so
// each process can re-emit to its own local groups. Local caches stay
// process-local; only events travel.
type Bus struct {
	rdb *redis.Client
	log *slog.Logger
}

// NewBus connects to redis and verifies connectivity
func NewBus(ctx context.Context, cfg app.Config, log *slog.Logger) (*Bus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Bus{rdb: rdb, log: log}, nil
}

// Publish sends a room event to every instance
func (b *Bus) Publish(ctx context.Context, m BusMessage) error {
	raw, _ := json.Marshal(m)
	return b.rdb.Publish(ctx, channel(m.RoomID), raw).Err()
}

// Subscribe listens to all room channels and invokes fn for each message
func (b *Bus) Subscribe(ctx context.Context, fn func(BusMessage)) {
	pubsub := b.rdb.PSubscribe(ctx, channel("*"))
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			_ = pubsub.Close()
			return
		case msg := <-ch:
			var bm BusMessage
			_ = json.Unmarshal([]byte(msg.Payload), &bm)
			if bm.RoomID != "" {
				fn(bm)
			}
		}
	}
}

// Close shuts down the redis connection
func (b *Bus) Close() { _ = b.rdb.Close() }

// channel namespacing for room pub/sub
func channel(roomID string) string { return "roomevents:" + roomID }

package broadcast

import (
	"context"
	"log/slog"
	"time"

	"wheelroom/internal/room"
	"wheelroom/pkg/metrics"
)

// Transport is the seam to the ws group registry. Emit delivers an event to
// every connected client of one room group.
type Transport interface {
	ClientCount(roomID string) int
	Emit(ctx context.Context, roomID, event string, payload any) error
}

// Metrics describes one broadcast call. Purely observational, never drives
// control flow.
type Metrics struct {
	DiffCalc    time.Duration `json:"diffCalculationTime"`
	Broadcast   time.Duration `json:"broadcastTime"`
	Total       time.Duration `json:"totalTime"`
	ClientCount int           `json:"clientCount"`
}

// Budgets are advisory performance thresholds. Violations log warnings only.
type Budgets struct {
	Diff    time.Duration
	Emit    time.Duration
	Total   time.Duration
	Clients int
}

// Broadcaster orchestrates diffing, cache update, debounce and fan-out for
// one room update at a time. Same-room calls are serialized by a per-room
// lock; different rooms proceed in parallel.
type Broadcaster struct {
	log     *slog.Logger
	cache   *Cache
	locks   *roomLocks
	budgets Budgets

	transport Transport
}

func New(log *slog.Logger, budgets Budgets) *Broadcaster {
	return &Broadcaster{
		log:     log,
		cache:   NewCache(),
		locks:   newRoomLocks(),
		budgets: budgets,
	}
}

// SetTransport attaches the ws registry. Broadcasts fail with
// ErrTransportNotInitialized until this is called.
func (b *Broadcaster) SetTransport(t Transport) { b.transport = t }

// Cache exposes the snapshot cache (eviction scheduler, admin stats)
func (b *Broadcaster) Cache() *Cache { return b.cache }

// CachedRoomState returns the last snapshot broadcast for a room, or nil
func (b *Broadcaster) CachedRoomState(roomID string) *room.Room {
	return b.cache.Get(roomID)
}

// BroadcastRoomState diffs the snapshot against the cached one and fans the
// full state out to the room group when something changed (or force is set).
// Repeated identical updates are idempotent: the second call emits nothing
// and reports ClientCount 0. With zero connected clients nothing is emitted
// and the cache is left untouched, so unobserved updates never pollute it.
// On emit failure the error is returned wrapped and the cache keeps the
// previous snapshot.
func (b *Broadcaster) BroadcastRoomState(ctx context.Context, r *room.Room, force bool) (Metrics, error) {
	mu := b.locks.get(r.ID)
	mu.Lock()
	defer mu.Unlock()

	var m Metrics
	start := time.Now()

	if b.transport == nil {
		return m, ErrTransportNotInitialized
	}

	n := b.transport.ClientCount(r.ID)
	if n == 0 {
		m.Total = time.Since(start)
		metrics.BroadcastsTotal.WithLabelValues("no_clients").Inc()
		b.log.Debug("broadcast.skip.no_clients", "room", r.ID)
		return m, nil
	}

	diffStart := time.Now()
	diff := room.CalculateDiff(b.cache.Get(r.ID), r)
	m.DiffCalc = time.Since(diffStart)
	metrics.DiffDuration.Observe(m.DiffCalc.Seconds())

	if !diff.HasChanges && !force {
		m.Total = time.Since(start)
		metrics.BroadcastsTotal.WithLabelValues("unchanged").Inc()
		b.log.Debug("broadcast.skip.unchanged", "room", r.ID)
		return m, nil
	}

	payload := room.StateEvent(r)
	emitStart := time.Now()
	err := b.transport.Emit(ctx, r.ID, room.EventRoomStateUpdate, payload)
	m.Broadcast = time.Since(emitStart)
	m.Total = time.Since(start)
	if err != nil {
		metrics.BroadcastsTotal.WithLabelValues("failed").Inc()
		return m, &FailedError{RoomID: r.ID, Err: err}
	}

	b.cache.Put(r.ID, r)
	m.ClientCount = n

	metrics.BroadcastsTotal.WithLabelValues("sent").Inc()
	metrics.EmitDuration.Observe(m.Broadcast.Seconds())
	b.validatePerformance(r.ID, m)
	b.log.Debug("broadcast.sent", "room", r.ID, "clients", n,
		"diff_ms", m.DiffCalc.Milliseconds(), "emit_ms", m.Broadcast.Milliseconds())
	return m, nil
}

// BroadcastParticipantUpdate is the lighter single-entity path. The bool
// reports whether an emit happened; errors are wrapped the same way as the
// full-state path.
func (b *Broadcaster) BroadcastParticipantUpdate(ctx context.Context, roomID string, p room.Participant, action room.ChangeType) (bool, error) {
	if b.transport == nil {
		return false, ErrTransportNotInitialized
	}
	if b.transport.ClientCount(roomID) == 0 {
		return false, nil
	}
	payload := room.ParticipantEvent(roomID, p, action)
	if err := b.transport.Emit(ctx, roomID, room.EventParticipantUpdate, payload); err != nil {
		return false, &FailedError{RoomID: roomID, Err: err}
	}
	return true, nil
}

// BroadcastWheelSpin announces a wheel result to the room group
func (b *Broadcaster) BroadcastWheelSpin(ctx context.Context, roomID, selectedID string, spinMS int) error {
	if b.transport == nil {
		return ErrTransportNotInitialized
	}
	payload := room.WheelSpinPayload{RoomID: roomID, SelectedID: selectedID, SpinDurationMS: spinMS, Timestamp: time.Now().UTC()}
	if err := b.transport.Emit(ctx, roomID, room.EventWheelSpin, payload); err != nil {
		return &FailedError{RoomID: roomID, Err: err}
	}
	return nil
}

// BroadcastTimerUpdate announces the derived timer state to the room group
func (b *Broadcaster) BroadcastTimerUpdate(ctx context.Context, roomID string, t room.TimerState) error {
	if b.transport == nil {
		return ErrTransportNotInitialized
	}
	payload := room.TimerUpdatePayload{RoomID: roomID, Timer: t, Timestamp: time.Now().UTC()}
	if err := b.transport.Emit(ctx, roomID, room.EventTimerUpdate, payload); err != nil {
		return &FailedError{RoomID: roomID, Err: err}
	}
	return nil
}

// Evict drops the cached snapshot and the per-room lock entry. Called by the
// eviction scheduler; reports whether a cache entry existed.
func (b *Broadcaster) Evict(roomID string) bool {
	ok := b.cache.Delete(roomID)
	b.locks.forget(roomID)
	return ok
}

// validatePerformance logs advisory warnings when a budget is exceeded.
// Never raises and never changes behavior.
func (b *Broadcaster) validatePerformance(roomID string, m Metrics) {
	if b.budgets.Diff > 0 && m.DiffCalc > b.budgets.Diff {
		b.log.Warn("broadcast.budget.diff", "room", roomID, "ms", m.DiffCalc.Milliseconds())
	}
	if b.budgets.Emit > 0 && m.Broadcast > b.budgets.Emit {
		b.log.Warn("broadcast.budget.emit", "room", roomID, "ms", m.Broadcast.Milliseconds())
	}
	if b.budgets.Total > 0 && m.Total > b.budgets.Total {
		b.log.Warn("broadcast.budget.total", "room", roomID, "ms", m.Total.Milliseconds())
	}
	if b.budgets.Clients > 0 && m.ClientCount > b.budgets.Clients {
		b.log.Warn("broadcast.budget.clients", "room", roomID, "count", m.ClientCount)
	}
}

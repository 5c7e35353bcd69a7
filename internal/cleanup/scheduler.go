package cleanup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"wheelroom/internal/room"
	"wheelroom/internal/store"
	"wheelroom/pkg/metrics"
)

// Store is the slice of the external TTL store the scheduler needs
type Store interface {
	Ping(ctx context.Context) error
	ScanPage(ctx context.Context, cursor uint64, count int64) ([]string, uint64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	RoomID(key string) (string, bool)
	DeleteKey(ctx context.Context, key string) (bool, error)
}

// Evictor drops a room's process-local derived state (snapshot cache plus
// pending debounce state). Implemented by the broadcaster.
type Evictor interface {
	Evict(roomID string) bool
	CachedRoomState(roomID string) *room.Room
}

// Groups tears down a room's live transport group
type Groups interface {
	DisconnectAll(roomID string) int
	RemoveGroup(roomID string) bool
}

// Archiver persists a room's selection log before its state is dropped
type Archiver interface {
	ArchiveSelections(ctx context.Context, r *room.Room) (int, error)
}

// Metrics summarizes one eviction pass
type Metrics struct {
	StartTime           time.Time `json:"startTime"`
	EndTime             time.Time `json:"endTime"`
	DurationMS          int64     `json:"durationMs"`
	KeysScanned         int       `json:"keysScanned"`
	ExpiredKeysFound    int       `json:"expiredKeysFound"`
	ExpiredKeysDeleted  int       `json:"expiredKeysDeleted"`
	CacheEntriesCleared int       `json:"cacheEntriesCleared"`
	NamespacesCleared   int       `json:"namespacesCleared"`
	Errors              []string  `json:"errors,omitempty"`
}

// Config for one scheduler instance; values come from app config
type Config struct {
	Interval        time.Duration
	ExpiryThreshold time.Duration
	MaxScanCount    int
	ScanPageSize    int
}

// Status is the admin-surface view of the scheduler
type Status struct {
	Running             bool  `json:"isRunning"`
	IntervalSeconds     int64 `json:"intervalSeconds"`
	ExpiryThresholdSecs int64 `json:"expiryThresholdSeconds"`
	MaxScanCount        int   `json:"maxScanCount"`
}

// Scheduler periodically reconciles process-local room state against the
// external store: rooms whose key is gone or about to expire get their cache
// entry and transport group dropped. Best-effort and non-authoritative; the
// store's own TTL is what deletes the authoritative key.
type Scheduler struct {
	log     *slog.Logger
	cfg     Config
	store   Store
	evictor Evictor
	groups  Groups
	archive Archiver // optional

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(log *slog.Logger, cfg Config, st Store, ev Evictor, gr Groups, ar Archiver) *Scheduler {
	return &Scheduler{log: log, cfg: cfg, store: st, evictor: ev, groups: gr, archive: ar}
}

// Start launches the periodic pass. Idempotent: a second call warns and does
// not double-schedule.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.log.Warn("cleanup.start.already_running")
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.RunOnce(runCtx)
			}
		}
	}(s.done)

	s.log.Info("cleanup.started", "interval", s.cfg.Interval)
}

// Stop halts the schedule. Idempotent: warns when not running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.log.Warn("cleanup.stop.not_running")
		return
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	<-done
	s.log.Info("cleanup.stopped")
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) Status() Status {
	return Status{
		Running:             s.IsRunning(),
		IntervalSeconds:     int64(s.cfg.Interval / time.Second),
		ExpiryThresholdSecs: int64(s.cfg.ExpiryThreshold / time.Second),
		MaxScanCount:        s.cfg.MaxScanCount,
	}
}

// RunOnce executes one eviction pass and returns its metrics. Never panics
// or returns an error: failures are contained per key / per room and
// reported in the metrics; only a store connectivity failure aborts the
// pass, and the schedule continues on the next tick regardless.
func (s *Scheduler) RunOnce(ctx context.Context) Metrics {
	m := Metrics{StartTime: time.Now()}

	if err := s.store.Ping(ctx); err != nil {
		m.Errors = append(m.Errors, fmt.Sprintf("store unreachable: %v", err))
		s.finish(&m, "aborted")
		return m
	}

	var cursor uint64
scan:
	for {
		keys, next, err := s.store.ScanPage(ctx, cursor, int64(s.cfg.ScanPageSize))
		if err != nil {
			m.Errors = append(m.Errors, fmt.Sprintf("scan: %v", err))
			s.finish(&m, "aborted")
			return m
		}

		for _, key := range keys {
			m.KeysScanned++
			s.checkKey(ctx, key, &m)
		}

		cursor = next
		if cursor == 0 {
			break scan
		}
		if m.KeysScanned >= s.cfg.MaxScanCount {
			s.log.Warn("cleanup.scan.limit", "scanned", m.KeysScanned, "max", s.cfg.MaxScanCount)
			break scan
		}
	}

	s.finish(&m, "ok")
	return m
}

// checkKey decides eligibility for one scanned key and evicts when due.
// TTL lookup failures skip the key, never the pass.
func (s *Scheduler) checkKey(ctx context.Context, key string, m *Metrics) {
	ttl, err := s.store.TTL(ctx, key)
	if err != nil {
		m.Errors = append(m.Errors, fmt.Sprintf("ttl %s: %v", key, err))
		s.log.Warn("cleanup.ttl.failed", "key", key, "err", err)
		return
	}

	switch {
	case ttl == store.TTLMissing:
		// Already expired upstream; only local state is left to drop
		m.ExpiredKeysFound++
	case ttl >= 0 && ttl <= s.cfg.ExpiryThreshold:
		// About to expire: evict local state now so derived caches never
		// outlive the source of truth, and drop the key proactively
		m.ExpiredKeysFound++
		if deleted, err := s.store.DeleteKey(ctx, key); err != nil {
			m.Errors = append(m.Errors, fmt.Sprintf("del %s: %v", key, err))
		} else if deleted {
			m.ExpiredKeysDeleted++
		}
	default:
		// Healthy TTL (or no expiry set): leave the room alone
		return
	}

	roomID, ok := s.store.RoomID(key)
	if !ok {
		return
	}
	s.evictRoom(ctx, roomID, m)
}

// evictRoom drops cache entry, pending broadcast state, and the transport
// group. Each sub-step is contained so one failure never blocks the rest.
func (s *Scheduler) evictRoom(ctx context.Context, roomID string, m *Metrics) {
	if s.archive != nil {
		if snap := s.evictor.CachedRoomState(roomID); snap != nil && len(snap.SelectionHistory) > 0 {
			if _, err := s.archive.ArchiveSelections(ctx, snap); err != nil {
				m.Errors = append(m.Errors, fmt.Sprintf("archive %s: %v", roomID, err))
				s.log.Warn("cleanup.archive.failed", "room", roomID, "err", err)
			}
		}
	}

	if s.evictor.Evict(roomID) {
		m.CacheEntriesCleared++
	}

	disconnected := s.groups.DisconnectAll(roomID)
	if s.groups.RemoveGroup(roomID) {
		m.NamespacesCleared++
	}

	metrics.RoomsEvicted.Inc()
	s.log.Info("cleanup.room.evicted", "room", roomID, "disconnected", disconnected)
}

func (s *Scheduler) finish(m *Metrics, result string) {
	m.EndTime = time.Now()
	m.DurationMS = m.EndTime.Sub(m.StartTime).Milliseconds()

	metrics.CleanupPasses.WithLabelValues(result).Inc()
	metrics.KeysScanned.Add(float64(m.KeysScanned))

	s.log.Info("cleanup.pass.done",
		"result", result,
		"duration_ms", m.DurationMS,
		"scanned", m.KeysScanned,
		"expired_found", m.ExpiredKeysFound,
		"expired_deleted", m.ExpiredKeysDeleted,
		"cache_cleared", m.CacheEntriesCleared,
		"groups_cleared", m.NamespacesCleared,
		"errors", len(m.Errors),
	)
}

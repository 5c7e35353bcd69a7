package broadcast

import "sync"

// roomLocks serializes same-room broadcasts so a diff computation can never
// interleave with a cache write for that room. Cross-room calls run in
// parallel; there is deliberately no global lock.
type roomLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newRoomLocks() *roomLocks {
	return &roomLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *roomLocks) get(roomID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := l.locks[roomID]
	if m == nil {
		m = &sync.Mutex{}
		l.locks[roomID] = m
	}
	return m
}

// forget drops the lock entry for an evicted room
func (l *roomLocks) forget(roomID string) {
	l.mu.Lock()
	delete(l.locks, roomID)
	l.mu.Unlock()
}

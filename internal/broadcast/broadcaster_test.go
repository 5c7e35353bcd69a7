package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"wheelroom/internal/room"
)

type emitCall struct {
	roomID  string
	event   string
	payload any
}

type fakeTransport struct {
	clients int
	emitErr error
	emits   []emitCall
}

func (f *fakeTransport) ClientCount(string) int { return f.clients }

func (f *fakeTransport) Emit(_ context.Context, roomID, event string, payload any) error {
	if f.emitErr != nil {
		return f.emitErr
	}
	f.emits = append(f.emits, emitCall{roomID: roomID, event: event, payload: payload})
	return nil
}

func testLogger() *slog.Logger { return slog.Default() }

func testRoom() *room.Room {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &room.Room{
		ID:     "7f9c24e5-2a31-4bfa-9a3e-1d6a2c5b8e01",
		Name:   "demo",
		Status: room.RoomActive,
		Participants: []room.Participant{
			{ID: "p1", DisplayName: "Ana", Status: room.StatusQueued, Role: room.RoleOrganizer, JoinedAt: now, LastUpdatedAt: now},
		},
		OrganizerID:   "p1",
		CreatedAt:     now,
		LastUpdatedAt: now,
		ExpiresAt:     now.Add(8 * time.Hour),
	}
}

func TestBroadcastTransportNotInitialized(t *testing.T) {
	b := New(testLogger(), Budgets{})
	r := testRoom()

	_, err := b.BroadcastRoomState(context.Background(), r, false)
	if !errors.Is(err, ErrTransportNotInitialized) {
		t.Fatalf("want ErrTransportNotInitialized, got %v", err)
	}
	if b.CachedRoomState(r.ID) != nil {
		t.Fatal("cache must remain unmodified")
	}
}

func TestBroadcastZeroClientsShortCircuit(t *testing.T) {
	b := New(testLogger(), Budgets{})
	ft := &fakeTransport{clients: 0}
	b.SetTransport(ft)
	r := testRoom()

	m, err := b.BroadcastRoomState(context.Background(), r, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.ClientCount != 0 || m.Broadcast != 0 {
		t.Fatalf("want zero clientCount and broadcastTime, got %+v", m)
	}
	if len(ft.emits) != 0 {
		t.Fatal("emit must never be called with zero clients")
	}
	if b.CachedRoomState(r.ID) != nil {
		t.Fatal("unobserved updates must not pollute the cache")
	}
}

func TestBroadcastIdempotence(t *testing.T) {
	b := New(testLogger(), Budgets{})
	ft := &fakeTransport{clients: 2}
	b.SetTransport(ft)
	r := testRoom()

	m1, err := b.BroadcastRoomState(context.Background(), r, false)
	if err != nil {
		t.Fatalf("first broadcast: %v", err)
	}
	if m1.ClientCount != 2 || len(ft.emits) != 1 {
		t.Fatalf("first call must emit, got %+v / %d emits", m1, len(ft.emits))
	}

	// Second call with an unchanged snapshot is the debounce/no-op path
	m2, err := b.BroadcastRoomState(context.Background(), r.Clone(), false)
	if err != nil {
		t.Fatalf("second broadcast: %v", err)
	}
	if m2.ClientCount != 0 {
		t.Fatalf("skipped call must report clientCount 0, got %d", m2.ClientCount)
	}
	if len(ft.emits) != 1 {
		t.Fatalf("second identical call must not emit, got %d emits", len(ft.emits))
	}
}

func TestBroadcastForce(t *testing.T) {
	b := New(testLogger(), Budgets{})
	ft := &fakeTransport{clients: 1}
	b.SetTransport(ft)
	r := testRoom()

	if _, err := b.BroadcastRoomState(context.Background(), r, false); err != nil {
		t.Fatal(err)
	}
	if _, err := b.BroadcastRoomState(context.Background(), r.Clone(), true); err != nil {
		t.Fatal(err)
	}
	if len(ft.emits) != 2 {
		t.Fatalf("force must always emit, got %d emits", len(ft.emits))
	}
}

func TestBroadcastCacheRoundTrip(t *testing.T) {
	b := New(testLogger(), Budgets{})
	b.SetTransport(&fakeTransport{clients: 1})
	r := testRoom()

	if _, err := b.BroadcastRoomState(context.Background(), r, false); err != nil {
		t.Fatal(err)
	}
	got := b.CachedRoomState(r.ID)
	if got == nil || !reflect.DeepEqual(*got, *r) {
		t.Fatalf("cache must equal the broadcast snapshot exactly\n got %+v\nwant %+v", got, r)
	}
}

func TestBroadcastEmitFailureLeavesCache(t *testing.T) {
	b := New(testLogger(), Budgets{})
	ft := &fakeTransport{clients: 1}
	b.SetTransport(ft)

	r1 := testRoom()
	if _, err := b.BroadcastRoomState(context.Background(), r1, false); err != nil {
		t.Fatal(err)
	}

	r2 := r1.Clone()
	r2.Participants[0].Status = room.StatusActive
	r2.Participants[0].LastUpdatedAt = r2.Participants[0].LastUpdatedAt.Add(time.Second)

	cause := errors.New("socket gone")
	ft.emitErr = cause
	_, err := b.BroadcastRoomState(context.Background(), r2, false)

	var fe *FailedError
	if !errors.As(err, &fe) || !errors.Is(err, cause) {
		t.Fatalf("want wrapped FailedError carrying the cause, got %v", err)
	}
	got := b.CachedRoomState(r1.ID)
	if got.Participants[0].Status != room.StatusQueued {
		t.Fatal("failed broadcast must not update the cache")
	}
}

func TestBroadcastParticipantUpdate(t *testing.T) {
	b := New(testLogger(), Budgets{})
	ft := &fakeTransport{clients: 0}
	b.SetTransport(ft)
	r := testRoom()

	// no clients: emitted=false, no error
	emitted, err := b.BroadcastParticipantUpdate(context.Background(), r.ID, r.Participants[0], room.ChangeUpdated)
	if err != nil || emitted {
		t.Fatalf("no-client path: want (false, nil), got (%v, %v)", emitted, err)
	}

	ft.clients = 1
	emitted, err = b.BroadcastParticipantUpdate(context.Background(), r.ID, r.Participants[0], room.ChangeUpdated)
	if err != nil || !emitted {
		t.Fatalf("want (true, nil), got (%v, %v)", emitted, err)
	}
	if ft.emits[0].event != room.EventParticipantUpdate {
		t.Fatalf("wrong event %s", ft.emits[0].event)
	}

	// failures surface as wrapped errors, same policy as the full path
	ft.emitErr = errors.New("down")
	emitted, err = b.BroadcastParticipantUpdate(context.Background(), r.ID, r.Participants[0], room.ChangeUpdated)
	var fe *FailedError
	if emitted || !errors.As(err, &fe) {
		t.Fatalf("want wrapped error, got (%v, %v)", emitted, err)
	}
}

func TestEvictClearsCacheAndLock(t *testing.T) {
	b := New(testLogger(), Budgets{})
	b.SetTransport(&fakeTransport{clients: 1})
	r := testRoom()

	if _, err := b.BroadcastRoomState(context.Background(), r, false); err != nil {
		t.Fatal(err)
	}
	if !b.Evict(r.ID) {
		t.Fatal("evict must report the cache entry it cleared")
	}
	if b.CachedRoomState(r.ID) != nil {
		t.Fatal("cache entry must be gone after evict")
	}
	if b.Evict(r.ID) {
		t.Fatal("second evict must report nothing cleared")
	}
}

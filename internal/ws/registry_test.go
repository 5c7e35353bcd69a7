package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
)

const validRoomID = "7f9c24e5-2a31-4bfa-9a3e-1d6a2c5b8e01"

func TestValidateRoomID(t *testing.T) {
	cases := []struct {
		id string
		ok bool
	}{
		{validRoomID, true},
		{"", false},
		{"not-a-uuid", false},
		{"room:" + validRoomID, false},
		// well-formed, but version 1
		{"2c5ea4c0-4067-11e9-8bad-9b1deb4d3b7d", false},
	}
	for _, c := range cases {
		err := ValidateRoomID(c.id)
		if c.ok && err != nil {
			t.Fatalf("%q: unexpected %v", c.id, err)
		}
		if !c.ok && !errors.Is(err, ErrInvalidRoomID) {
			t.Fatalf("%q: want ErrInvalidRoomID, got %v", c.id, err)
		}
	}
}

func TestGroupName(t *testing.T) {
	if g := GroupName(validRoomID); g != "room:"+validRoomID {
		t.Fatalf("bad group name %q", g)
	}
}

func TestRegistryJoinLeaveCount(t *testing.T) {
	r := NewRegistry(slog.Default())

	if err := r.Join("bogus", NewConn(nil, "bogus")); !errors.Is(err, ErrInvalidRoomID) {
		t.Fatalf("malformed id must be rejected at the boundary, got %v", err)
	}

	c1 := NewConn(nil, validRoomID)
	c2 := NewConn(nil, validRoomID)
	if err := r.Join(validRoomID, c1); err != nil {
		t.Fatal(err)
	}
	if err := r.Join(validRoomID, c2); err != nil {
		t.Fatal(err)
	}
	if n := r.ClientCount(validRoomID); n != 2 {
		t.Fatalf("want 2 clients, got %d", n)
	}
	if n := r.TotalClients(); n != 2 {
		t.Fatalf("want 2 total, got %d", n)
	}

	r.Leave(validRoomID, c1)
	if n := r.ClientCount(validRoomID); n != 1 {
		t.Fatalf("want 1 client after leave, got %d", n)
	}
	r.Leave(validRoomID, c2)
	if n := r.ClientCount(validRoomID); n != 0 {
		t.Fatalf("empty group must report 0, got %d", n)
	}
}

func TestRegistryEmitFansOut(t *testing.T) {
	r := NewRegistry(slog.Default())
	c1 := NewConn(nil, validRoomID)
	c2 := NewConn(nil, validRoomID)
	_ = r.Join(validRoomID, c1)
	_ = r.Join(validRoomID, c2)

	if err := r.Emit(context.Background(), validRoomID, "timer_update", map[string]any{"active": true}); err != nil {
		t.Fatal(err)
	}

	for _, c := range []*Conn{c1, c2} {
		select {
		case raw := <-c.out:
			var env envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				t.Fatal(err)
			}
			if env.Event != "timer_update" {
				t.Fatalf("wrong event %q", env.Event)
			}
		default:
			t.Fatal("every group member must receive the frame")
		}
	}
}

func TestRegistryRemoveGroup(t *testing.T) {
	r := NewRegistry(slog.Default())
	_ = r.Join(validRoomID, NewConn(nil, validRoomID))

	if !r.RemoveGroup(validRoomID) {
		t.Fatal("existing group must report removal")
	}
	if r.ClientCount(validRoomID) != 0 {
		t.Fatal("removed group must have no clients")
	}
	if r.RemoveGroup(validRoomID) {
		t.Fatal("second removal must report absence")
	}
}

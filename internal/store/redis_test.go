package store

import "testing"

func TestKeyLayout(t *testing.T) {
	s := &Rooms{prefix: "room:"}

	key := s.Key("7f9c24e5-2a31-4bfa-9a3e-1d6a2c5b8e01")
	if key != "room:7f9c24e5-2a31-4bfa-9a3e-1d6a2c5b8e01" {
		t.Fatalf("bad key %q", key)
	}

	id, ok := s.RoomID(key)
	if !ok || id != "7f9c24e5-2a31-4bfa-9a3e-1d6a2c5b8e01" {
		t.Fatalf("round trip failed: %q %v", id, ok)
	}

	if _, ok := s.RoomID("session:whatever"); ok {
		t.Fatal("foreign keys must not match")
	}
}

func TestTTLSentinels(t *testing.T) {
	// redis reports -2 for a missing key and -1 for no expiry; the cleanup
	// scheduler relies on these exact values
	if TTLMissing != -2 || TTLNoExpiry != -1 {
		t.Fatalf("sentinels drifted: %d %d", TTLMissing, TTLNoExpiry)
	}
}

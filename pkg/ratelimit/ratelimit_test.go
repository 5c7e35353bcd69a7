package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinBudget(t *testing.T) {
	l := New(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("request %d should pass", i)
		}
	}
	if l.Allow("1.2.3.4") {
		t.Fatal("budget exhausted, must deny")
	}
	if !l.Allow("5.6.7.8") {
		t.Fatal("separate keys have separate budgets")
	}
}

func TestWindowReset(t *testing.T) {
	l := New(1, 20*time.Millisecond)
	if !l.Allow("k") {
		t.Fatal("first request should pass")
	}
	if l.Allow("k") {
		t.Fatal("second request in window must deny")
	}
	time.Sleep(30 * time.Millisecond)
	if !l.Allow("k") {
		t.Fatal("new window must refill tokens")
	}
}

package command

import (
	"testing"
	"time"
)

func TestCooldown_AllowsOncePerInterval(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	c := NewCooldown(3 * time.Second)
	c.now = func() time.Time { return now }

	if !c.Allow("user-1") {
		t.Fatal("expected first call to be allowed")
	}
	if c.Allow("user-1") {
		t.Fatal("expected second call to be limited")
	}
	if !c.Allow("user-2") {
		t.Fatal("expected other users to be unaffected")
	}
	now = now.Add(3 * time.Second)
	if !c.Allow("user-1") {
		t.Fatal("expected call after interval to be allowed")
	}
}

func TestCooldown_ZeroIntervalDisables(t *testing.T) {
	c := NewCooldown(0)
	for i := 0; i < 5; i++ {
		if !c.Allow("user-1") {
			t.Fatal("expected disabled cooldown to allow every call")
		}
	}
	if c.Len() != 0 {
		t.Fatalf("expected no entries, got %d", c.Len())
	}
}

func TestCooldown_SweepEvictsIdleUsers(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	c := NewCooldown(time.Second)
	c.now = func() time.Time { return now }

	c.Allow("idle")
	now = now.Add(5 * time.Second)
	c.Allow("active")

	if evicted := c.Sweep(); evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 remaining entry, got %d", c.Len())
	}
}

package reaper

import (
	"testing"
	"time"

	"coderoom/internal/session"
)

func TestSweepEvictsIdleRooms(t *testing.T) {
	hub := session.NewHub()
	hub.GetOrCreate("stale")

	// A negative TTL makes any empty room immediately stale.
	r := New(hub, -time.Second, nil)
	r.Sweep()

	if hub.Len() != 0 {
		t.Fatalf("expected 0 rooms after sweep, got %d", hub.Len())
	}
}

func TestSweepKeepsFreshRooms(t *testing.T) {
	hub := session.NewHub()
	hub.GetOrCreate("fresh")

	r := New(hub, time.Hour, nil)
	r.Sweep()

	if hub.Len() != 1 {
		t.Fatalf("expected fresh room to survive, got %d rooms", hub.Len())
	}
}

func TestSweepOnEmptyHub(t *testing.T) {
	r := New(session.NewHub(), time.Minute, nil)
	r.Sweep()
}

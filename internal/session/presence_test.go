package session

import (
	"testing"
)

func TestPresenceDeduplicatesConnections(t *testing.T) {
	p := NewPresenceRegistry()
	p.AddConnection("r1", "c1", "u1", "Alice")
	p.AddConnection("r1", "c2", "u1", "Alice")
	p.AddConnection("r1", "c3", "u2", "Bob")

	snap := p.SnapshotPresence("r1")
	if len(snap) != 2 {
		t.Fatalf("expected 2 entries, got %d: %#v", len(snap), snap)
	}
	if snap[0].UserID != "u1" || snap[1].UserID != "u2" {
		t.Fatalf("expected sorted user ids, got %#v", snap)
	}

	// One of two tabs closing keeps the user present.
	if _, _, ok := p.RemoveConnection("c1"); !ok {
		t.Fatalf("expected known connection")
	}
	if !p.IsUserPresent("r1", "u1") {
		t.Fatalf("u1 should remain present with one connection left")
	}
	if got := len(p.SnapshotPresence("r1")); got != 2 {
		t.Fatalf("expected 2 entries after partial disconnect, got %d", got)
	}

	p.RemoveConnection("c2")
	if p.IsUserPresent("r1", "u1") {
		t.Fatalf("u1 should be absent after last connection closed")
	}
}

func TestPresenceLastNonEmptyNameWins(t *testing.T) {
	p := NewPresenceRegistry()
	p.AddConnection("r1", "c1", "u1", "Alice")
	p.AddConnection("r1", "c2", "u1", "Alice B.")
	p.AddConnection("r1", "c3", "u1", "")

	snap := p.SnapshotPresence("r1")
	if len(snap) != 1 {
		t.Fatalf("expected 1 entry, got %#v", snap)
	}
	if snap[0].UserName != "Alice B." {
		t.Fatalf("expected last non-empty name, got %q", snap[0].UserName)
	}
}

func TestPresenceFallsBackToUserID(t *testing.T) {
	p := NewPresenceRegistry()
	p.AddConnection("r1", "c1", "u1", "")

	snap := p.SnapshotPresence("r1")
	if len(snap) != 1 || snap[0].UserName != "u1" {
		t.Fatalf("expected fallback to user id, got %#v", snap)
	}
}

func TestPresenceRemoveUnknownConnection(t *testing.T) {
	p := NewPresenceRegistry()
	if _, _, ok := p.RemoveConnection("nope"); ok {
		t.Fatalf("unknown connection reported as known")
	}
}

func TestPresenceRoomsAreIndependent(t *testing.T) {
	p := NewPresenceRegistry()
	p.AddConnection("r1", "c1", "u1", "Alice")
	p.AddConnection("r2", "c2", "u1", "Alice")

	if got := p.ConnectionCount("r1"); got != 1 {
		t.Fatalf("expected 1 connection in r1, got %d", got)
	}
	p.RemoveConnection("c1")
	if p.IsUserPresent("r1", "u1") {
		t.Fatalf("u1 should be gone from r1")
	}
	if !p.IsUserPresent("r2", "u1") {
		t.Fatalf("u1 should remain in r2")
	}
}

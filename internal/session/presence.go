package session

import (
	"sort"
	"sync"

	"coderoom/internal/models"
)

type connEntry struct {
	roomID   string
	userID   string
	userName string
}

// PresenceRegistry maps live connections to (room, user, name) tuples and
// derives a deduplicated per-room roster. A user with several open tabs has
// several connections but appears once in the roster.
//
// Display-name policy: the last non-empty name supplied for a user wins,
// falling back to the user id when no connection ever supplied one.
type PresenceRegistry struct {
	mu    sync.Mutex
	conns map[string]connEntry            // connID -> entry
	rooms map[string]map[string]connEntry // roomID -> connID -> entry
	names map[string]map[string]string    // roomID -> userID -> display name
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		conns: make(map[string]connEntry),
		rooms: make(map[string]map[string]connEntry),
		names: make(map[string]map[string]string),
	}
}

func (p *PresenceRegistry) AddConnection(roomID, connID, userID, userName string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e := connEntry{roomID: roomID, userID: userID, userName: userName}
	p.conns[connID] = e
	if p.rooms[roomID] == nil {
		p.rooms[roomID] = make(map[string]connEntry)
	}
	p.rooms[roomID][connID] = e

	if p.names[roomID] == nil {
		p.names[roomID] = make(map[string]string)
	}
	if userName != "" {
		p.names[roomID][userID] = userName
	}
}

// RemoveConnection drops a connection from the registry and reports which
// room and user it belonged to. Unknown connections are a no-op, not an
// error: the transport may report a close for a connection that never joined.
func (p *PresenceRegistry) RemoveConnection(connID string) (roomID, userID string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, found := p.conns[connID]
	if !found {
		return "", "", false
	}
	delete(p.conns, connID)
	if conns := p.rooms[e.roomID]; conns != nil {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(p.rooms, e.roomID)
		}
	}
	if !p.userPresentLocked(e.roomID, e.userID) {
		if names := p.names[e.roomID]; names != nil {
			delete(names, e.userID)
			if len(names) == 0 {
				delete(p.names, e.roomID)
			}
		}
	}
	return e.roomID, e.userID, true
}

// SnapshotPresence returns the room's roster, one entry per user, ordered by
// user id so broadcasts are stable.
func (p *PresenceRegistry) SnapshotPresence(roomID string) []models.PresenceEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]struct{})
	out := make([]models.PresenceEntry, 0, len(p.rooms[roomID]))
	for _, e := range p.rooms[roomID] {
		if _, dup := seen[e.userID]; dup {
			continue
		}
		seen[e.userID] = struct{}{}
		name := p.names[roomID][e.userID]
		if name == "" {
			name = e.userID
		}
		out = append(out, models.PresenceEntry{UserID: e.userID, UserName: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (p *PresenceRegistry) IsUserPresent(roomID, userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.userPresentLocked(roomID, userID)
}

func (p *PresenceRegistry) ConnectionCount(roomID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rooms[roomID])
}

func (p *PresenceRegistry) userPresentLocked(roomID, userID string) bool {
	for _, e := range p.rooms[roomID] {
		if e.userID == userID {
			return true
		}
	}
	return false
}

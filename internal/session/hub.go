package session

import (
	"sync"
	"time"
)

// Hub manages all active room sessions. Sessions are created lazily on first
// join and reaped once they have stayed empty past the idle TTL; eviction
// only drops the in-memory cache, never the persisted record.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewHub() *Hub { return &Hub{rooms: make(map[string]*Room)} }

func (h *Hub) GetOrCreate(id string) (*Room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[id]; ok {
		return r, false
	}
	r := NewRoom(id)
	h.rooms[id] = r
	return r, true
}

func (h *Hub) Get(id string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[id]
	return r, ok
}

func (h *Hub) Delete(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, id)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Reap evicts sessions that have been empty for longer than maxIdle and
// returns how many were removed.
func (h *Hub) Reap(maxIdle time.Duration) int {
	h.mu.RLock()
	candidates := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		candidates = append(candidates, r)
	}
	h.mu.RUnlock()

	cutoff := time.Now().Add(-maxIdle)
	evicted := 0
	for _, r := range candidates {
		since := r.idleSince()
		if since.IsZero() || since.After(cutoff) {
			continue
		}
		h.mu.Lock()
		// Re-check under the write lock; a client may have joined meanwhile.
		if cur, ok := h.rooms[r.ID]; ok && cur == r && cur.ClientCount() == 0 {
			delete(h.rooms, r.ID)
			evicted++
		}
		h.mu.Unlock()
	}
	return evicted
}

package session

import (
	"sync"
	"time"

	"coderoom/internal/models"
)

// PlaceholderDocument seeds a room whose persisted record is missing or
// unreadable.
const PlaceholderDocument = "// Start coding here..."

// Room is the live session of one room: the authoritative document text, the
// turn arbiter, and the connected clients. All fields are guarded by mu; the
// coordinator holds mu for the whole of each protocol event so that events
// touching one room never interleave, while unrelated rooms stay independent.
type Room struct {
	ID string

	mu         sync.Mutex
	doc        string
	loaded     bool
	turn       TurnArbiter
	clients    map[string]*Client // connID -> client
	emptySince time.Time
}

func NewRoom(id string) *Room {
	return &Room{
		ID:         id,
		doc:        PlaceholderDocument,
		clients:    make(map[string]*Client),
		emptySince: time.Now(),
	}
}

// attach registers a connection's client. Callers hold mu.
func (r *Room) attach(connID string, c *Client) {
	r.clients[connID] = c
	r.emptySince = time.Time{}
}

// detach drops a connection and reports how many remain. Callers hold mu.
func (r *Room) detach(connID string) int {
	delete(r.clients, connID)
	if len(r.clients) == 0 {
		r.emptySince = time.Now()
	}
	return len(r.clients)
}

// broadcast sends a frame to every connection in the room. Callers hold mu.
// Delivery is best-effort per client.
func (r *Room) broadcast(frame models.WSFrame) {
	for _, c := range r.clients {
		c.Send(frame)
	}
}

// Snapshot returns the current document text and turn holder.
func (r *Room) Snapshot() (doc string, holder string, held bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	holder, held = r.turn.Holder()
	return r.doc, holder, held
}

func (r *Room) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// idleSince reports when the room last became empty; zero while occupied.
func (r *Room) idleSince() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.clients) > 0 {
		return time.Time{}
	}
	return r.emptySince
}

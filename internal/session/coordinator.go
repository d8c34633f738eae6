package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"coderoom/internal/models"
)

// ErrRoomNotFound is returned by gateways when no persisted record exists
// for a room id.
var ErrRoomNotFound = errors.New("room not found")

// PersistenceGateway is the durable room store as seen by the coordinator.
type PersistenceGateway interface {
	LoadRoom(ctx context.Context, roomID string) (models.RoomSnapshot, error)
	// SaveDocumentAndClearTurn writes the document text and clears the
	// persisted turn owner in a single atomic update.
	SaveDocumentAndClearTurn(ctx context.Context, roomID, documentText string) error
}

// EventPublisher receives room lifecycle events. Publishing is
// fire-and-forget; implementations must not block on delivery.
type EventPublisher interface {
	Publish(ctx context.Context, ev models.RoomEvent)
}

// Coordinator orchestrates the presence registry, turn arbiter, and room
// session store in response to protocol events. Each event runs to
// completion under its room's lock, so per-room state never sees interleaved
// read-modify-write sequences while unrelated rooms proceed in parallel.
type Coordinator struct {
	hub      *Hub
	presence *PresenceRegistry
	gateway  PersistenceGateway
	events   EventPublisher
	log      *zap.Logger
}

func NewCoordinator(hub *Hub, gateway PersistenceGateway, events EventPublisher, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		hub:      hub,
		presence: NewPresenceRegistry(),
		gateway:  gateway,
		events:   events,
		log:      log,
	}
}

func (c *Coordinator) Hub() *Hub                   { return c.hub }
func (c *Coordinator) Presence() *PresenceRegistry { return c.presence }

// Join registers a connection in a room, replies with the current document
// and turn state to that connection only, and broadcasts the updated roster.
// The first join of a room seeds its document from the persistence gateway;
// a failed or empty load degrades to the placeholder and the room stays
// usable.
func (c *Coordinator) Join(ctx context.Context, connID string, client *Client, p models.JoinPayload) {
	room, _ := c.hub.GetOrCreate(p.RoomID)
	room.mu.Lock()
	defer room.mu.Unlock()

	if !room.loaded {
		snap, err := c.gateway.LoadRoom(ctx, p.RoomID)
		switch {
		case err == nil && snap.DocumentContent != "":
			room.doc = snap.DocumentContent
		case err != nil && !errors.Is(err, ErrRoomNotFound):
			c.log.Warn("room load failed, using placeholder",
				zap.String("roomId", p.RoomID), zap.Error(err))
		}
		// The persisted turn owner is deliberately ignored: the live turn
		// always starts free when a session comes into memory.
		room.loaded = true
	}

	c.presence.AddConnection(p.RoomID, connID, p.UserID, p.UserName)
	room.attach(connID, client)

	holder, held := room.turn.Holder()
	client.Send(models.WSFrame{Type: models.FrameDocumentSnapshot, Data: room.doc})
	client.Send(models.WSFrame{Type: models.FrameTurnState, Data: turnStateData(holder, held)})

	room.broadcast(models.WSFrame{
		Type: models.FramePresenceUpdated,
		Data: c.presence.SnapshotPresence(p.RoomID),
	})
}

// RequestTurn grants the editing token when it is free and broadcasts the
// new holder. A request while the turn is held is ignored with no reply; the
// requester keeps seeing the unchanged prior state.
func (c *Coordinator) RequestTurn(_ context.Context, p models.RequestTurnPayload) {
	room, ok := c.hub.Get(p.RoomID)
	if !ok {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	if !room.turn.Request(p.UserID) {
		return
	}
	room.broadcast(models.WSFrame{Type: models.FrameTurnState, Data: p.UserID})
}

// FinishTurn persists the submitted document and clears the turn, then
// mirrors both into memory and broadcasts them. The persistence write comes
// first: if it fails, nothing changes in memory and the error is returned so
// the holder can be told to retry with the token still held. A finish from a
// non-holder is dropped;
// the bool reports whether a hand-off actually happened.
func (c *Coordinator) FinishTurn(ctx context.Context, p models.FinishTurnPayload) (bool, error) {
	room, ok := c.hub.Get(p.RoomID)
	if !ok {
		return false, nil
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	holder, held := room.turn.Holder()
	if !held || holder != p.UserID {
		c.log.Info("finishTurn from non-holder dropped",
			zap.String("roomId", p.RoomID), zap.String("userId", p.UserID))
		return false, nil
	}

	if err := c.gateway.SaveDocumentAndClearTurn(ctx, p.RoomID, p.DocumentText); err != nil {
		c.log.Error("document save failed, turn kept",
			zap.String("roomId", p.RoomID), zap.String("userId", p.UserID), zap.Error(err))
		return false, fmt.Errorf("save document for room %s: %w", p.RoomID, err)
	}

	room.doc = p.DocumentText
	room.turn.Release(p.UserID)

	room.broadcast(models.WSFrame{Type: models.FrameDocumentSnapshot, Data: room.doc})
	room.broadcast(models.WSFrame{Type: models.FrameTurnState, Data: nil})

	c.publish(ctx, models.RoomEvent{
		Type: models.EventTurnFinished, RoomID: p.RoomID, UserID: p.UserID, At: time.Now().UTC(),
	})
	return true, nil
}

// Disconnect removes a connection and broadcasts the shrunken roster. The
// turn is freed only when its holder has no connections left, so closing one
// of several tabs keeps the turn. A fully emptied room has its turn state
// cleared regardless, covering a stale holder reference.
func (c *Coordinator) Disconnect(ctx context.Context, connID string) {
	roomID, userID, ok := c.presence.RemoveConnection(connID)
	if !ok {
		return
	}
	room, ok := c.hub.Get(roomID)
	if !ok {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	remaining := room.detach(connID)

	room.broadcast(models.WSFrame{
		Type: models.FramePresenceUpdated,
		Data: c.presence.SnapshotPresence(roomID),
	})

	holder, held := room.turn.Holder()
	if held && holder == userID && !c.presence.IsUserPresent(roomID, userID) {
		room.turn.ForceReleaseIfHolder(userID)
		room.broadcast(models.WSFrame{Type: models.FrameTurnState, Data: nil})
	}

	if remaining == 0 {
		room.turn.clear()
		c.publish(ctx, models.RoomEvent{
			Type: models.EventRoomEmptied, RoomID: roomID, At: time.Now().UTC(),
		})
	}
}

func (c *Coordinator) publish(ctx context.Context, ev models.RoomEvent) {
	if c.events != nil {
		c.events.Publish(ctx, ev)
	}
}

func turnStateData(holder string, held bool) interface{} {
	if !held {
		return nil
	}
	return holder
}

package models

import "time"

/*** WebSocket protocol ***/

// Frame types exchanged over a room's websocket.
const (
	FrameJoin             = "join"
	FrameRequestTurn      = "requestTurn"
	FrameFinishTurn       = "finishTurn"
	FrameDocumentSnapshot = "documentSnapshot"
	FrameTurnState        = "turnState"
	FramePresenceUpdated  = "presenceUpdated"
	FrameError            = "error"
)

type WSFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type JoinPayload struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type RequestTurnPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type FinishTurnPayload struct {
	RoomID       string `json:"roomId"`
	UserID       string `json:"userId"`
	DocumentText string `json:"documentText"`
}

// PresenceEntry is one deduplicated user in a room's roster.
type PresenceEntry struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

/*** Persistence gateway ***/

// RoomSnapshot is what the coordinator needs from the durable room record.
type RoomSnapshot struct {
	DocumentContent string
	TurnOwner       string
}

/*** Room lifecycle events (redis pub/sub) ***/

const (
	EventTurnFinished = "turn_finished"
	EventRoomEmptied  = "room_emptied"
)

type RoomEvent struct {
	Type   string    `json:"type"`
	RoomID string    `json:"roomId"`
	UserID string    `json:"userId,omitempty"`
	At     time.Time `json:"at"`
}

/*** Persisted room record ***/

// RoomRecord is the durable room document (MongoDB).
type RoomRecord struct {
	ID              string    `bson:"_id,omitempty" json:"id"`
	Name            string    `bson:"name" json:"name"`
	IsPrivate       bool      `bson:"isPrivate" json:"isPrivate"`
	JoinCode        string    `bson:"joinCode,omitempty" json:"joinCode,omitempty"`
	AdminID         string    `bson:"admin" json:"adminId"`
	MemberIDs       []string  `bson:"users" json:"memberIds,omitempty"`
	CurrentTurnUser string    `bson:"currentTurnUser,omitempty" json:"currentTurnUser,omitempty"`
	CodeContent     string    `bson:"codeContent" json:"codeContent,omitempty"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time `bson:"updatedAt" json:"updatedAt"`
}

/*** REST payloads ***/

type CreateRoomRequest struct {
	Name      string `json:"name"`
	IsPrivate bool   `json:"isPrivate"`
}

type JoinRoomRequest struct {
	RoomID   string `json:"roomId"`
	JoinCode string `json:"joinCode,omitempty"`
}

type RoomResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsPrivate bool   `json:"isPrivate"`
	AdminID   string `json:"adminId,omitempty"`
	JoinCode  string `json:"joinCode,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

type GenerateResponse struct {
	Code string `json:"code"`
}

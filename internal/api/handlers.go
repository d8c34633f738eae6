package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"coderoom/internal/generate"
	"coderoom/internal/metrics"
	"coderoom/internal/models"
	"coderoom/internal/session"
	"coderoom/internal/utils"
)

type Handlers struct {
	log       *zap.Logger
	coord     *session.Coordinator
	rooms     RoomStore
	gen       generate.Provider
	jwtSecret string
}

func NewHandlers(log *zap.Logger, coord *session.Coordinator, rooms RoomStore, gen generate.Provider, jwtSecret string) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{log: log, coord: coord, rooms: rooms, gen: gen, jwtSecret: jwtSecret}
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

/*** Room lifecycle (REST) ***/

func (h *Handlers) CreateRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authUserID(w, r)
	if !ok {
		return
	}
	var req models.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.Name == "" {
		utils.JSONError(w, http.StatusBadRequest, "room name is required")
		return
	}

	joinCode := ""
	if req.IsPrivate {
		joinCode = newJoinCode()
	}
	room, err := h.rooms.Create(r.Context(), req.Name, req.IsPrivate, joinCode, userID)
	if err != nil {
		h.log.Error("room create failed", zap.Error(err))
		utils.JSONError(w, http.StatusInternalServerError, "failed to create room")
		return
	}
	utils.JSON(w, http.StatusCreated, roomResponse(room, true))
}

func (h *Handlers) JoinRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authUserID(w, r)
	if !ok {
		return
	}
	var req models.JoinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	room, err := h.rooms.FindByID(r.Context(), req.RoomID)
	if err != nil {
		if errors.Is(err, session.ErrRoomNotFound) {
			utils.JSONError(w, http.StatusNotFound, "room not found")
			return
		}
		h.log.Error("room lookup failed", zap.String("roomId", req.RoomID), zap.Error(err))
		utils.JSONError(w, http.StatusInternalServerError, "failed to join room")
		return
	}
	if room.IsPrivate && room.JoinCode != req.JoinCode {
		utils.JSONError(w, http.StatusUnauthorized, "invalid join code")
		return
	}
	if err := h.rooms.AddMember(r.Context(), req.RoomID, userID); err != nil {
		h.log.Error("room join failed", zap.String("roomId", req.RoomID), zap.Error(err))
		utils.JSONError(w, http.StatusInternalServerError, "failed to join room")
		return
	}
	utils.JSON(w, http.StatusOK, roomResponse(room, false))
}

func (h *Handlers) ListRooms(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authUserID(w, r)
	if !ok {
		return
	}
	rooms, err := h.rooms.ListByMember(r.Context(), userID)
	if err != nil {
		h.log.Error("room list failed", zap.Error(err))
		utils.JSONError(w, http.StatusInternalServerError, "failed to list rooms")
		return
	}
	out := make([]models.RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, roomResponse(room, false))
	}
	utils.JSON(w, http.StatusOK, out)
}

func (h *Handlers) GetRoom(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authUserID(w, r); !ok {
		return
	}
	roomID := chi.URLParam(r, "roomID")
	room, err := h.rooms.FindByID(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, session.ErrRoomNotFound) {
			utils.JSONError(w, http.StatusNotFound, "room not found")
			return
		}
		h.log.Error("room lookup failed", zap.String("roomId", roomID), zap.Error(err))
		utils.JSONError(w, http.StatusInternalServerError, "failed to fetch room")
		return
	}
	utils.JSON(w, http.StatusOK, models.RoomResponse{ID: room.ID, Name: room.Name})
}

/*** Code generation ***/

func (h *Handlers) GenerateCode(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.Prompt == "" {
		utils.JSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if h.gen == nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "code generation is not configured")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	code, err := h.gen.GenerateComponent(ctx, req.Prompt)
	if err != nil {
		h.log.Error("code generation failed", zap.Error(err))
		utils.JSONError(w, http.StatusInternalServerError, "code generation failed")
		return
	}
	utils.JSON(w, http.StatusOK, models.GenerateResponse{Code: code})
}

/*** Room WebSocket ***/

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// RoomWS upgrades the connection and bridges it to the session coordinator.
// The first frame must be a join; after that the loop accepts requestTurn
// and finishTurn until the peer goes away.
func (h *Handlers) RoomWS(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	client := session.NewClient(conn)

	// The socket outlives the request deadline, so coordinator calls must
	// not inherit the request context.
	ctx := context.Background()

	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()
	defer h.coord.Disconnect(ctx, connID)

	var first models.WSFrame
	if err := conn.ReadJSON(&first); err != nil {
		return
	}
	if first.Type != models.FrameJoin {
		client.Send(errFrame("expected join"))
		return
	}
	var join models.JoinPayload
	decodeFrameData(first.Data, &join)
	join.RoomID = roomID // the URL names the room, not the payload
	if join.UserID == "" {
		client.Send(errFrame("userId is required"))
		return
	}
	h.coord.Join(ctx, connID, client, join)

	for {
		var frame models.WSFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Type {
		case models.FrameRequestTurn:
			var p models.RequestTurnPayload
			decodeFrameData(frame.Data, &p)
			p.RoomID = roomID
			h.coord.RequestTurn(ctx, p)

		case models.FrameFinishTurn:
			var p models.FinishTurnPayload
			decodeFrameData(frame.Data, &p)
			p.RoomID = roomID
			finished, err := h.coord.FinishTurn(ctx, p)
			if err != nil {
				// Only the holder learns about the failed save; everyone
				// else keeps seeing the unfinished state until the retry.
				client.Send(errFrame("save_failed"))
			}
			if finished {
				metrics.TurnHandoffs.Inc()
			}

		default:
			client.Send(errFrame("unknown_type"))
		}
	}
}

func (h *Handlers) authUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, err := utils.VerifyToken(r, h.jwtSecret)
	if err != nil {
		utils.JSONError(w, http.StatusUnauthorized, err.Error())
		return "", false
	}
	userID, err := utils.GetUserIDFromClaims(claims)
	if err != nil {
		utils.JSONError(w, http.StatusUnauthorized, err.Error())
		return "", false
	}
	return userID, true
}

func roomResponse(room *models.RoomRecord, withJoinCode bool) models.RoomResponse {
	resp := models.RoomResponse{
		ID:        room.ID,
		Name:      room.Name,
		IsPrivate: room.IsPrivate,
		AdminID:   room.AdminID,
		CreatedAt: room.CreatedAt.UTC().Format(time.RFC3339),
	}
	if withJoinCode {
		resp.JoinCode = room.JoinCode
	}
	return resp
}

func newJoinCode() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func decodeFrameData(in any, out any) { b, _ := json.Marshal(in); _ = json.Unmarshal(b, out) }

func errFrame(msg string) models.WSFrame { return models.WSFrame{Type: models.FrameError, Data: msg} }

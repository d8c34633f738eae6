package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"

	"coderoom/internal/models"
	"coderoom/internal/session"
)

const testSecret = "test-secret"

/*** fakes ***/

type fakeStore struct {
	mu    sync.Mutex
	rooms map[string]*models.RoomRecord
	seq   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rooms: make(map[string]*models.RoomRecord)}
}

func (s *fakeStore) Create(_ context.Context, name string, isPrivate bool, joinCode, adminID string) (*models.RoomRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	room := &models.RoomRecord{
		ID:              fmt.Sprintf("room-%d", s.seq),
		Name:            name,
		IsPrivate:       isPrivate,
		JoinCode:        joinCode,
		AdminID:         adminID,
		MemberIDs:       []string{adminID},
		CurrentTurnUser: adminID,
		CodeContent:     session.PlaceholderDocument,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	s.rooms[room.ID] = room
	return room, nil
}

func (s *fakeStore) FindByID(_ context.Context, id string) (*models.RoomRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, session.ErrRoomNotFound
	}
	return room, nil
}

func (s *fakeStore) ListByMember(_ context.Context, userID string) ([]*models.RoomRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.RoomRecord
	for _, room := range s.rooms {
		for _, m := range room.MemberIDs {
			if m == userID {
				out = append(out, room)
				break
			}
		}
	}
	return out, nil
}

func (s *fakeStore) AddMember(_ context.Context, roomID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return session.ErrRoomNotFound
	}
	for _, m := range room.MemberIDs {
		if m == userID {
			return nil
		}
	}
	room.MemberIDs = append(room.MemberIDs, userID)
	return nil
}

type fakeGateway struct {
	mu      sync.Mutex
	docs    map[string]string
	saveErr error
}

func newFakeGateway() *fakeGateway { return &fakeGateway{docs: make(map[string]string)} }

func (g *fakeGateway) LoadRoom(_ context.Context, roomID string) (models.RoomSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	doc, ok := g.docs[roomID]
	if !ok {
		return models.RoomSnapshot{}, session.ErrRoomNotFound
	}
	return models.RoomSnapshot{DocumentContent: doc}, nil
}

func (g *fakeGateway) SaveDocumentAndClearTurn(_ context.Context, roomID, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.saveErr != nil {
		return g.saveErr
	}
	g.docs[roomID] = text
	return nil
}

func (g *fakeGateway) setSaveErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saveErr = err
}

type fakeProvider struct {
	code string
	err  error
}

func (p *fakeProvider) GenerateComponent(context.Context, string) (string, error) {
	return p.code, p.err
}
func (p *fakeProvider) ProviderName() string { return "fake" }

/*** helpers ***/

func newTestHandlers(store *fakeStore, gw *fakeGateway) *Handlers {
	coord := session.NewCoordinator(session.NewHub(), gw, nil, nil)
	return NewHandlers(nil, coord, store, nil, testSecret)
}

func bearerToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return "Bearer " + signed
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

/*** REST ***/

func TestCreateRoomRequiresAuth(t *testing.T) {
	h := newTestHandlers(newFakeStore(), newFakeGateway())
	rec := doJSON(t, h.CreateRoom, "POST", "/api/v1/rooms", "", models.CreateRoomRequest{Name: "demo"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateRoom(t *testing.T) {
	store := newFakeStore()
	h := newTestHandlers(store, newFakeGateway())

	rec := doJSON(t, h.CreateRoom, "POST", "/api/v1/rooms", bearerToken(t, "u1"),
		models.CreateRoomRequest{Name: "demo", IsPrivate: true})
	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp models.RoomResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "demo", resp.Name)
	assert.True(t, resp.IsPrivate)
	assert.Equal(t, "u1", resp.AdminID)
	assert.Len(t, resp.JoinCode, 8, "private rooms get an 8-hex join code")

	stored := store.rooms[resp.ID]
	assert.Equal(t, "u1", stored.CurrentTurnUser, "creator is the initial persisted turn holder")
}

func TestCreateRoomValidatesName(t *testing.T) {
	h := newTestHandlers(newFakeStore(), newFakeGateway())
	rec := doJSON(t, h.CreateRoom, "POST", "/api/v1/rooms", bearerToken(t, "u1"),
		models.CreateRoomRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJoinRoomValidatesJoinCode(t *testing.T) {
	store := newFakeStore()
	h := newTestHandlers(store, newFakeGateway())
	room, _ := store.Create(context.Background(), "demo", true, "abcd1234", "u1")

	rec := doJSON(t, h.JoinRoom, "POST", "/api/v1/rooms/join", bearerToken(t, "u2"),
		models.JoinRoomRequest{RoomID: room.ID, JoinCode: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h.JoinRoom, "POST", "/api/v1/rooms/join", bearerToken(t, "u2"),
		models.JoinRoomRequest{RoomID: room.ID, JoinCode: "abcd1234"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, store.rooms[room.ID].MemberIDs, "u2")

	var resp models.RoomResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.JoinCode, "join code never leaks to joiners")
}

func TestJoinRoomNotFound(t *testing.T) {
	h := newTestHandlers(newFakeStore(), newFakeGateway())
	rec := doJSON(t, h.JoinRoom, "POST", "/api/v1/rooms/join", bearerToken(t, "u2"),
		models.JoinRoomRequest{RoomID: "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRoomsFiltersByMembership(t *testing.T) {
	store := newFakeStore()
	h := newTestHandlers(store, newFakeGateway())
	store.Create(context.Background(), "mine", false, "", "u1")
	store.Create(context.Background(), "theirs", false, "", "u2")

	rec := doJSON(t, h.ListRooms, "GET", "/api/v1/rooms", bearerToken(t, "u1"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp []models.RoomResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp, 1)
	assert.Equal(t, "mine", resp[0].Name)
}

func TestGetRoomReturnsNameForDisplay(t *testing.T) {
	store := newFakeStore()
	h := newTestHandlers(store, newFakeGateway())
	room, _ := store.Create(context.Background(), "demo", false, "", "u1")

	r := chi.NewRouter()
	r.Get("/api/v1/rooms/{roomID}", h.GetRoom)
	req := httptest.NewRequest("GET", "/api/v1/rooms/"+room.ID, nil)
	req.Header.Set("Authorization", bearerToken(t, "u1"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp models.RoomResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "demo", resp.Name)
	assert.Empty(t, resp.AdminID)
}

func TestGenerateCode(t *testing.T) {
	t.Run("prompt required", func(t *testing.T) {
		h := newTestHandlers(newFakeStore(), newFakeGateway())
		rec := doJSON(t, h.GenerateCode, "POST", "/api/v1/generate", "", models.GenerateRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not configured", func(t *testing.T) {
		h := newTestHandlers(newFakeStore(), newFakeGateway())
		rec := doJSON(t, h.GenerateCode, "POST", "/api/v1/generate", "",
			models.GenerateRequest{Prompt: "a navbar"})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("success", func(t *testing.T) {
		h := newTestHandlers(newFakeStore(), newFakeGateway())
		h.gen = &fakeProvider{code: "const App = () => null;"}
		rec := doJSON(t, h.GenerateCode, "POST", "/api/v1/generate", "",
			models.GenerateRequest{Prompt: "a navbar"})
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp models.GenerateResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "const App = () => null;", resp.Code)
	})

	t.Run("provider failure", func(t *testing.T) {
		h := newTestHandlers(newFakeStore(), newFakeGateway())
		h.gen = &fakeProvider{err: errors.New("quota")}
		rec := doJSON(t, h.GenerateCode, "POST", "/api/v1/generate", "",
			models.GenerateRequest{Prompt: "a navbar"})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

/*** WebSocket ***/

func wsServer(t *testing.T, h *Handlers) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/ws/rooms/{roomID}", h.RoomWS)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func dialRoom(t *testing.T, server *httptest.Server, roomID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/rooms/" + roomID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, frameType string, data any) {
	t.Helper()
	if err := conn.WriteJSON(models.WSFrame{Type: frameType, Data: data}); err != nil {
		t.Fatalf("write %s frame: %v", frameType, err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) models.WSFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame models.WSFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func TestRoomWSTurnLifecycle(t *testing.T) {
	gw := newFakeGateway()
	h := newTestHandlers(newFakeStore(), gw)
	server := wsServer(t, h)

	conn := dialRoom(t, server, "room1")
	sendFrame(t, conn, models.FrameJoin, models.JoinPayload{UserID: "u1", UserName: "Alice"})

	snap := readFrame(t, conn)
	assert.Equal(t, models.FrameDocumentSnapshot, snap.Type)
	assert.Equal(t, session.PlaceholderDocument, snap.Data)

	turn := readFrame(t, conn)
	assert.Equal(t, models.FrameTurnState, turn.Type)
	assert.Nil(t, turn.Data)

	presence := readFrame(t, conn)
	assert.Equal(t, models.FramePresenceUpdated, presence.Type)
	assert.Len(t, presence.Data, 1)

	sendFrame(t, conn, models.FrameRequestTurn, models.RequestTurnPayload{UserID: "u1"})
	turn = readFrame(t, conn)
	assert.Equal(t, models.FrameTurnState, turn.Type)
	assert.Equal(t, "u1", turn.Data)

	sendFrame(t, conn, models.FrameFinishTurn, models.FinishTurnPayload{UserID: "u1", DocumentText: "let x=1;"})
	snap = readFrame(t, conn)
	assert.Equal(t, models.FrameDocumentSnapshot, snap.Type)
	assert.Equal(t, "let x=1;", snap.Data)
	turn = readFrame(t, conn)
	assert.Equal(t, models.FrameTurnState, turn.Type)
	assert.Nil(t, turn.Data)

	assert.Equal(t, "let x=1;", gw.docs["room1"], "document persisted at hand-off")
}

func TestRoomWSPersistFailureReportsToHolderOnly(t *testing.T) {
	gw := newFakeGateway()
	h := newTestHandlers(newFakeStore(), gw)
	server := wsServer(t, h)

	conn := dialRoom(t, server, "room1")
	sendFrame(t, conn, models.FrameJoin, models.JoinPayload{UserID: "u1", UserName: "Alice"})
	readFrame(t, conn) // documentSnapshot
	readFrame(t, conn) // turnState
	readFrame(t, conn) // presenceUpdated

	sendFrame(t, conn, models.FrameRequestTurn, models.RequestTurnPayload{UserID: "u1"})
	readFrame(t, conn) // turnState u1

	gw.setSaveErr(errors.New("mongo down"))
	sendFrame(t, conn, models.FrameFinishTurn, models.FinishTurnPayload{UserID: "u1", DocumentText: "x"})

	errF := readFrame(t, conn)
	assert.Equal(t, models.FrameError, errF.Type)
	assert.Equal(t, "save_failed", errF.Data)

	// Retrying the same finish after recovery completes the hand-off.
	gw.setSaveErr(nil)
	sendFrame(t, conn, models.FrameFinishTurn, models.FinishTurnPayload{UserID: "u1", DocumentText: "x"})
	snap := readFrame(t, conn)
	assert.Equal(t, models.FrameDocumentSnapshot, snap.Type)
	assert.Equal(t, "x", snap.Data)
}

func TestRoomWSPresenceAcrossConnections(t *testing.T) {
	h := newTestHandlers(newFakeStore(), newFakeGateway())
	server := wsServer(t, h)

	conn1 := dialRoom(t, server, "room1")
	sendFrame(t, conn1, models.FrameJoin, models.JoinPayload{UserID: "u1", UserName: "Alice"})
	readFrame(t, conn1) // documentSnapshot
	readFrame(t, conn1) // turnState
	first := readFrame(t, conn1)
	assert.Len(t, first.Data, 1)

	// Same user from a second tab stays a single roster entry.
	conn2 := dialRoom(t, server, "room1")
	sendFrame(t, conn2, models.FrameJoin, models.JoinPayload{UserID: "u1", UserName: "Alice"})
	readFrame(t, conn2) // documentSnapshot
	readFrame(t, conn2) // turnState
	second := readFrame(t, conn2)
	assert.Len(t, second.Data, 1)

	// conn1 sees the rebroadcast roster, still one entry.
	update := readFrame(t, conn1)
	assert.Equal(t, models.FramePresenceUpdated, update.Type)
	assert.Len(t, update.Data, 1)
}

func TestRoomWSRejectsNonJoinFirstFrame(t *testing.T) {
	h := newTestHandlers(newFakeStore(), newFakeGateway())
	server := wsServer(t, h)

	conn := dialRoom(t, server, "room1")
	sendFrame(t, conn, models.FrameRequestTurn, models.RequestTurnPayload{UserID: "u1"})

	errF := readFrame(t, conn)
	assert.Equal(t, models.FrameError, errF.Type)
	assert.Equal(t, "expected join", errF.Data)
}

func TestRoomWSRejectsMissingUserID(t *testing.T) {
	h := newTestHandlers(newFakeStore(), newFakeGateway())
	server := wsServer(t, h)

	conn := dialRoom(t, server, "room1")
	sendFrame(t, conn, models.FrameJoin, models.JoinPayload{UserName: "ghost"})

	errF := readFrame(t, conn)
	assert.Equal(t, models.FrameError, errF.Type)
	assert.Equal(t, "userId is required", errF.Data)
}

func TestRoomWSUnknownFrameType(t *testing.T) {
	h := newTestHandlers(newFakeStore(), newFakeGateway())
	server := wsServer(t, h)

	conn := dialRoom(t, server, "room1")
	sendFrame(t, conn, models.FrameJoin, models.JoinPayload{UserID: "u1"})
	readFrame(t, conn)
	readFrame(t, conn)
	readFrame(t, conn)

	sendFrame(t, conn, "cursor", map[string]int{"pos": 3})
	errF := readFrame(t, conn)
	assert.Equal(t, models.FrameError, errF.Type)
	assert.Equal(t, "unknown_type", errF.Data)
}

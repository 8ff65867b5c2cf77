package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scimas/badam-sat/auth"
	utils "github.com/scimas/badam-sat/internal"
	"github.com/scimas/badam-sat/lobby"
	"github.com/scimas/badam-sat/room"
)

func newTestServer(maxRooms int) *GameServer {
	l := lobby.New(maxRooms, room.Opts{})
	signer := auth.NewSigner([]byte("test-signing-key"), time.Hour)
	return NewServer(l, signer, zap.NewNop())
}

func mustMakeJSON(t *testing.T, payload interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return data
}

func doRequest(srv *GameServer, method, target string, body []byte, token string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(method, target, bytes.NewReader(body))
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	response := httptest.NewRecorder()
	srv.ServeHTTP(response, request)
	return response
}

func assertStatus(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("got status %d, want %d", got, want)
	}
}

// createRoom drives the API to create a room and returns its ID.
func createRoom(t *testing.T, srv *GameServer, players, decks int) uuid.UUID {
	t.Helper()
	data := mustMakeJSON(t, NewRoomReq{Players: players, Decks: decks})
	response := doRequest(srv, http.MethodPost, "/api/create_room", data, "")
	require.Equal(t, http.StatusCreated, response.Code, response.Body.String())

	var res RoomRes
	require.NoError(t, json.NewDecoder(response.Body).Decode(&res))
	return res.RoomID
}

// joinRoom drives the API to join a room and returns the player's token.
func joinRoom(t *testing.T, srv *GameServer, roomID uuid.UUID) string {
	t.Helper()
	data := mustMakeJSON(t, RoomRes{RoomID: roomID})
	response := doRequest(srv, http.MethodPost, "/api/join", data, "")
	require.Equal(t, http.StatusOK, response.Code, response.Body.String())

	var res JoinRes
	require.NoError(t, json.NewDecoder(response.Body).Decode(&res))
	utils.AssertEqual(t, res.TokenType, "Bearer")
	return res.Token
}

func TestCreateRoomEndpoint(t *testing.T) {
	t.Run("succeeds and returns a room ID", func(t *testing.T) {
		srv := newTestServer(4)
		roomID := createRoom(t, srv, 2, 1)
		assert.NotEqual(t, uuid.Nil, roomID)
	})

	t.Run("returns 400 for a malformed body", func(t *testing.T) {
		srv := newTestServer(4)
		response := doRequest(srv, http.MethodPost, "/api/create_room", []byte("{"), "")
		assertStatus(t, response.Code, http.StatusBadRequest)
	})

	t.Run("returns 400 for an unplayable room", func(t *testing.T) {
		srv := newTestServer(4)
		data := mustMakeJSON(t, NewRoomReq{Players: 1, Decks: 1})
		response := doRequest(srv, http.MethodPost, "/api/create_room", data, "")
		assertStatus(t, response.Code, http.StatusBadRequest)
	})

	t.Run("returns 409 when the server is full", func(t *testing.T) {
		srv := newTestServer(1)
		createRoom(t, srv, 2, 1)

		data := mustMakeJSON(t, NewRoomReq{Players: 2, Decks: 1})
		response := doRequest(srv, http.MethodPost, "/api/create_room", data, "")
		assertStatus(t, response.Code, http.StatusConflict)
	})

	t.Run("does not match on GET", func(t *testing.T) {
		srv := newTestServer(4)
		response := doRequest(srv, http.MethodGet, "/api/create_room", nil, "")
		assertStatus(t, response.Code, http.StatusMethodNotAllowed)
	})
}

func TestJoinEndpoint(t *testing.T) {
	t.Run("hands out verifiable tokens", func(t *testing.T) {
		l := lobby.New(4, room.Opts{})
		signer := auth.NewSigner([]byte("test-signing-key"), time.Hour)
		srv := NewServer(l, signer, zap.NewNop())

		roomID := createRoom(t, srv, 2, 1)
		token := joinRoom(t, srv, roomID)

		claim, err := signer.Verify(token)
		utils.AssertNoError(t, err)
		utils.AssertEqual(t, claim, auth.Claim{Player: 0, Room: roomID})
	})

	t.Run("returns 400 for an unknown room", func(t *testing.T) {
		srv := newTestServer(4)
		data := mustMakeJSON(t, RoomRes{RoomID: uuid.NewV4()})
		response := doRequest(srv, http.MethodPost, "/api/join", data, "")
		assertStatus(t, response.Code, http.StatusBadRequest)
	})

	t.Run("returns 400 once the room is full", func(t *testing.T) {
		srv := newTestServer(4)
		roomID := createRoom(t, srv, 2, 1)
		joinRoom(t, srv, roomID)
		joinRoom(t, srv, roomID)

		data := mustMakeJSON(t, RoomRes{RoomID: roomID})
		response := doRequest(srv, http.MethodPost, "/api/join", data, "")
		assertStatus(t, response.Code, http.StatusBadRequest)
	})
}

func TestPlayEndpoint(t *testing.T) {
	t.Run("requires a token", func(t *testing.T) {
		srv := newTestServer(4)
		data := mustMakeJSON(t, room.PassTurn())
		response := doRequest(srv, http.MethodPost, "/api/play", data, "")
		assertStatus(t, response.Code, http.StatusUnauthorized)
	})

	t.Run("rejects a forged token", func(t *testing.T) {
		srv := newTestServer(4)
		forger := auth.NewSigner([]byte("someone-elses-key"), time.Hour)
		token, err := forger.Issue(0, uuid.NewV4())
		utils.AssertNoError(t, err)

		data := mustMakeJSON(t, room.PassTurn())
		response := doRequest(srv, http.MethodPost, "/api/play", data, token)
		assertStatus(t, response.Code, http.StatusUnauthorized)
	})

	t.Run("too early before the room fills", func(t *testing.T) {
		srv := newTestServer(4)
		roomID := createRoom(t, srv, 2, 1)
		token := joinRoom(t, srv, roomID)

		data := mustMakeJSON(t, room.PassTurn())
		response := doRequest(srv, http.MethodPost, "/api/play", data, token)
		assertStatus(t, response.Code, http.StatusBadRequest)
	})
}

func TestGameStateEndpoint(t *testing.T) {
	t.Run("serves hand counts, never cards", func(t *testing.T) {
		srv := newTestServer(4)
		roomID := createRoom(t, srv, 2, 1)
		joinRoom(t, srv, roomID)
		joinRoom(t, srv, roomID)

		response := doRequest(srv, http.MethodGet, "/api/game_state?room_id="+roomID.String(), nil, "")
		assertStatus(t, response.Code, http.StatusOK)

		var snap struct {
			HandSizes []int `json:"hand_sizes"`
		}
		require.NoError(t, json.NewDecoder(response.Body).Decode(&snap))
		utils.AssertDeepEqual(t, snap.HandSizes, []int{26, 26})
	})

	t.Run("returns 400 without a room ID", func(t *testing.T) {
		srv := newTestServer(4)
		response := doRequest(srv, http.MethodGet, "/api/game_state", nil, "")
		assertStatus(t, response.Code, http.StatusBadRequest)
	})

	t.Run("returns 400 for an unknown room", func(t *testing.T) {
		srv := newTestServer(4)
		response := doRequest(srv, http.MethodGet, "/api/game_state?room_id="+uuid.NewV4().String(), nil, "")
		assertStatus(t, response.Code, http.StatusBadRequest)
	})
}

func TestHandEndpoint(t *testing.T) {
	srv := newTestServer(4)
	roomID := createRoom(t, srv, 2, 1)
	token := joinRoom(t, srv, roomID)
	joinRoom(t, srv, roomID)

	response := doRequest(srv, http.MethodGet, "/api/my_hand", nil, token)
	assertStatus(t, response.Code, http.StatusOK)

	var hand []json.RawMessage
	require.NoError(t, json.NewDecoder(response.Body).Decode(&hand))
	assert.Len(t, hand, 26)
}

func TestLastMoveEndpoint(t *testing.T) {
	srv := newTestServer(4)
	roomID := createRoom(t, srv, 2, 1)

	response := doRequest(srv, http.MethodGet, "/api/last_move?room_id="+roomID.String(), nil, "")
	assertStatus(t, response.Code, http.StatusBadRequest)

	var res ErrorRes
	require.NoError(t, json.NewDecoder(response.Body).Decode(&res))
	assert.Contains(t, res.Error, "no move")
}

func TestEvictedRoomOverHTTP(t *testing.T) {
	l := lobby.New(4, room.Opts{IdleTimeout: 20 * time.Millisecond})
	signer := auth.NewSigner([]byte("test-signing-key"), time.Hour)
	srv := NewServer(l, signer, zap.NewNop())

	roomID := createRoom(t, srv, 2, 1)

	// probing would reset the room's quiescence window, so outwait it
	time.Sleep(200 * time.Millisecond)

	response := doRequest(srv, http.MethodGet, "/api/game_state?room_id="+roomID.String(), nil, "")
	assertStatus(t, response.Code, http.StatusBadRequest)
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	uuid "github.com/satori/go.uuid"
	"go.uber.org/zap"

	"github.com/scimas/badam-sat/auth"
	"github.com/scimas/badam-sat/game"
	"github.com/scimas/badam-sat/lobby"
	"github.com/scimas/badam-sat/room"
)

// longPollWindow is how long /api/playing_area waits for a change before
// replying with the current area.
const longPollWindow = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type NewRoomReq struct {
	Players int `json:"players"`
	Decks   int `json:"decks"`
}

type RoomRes struct {
	RoomID uuid.UUID `json:"room_id"`
}

type JoinRes struct {
	TokenType string `json:"token_type"`
	Token     string `json:"token"`
}

type ErrorRes struct {
	Error string `json:"error"`
}

// GameServer is the HTTP surface over the lobby
type GameServer struct {
	lobby   *lobby.Lobby
	signer  *auth.Signer
	logger  *zap.Logger
	handler http.Handler
}

// NewServer creates a new GameServer
func NewServer(l *lobby.Lobby, signer *auth.Signer, logger *zap.Logger) *GameServer {
	s := &GameServer{lobby: l, signer: signer, logger: logger}

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/create_room", s.HandleCreateRoom).Methods(http.MethodPost)
	api.HandleFunc("/join", s.HandleJoin).Methods(http.MethodPost)
	api.HandleFunc("/play", s.HandlePlay).Methods(http.MethodPost)
	api.HandleFunc("/game_state", s.HandleGameState).Methods(http.MethodGet)
	api.HandleFunc("/my_hand", s.HandleHand).Methods(http.MethodGet)
	api.HandleFunc("/last_move", s.HandleLastMove).Methods(http.MethodGet)
	api.HandleFunc("/playing_area", s.HandlePlayingArea).Methods(http.MethodGet)
	api.HandleFunc("/ws", s.HandleWS).Methods(http.MethodGet)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost}),
	)
	s.handler = handlers.RecoveryHandler()(cors(router))
	return s
}

// ServeHTTP serves http
func (g *GameServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.handler.ServeHTTP(w, r)
}

// HandleCreateRoom handles a request to create a new room
func (g *GameServer) HandleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req NewRoomReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.writeError(w, errBadRequest("could not parse request body"))
		return
	}
	defer r.Body.Close()

	roomID, err := g.lobby.CreateRoom(req.Players, req.Decks)
	if err != nil {
		g.writeError(w, err)
		return
	}
	g.logger.Info("created room",
		zap.String("room_id", roomID.String()),
		zap.Int("players", req.Players),
		zap.Int("decks", req.Decks),
	)
	g.respondJSON(w, http.StatusCreated, RoomRes{RoomID: roomID})
}

// HandleJoin handles a request to join a room, answering with a signed token
// binding the caller to their seat
func (g *GameServer) HandleJoin(w http.ResponseWriter, r *http.Request) {
	var req RoomRes
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.writeError(w, errBadRequest("could not parse request body"))
		return
	}
	defer r.Body.Close()

	player, err := g.lobby.Join(r.Context(), req.RoomID)
	if err != nil {
		g.writeError(w, err)
		return
	}
	token, err := g.signer.Issue(player, req.RoomID)
	if err != nil {
		g.logger.Error("could not sign token", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	g.logger.Info("player joined",
		zap.String("room_id", req.RoomID.String()),
		zap.Int("player", player),
	)
	g.respondJSON(w, http.StatusOK, JoinRes{TokenType: "Bearer", Token: token})
}

// HandlePlay handles a move from an authenticated player
func (g *GameServer) HandlePlay(w http.ResponseWriter, r *http.Request) {
	claim, err := g.authenticate(r)
	if err != nil {
		g.writeError(w, err)
		return
	}
	var action room.Action
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		g.writeError(w, errBadRequest("could not parse action"))
		return
	}
	defer r.Body.Close()

	if err := g.lobby.Play(r.Context(), claim.Room, claim.Player, action); err != nil {
		g.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HandleGameState handles a request for a room's public state
func (g *GameServer) HandleGameState(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomIDFromQuery(r)
	if err != nil {
		g.writeError(w, err)
		return
	}
	snap, err := g.lobby.Snapshot(r.Context(), roomID)
	if err != nil {
		g.writeError(w, err)
		return
	}
	g.respondJSON(w, http.StatusOK, snap)
}

// HandleHand handles an authenticated player's request for their own cards
func (g *GameServer) HandleHand(w http.ResponseWriter, r *http.Request) {
	claim, err := g.authenticate(r)
	if err != nil {
		g.writeError(w, err)
		return
	}
	cards, err := g.lobby.Hand(r.Context(), claim.Room, claim.Player)
	if err != nil {
		g.writeError(w, err)
		return
	}
	g.respondJSON(w, http.StatusOK, cards)
}

// HandleLastMove handles a request for a room's most recent card play
func (g *GameServer) HandleLastMove(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomIDFromQuery(r)
	if err != nil {
		g.writeError(w, err)
		return
	}
	action, err := g.lobby.LastMove(r.Context(), roomID)
	if err != nil {
		g.writeError(w, err)
		return
	}
	g.respondJSON(w, http.StatusOK, action)
}

// HandlePlayingArea long-polls a room's playing area: it replies on the next
// change, or with the current area once the window elapses
func (g *GameServer) HandlePlayingArea(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomIDFromQuery(r)
	if err != nil {
		g.writeError(w, err)
		return
	}
	snap, changed, gone, err := g.lobby.Watch(r.Context(), roomID)
	if err != nil {
		g.writeError(w, err)
		return
	}
	select {
	case <-changed:
		if next, err := g.lobby.Snapshot(r.Context(), roomID); err == nil {
			snap = next
		}
	case <-gone:
	case <-time.After(longPollWindow):
	case <-r.Context().Done():
		return
	}
	g.respondJSON(w, http.StatusOK, snap.PlayingArea)
}

// HandleWS upgrades to a websocket and pushes a room snapshot on every change
func (g *GameServer) HandleWS(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomIDFromQuery(r)
	if err != nil {
		g.writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("could not upgrade to websocket", zap.Error(err))
		return
	}
	defer conn.Close()

	// the read loop only detects the client going away
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		snap, changed, gone, err := g.lobby.Watch(r.Context(), roomID)
		if err != nil {
			closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "room is gone")
			conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
			return
		}
		if err := conn.WriteJSON(snap); err != nil {
			return
		}
		select {
		case <-changed:
		case <-gone:
			closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "room is gone")
			conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
			return
		case <-clientGone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// authenticate verifies the request's bearer token
func (g *GameServer) authenticate(r *http.Request) (auth.Claim, error) {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, prefix) {
		return auth.Claim{}, auth.ErrInvalidToken
	}
	return g.signer.Verify(strings.TrimPrefix(header, prefix))
}

func roomIDFromQuery(r *http.Request) (uuid.UUID, error) {
	roomID, err := uuid.FromString(r.URL.Query().Get("room_id"))
	if err != nil {
		return uuid.Nil, errBadRequest("missing or malformed room_id")
	}
	return roomID, nil
}

// badRequestError marks malformed requests rejected before reaching the lobby
type badRequestError string

func errBadRequest(msg string) error {
	return badRequestError(msg)
}

func (e badRequestError) Error() string {
	return string(e)
}

// writeError maps the error taxonomy onto HTTP statuses: client errors are
// 400s (401 for bad tokens, 409 for a full server), a vanished room actor is
// 502, anything else 500.
func (g *GameServer) writeError(w http.ResponseWriter, err error) {
	var badReq badRequestError
	var status int
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		w.WriteHeader(http.StatusUnauthorized)
		return
	case errors.Is(err, lobby.ErrServerFull):
		status = http.StatusConflict
	case errors.Is(err, room.ErrClosed):
		status = http.StatusBadGateway
	case errors.Is(err, room.ErrInvalidMove),
		errors.Is(err, room.ErrTooEarly),
		errors.Is(err, room.ErrRoomFull),
		errors.Is(err, room.ErrNoMove),
		errors.Is(err, lobby.ErrInvalidRoomID),
		errors.Is(err, game.ErrInvalidPlayerID),
		errors.Is(err, game.ErrTooFewPlayers),
		errors.Is(err, game.ErrTooFewDecks),
		errors.As(err, &badReq):
		status = http.StatusBadRequest
	default:
		g.logger.Error("unexpected error", zap.Error(err))
		status = http.StatusInternalServerError
	}
	g.respondJSON(w, status, ErrorRes{Error: err.Error()})
}

func (g *GameServer) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		g.logger.Error("could not marshal response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

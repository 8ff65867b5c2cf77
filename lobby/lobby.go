// Package lobby owns the directory of active rooms and routes room-scoped
// commands to the right actor.
package lobby

import (
	"context"
	"errors"
	"sync"

	uuid "github.com/satori/go.uuid"

	"github.com/scimas/badam-sat/deck"
	"github.com/scimas/badam-sat/room"
)

var (
	ErrServerFull    = errors.New("no space left in server for another game")
	ErrInvalidRoomID = errors.New("no such room exists")
)

// Lobby is the top-level registry of rooms. Lookups run concurrently under a
// read lock; only room creation and pruning take the write lock.
type Lobby struct {
	mu       sync.RWMutex
	rooms    map[uuid.UUID]*room.Handle
	maxRooms int
	roomOpts room.Opts
}

// New constructs a lobby bounded to maxRooms simultaneous rooms. The Players
// and Decks fields of roomOpts are overridden per room on creation.
func New(maxRooms int, roomOpts room.Opts) *Lobby {
	return &Lobby{
		rooms:    make(map[uuid.UUID]*room.Handle),
		maxRooms: maxRooms,
		roomOpts: roomOpts,
	}
}

// CreateRoom spawns a room for the given player and deck counts and registers
// it under a fresh ID. It fails with ErrServerFull when the lobby is at
// capacity after pruning dead rooms.
func (l *Lobby) CreateRoom(players, decks int) (uuid.UUID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked()
	if len(l.rooms) >= l.maxRooms {
		return uuid.Nil, ErrServerFull
	}

	opts := l.roomOpts
	opts.Players = players
	opts.Decks = decks
	handle, err := room.Spawn(opts)
	if err != nil {
		return uuid.Nil, err
	}

	roomID := uuid.NewV4()
	l.rooms[roomID] = handle
	return roomID, nil
}

// handle resolves a room, failing with ErrInvalidRoomID for unknown IDs.
func (l *Lobby) handle(roomID uuid.UUID) (*room.Handle, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	handle, ok := l.rooms[roomID]
	if !ok {
		return nil, ErrInvalidRoomID
	}
	return handle, nil
}

// asLobbyError hides actor exits behind ErrInvalidRoomID: a room whose actor
// is gone is indistinguishable from one that never existed.
func asLobbyError(err error) error {
	if errors.Is(err, room.ErrClosed) {
		return ErrInvalidRoomID
	}
	return err
}

// Join claims a seat in the room.
func (l *Lobby) Join(ctx context.Context, roomID uuid.UUID) (int, error) {
	handle, err := l.handle(roomID)
	if err != nil {
		return 0, err
	}
	player, err := handle.Join(ctx)
	return player, asLobbyError(err)
}

// Play submits the player's action to the room.
func (l *Lobby) Play(ctx context.Context, roomID uuid.UUID, player int, action room.Action) error {
	handle, err := l.handle(roomID)
	if err != nil {
		return err
	}
	return asLobbyError(handle.Play(ctx, player, action))
}

// Hand returns the player's cards in the room.
func (l *Lobby) Hand(ctx context.Context, roomID uuid.UUID, player int) ([]deck.Card, error) {
	handle, err := l.handle(roomID)
	if err != nil {
		return nil, err
	}
	cards, err := handle.Hand(ctx, player)
	return cards, asLobbyError(err)
}

// Snapshot returns the room's public state.
func (l *Lobby) Snapshot(ctx context.Context, roomID uuid.UUID) (room.Snapshot, error) {
	handle, err := l.handle(roomID)
	if err != nil {
		return room.Snapshot{}, err
	}
	snap, err := handle.Snapshot(ctx)
	return snap, asLobbyError(err)
}

// LastMove returns the room's most recently accepted card play.
func (l *Lobby) LastMove(ctx context.Context, roomID uuid.UUID) (room.Action, error) {
	handle, err := l.handle(roomID)
	if err != nil {
		return room.Action{}, err
	}
	action, err := handle.LastMove(ctx)
	return action, asLobbyError(err)
}

// Watch returns the room's snapshot plus a channel closed on its next change
// and a channel closed when the room is gone.
func (l *Lobby) Watch(ctx context.Context, roomID uuid.UUID) (room.Snapshot, <-chan struct{}, <-chan struct{}, error) {
	handle, err := l.handle(roomID)
	if err != nil {
		return room.Snapshot{}, nil, nil, err
	}
	snap, changed, err := handle.Watch(ctx)
	if err != nil {
		return room.Snapshot{}, nil, nil, asLobbyError(err)
	}
	return snap, changed, handle.Done(), nil
}

// Sweep drops directory entries whose actor has exited and reports how many
// were removed.
func (l *Lobby) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pruneLocked()
}

// Len reports the number of registered rooms, dead or alive.
func (l *Lobby) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.rooms)
}

func (l *Lobby) pruneLocked() int {
	removed := 0
	for roomID, handle := range l.rooms {
		select {
		case <-handle.Done():
			delete(l.rooms, roomID)
			removed++
		default:
		}
	}
	return removed
}

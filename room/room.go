// Package room hosts one game of badam sat behind a single goroutine. Every
// request travels through the room's mailbox with its own single-use reply
// channel, so all access to the game is serialized without locks and a reply
// can never reach the wrong caller.
package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scimas/badam-sat/deck"
	"github.com/scimas/badam-sat/game"
)

var (
	ErrRoomFull    = errors.New("cannot join a full room")
	ErrTooEarly    = errors.New("game is not ready to accept moves yet")
	ErrInvalidMove = errors.New("attempted move is not valid")
	ErrNoMove      = errors.New("no move has been played yet")
	// ErrClosed is returned when the room's actor has already exited; the
	// caller should treat the room as gone.
	ErrClosed = errors.New("room is closed")
)

// ActionKind discriminates the moves a player can submit.
type ActionKind string

const (
	ActionPlay ActionKind = "play"
	ActionPass ActionKind = "pass"
)

// Action is a player's move: either play a card or pass the turn.
type Action struct {
	Kind ActionKind `json:"kind"`
	Card *deck.Card `json:"card,omitempty"`
}

// PlayCard builds a play action for the card.
func PlayCard(card deck.Card) Action {
	return Action{Kind: ActionPlay, Card: &card}
}

// PassTurn builds a pass action.
func PassTurn() Action {
	return Action{Kind: ActionPass}
}

// Snapshot is the public view of a room: the playing area and per-player hand
// counts, never anybody's cards. Version increases with every accepted
// transition.
type Snapshot struct {
	PlayingArea *game.PlayingArea `json:"playing_area"`
	HandSizes   []int             `json:"hand_sizes"`
	Winner      *int              `json:"winner,omitempty"`
	Version     uint64            `json:"version"`
}

// Opts configures a room.
type Opts struct {
	// Players and Decks configure the hosted game.
	Players int
	Decks   int
	// FreeOpening lifts the seven-of-hearts opening rule.
	FreeOpening bool
	// IdleTimeout is the quiescence window after which the room's actor
	// exits; defaults to 5 minutes.
	IdleTimeout time.Duration
	// FinishedTimeout replaces IdleTimeout once the game is over, so that
	// finished rooms are reclaimed sooner; defaults to 1 minute.
	FinishedTimeout time.Duration
}

const (
	defaultIdleTimeout     = 5 * time.Minute
	defaultFinishedTimeout = time.Minute
)

// Handle is the caller-side reference to a room's actor.
type Handle struct {
	requests chan message
	done     chan struct{}
}

type room struct {
	game          *game.Game
	joined        int
	maxPlayers    int
	lastMove      *Action
	version       uint64
	changed       chan struct{}
	idleTimeout   time.Duration
	finishedAfter time.Duration
}

type message interface{ deliver(*room) }

// Spawn validates opts, creates the room's game and starts its actor.
func Spawn(opts Opts) (*Handle, error) {
	g, err := game.New(game.Opts{
		Players:     opts.Players,
		Decks:       opts.Decks,
		FreeOpening: opts.FreeOpening,
	})
	if err != nil {
		return nil, err
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = defaultIdleTimeout
	}
	if opts.FinishedTimeout <= 0 {
		opts.FinishedTimeout = defaultFinishedTimeout
	}

	h := &Handle{
		// unbuffered on purpose: a send that succeeds has been received,
		// and the actor always replies to what it has received
		requests: make(chan message),
		done:     make(chan struct{}),
	}
	r := &room{
		game:          g,
		maxPlayers:    opts.Players,
		changed:       make(chan struct{}),
		idleTimeout:   opts.IdleTimeout,
		finishedAfter: opts.FinishedTimeout,
	}
	go r.run(h)
	return h, nil
}

func (r *room) run(h *Handle) {
	defer close(h.done)
	idle := time.NewTimer(r.idleTimeout)
	defer idle.Stop()
	for {
		select {
		case msg := <-h.requests:
			msg.deliver(r)
			if !idle.Stop() {
				<-idle.C
			}
			window := r.idleTimeout
			if r.game.Over() {
				window = r.finishedAfter
			}
			idle.Reset(window)
		case <-idle.C:
			return
		}
	}
}

// notifyChange bumps the version and wakes everyone waiting on the previous
// change channel.
func (r *room) notifyChange() {
	r.version++
	close(r.changed)
	r.changed = make(chan struct{})
}

func (r *room) snapshot() Snapshot {
	snap := Snapshot{
		PlayingArea: r.game.PlayingArea().Clone(),
		HandSizes:   r.game.HandSizes(),
		Version:     r.version,
	}
	if winner, ok := r.game.Winner(); ok {
		snap.Winner = &winner
	}
	return snap
}

// Done is closed when the room's actor has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// send delivers msg to the actor, failing with ErrClosed if it has exited.
func (h *Handle) send(ctx context.Context, msg message) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case h.requests <- msg:
		return nil
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

type joinMsg struct {
	reply chan joinReply
}

type joinReply struct {
	player int
	err    error
}

func (m joinMsg) deliver(r *room) {
	if r.joined == r.maxPlayers {
		m.reply <- joinReply{err: ErrRoomFull}
		return
	}
	player := r.joined
	r.joined++
	if r.joined == r.maxPlayers {
		if err := r.game.Update(game.Deal()); err != nil {
			m.reply <- joinReply{err: fmt.Errorf("dealing cards: %w", err)}
			return
		}
		r.notifyChange()
	}
	m.reply <- joinReply{player: player}
}

// Join claims the next free seat, dealing the cards the moment the room
// becomes full. It fails with ErrRoomFull once all seats are taken.
func (h *Handle) Join(ctx context.Context) (int, error) {
	msg := joinMsg{reply: make(chan joinReply, 1)}
	if err := h.send(ctx, msg); err != nil {
		return 0, err
	}
	res := <-msg.reply
	return res.player, res.err
}

type playMsg struct {
	player int
	action Action
	reply  chan error
}

func (m playMsg) deliver(r *room) {
	if r.joined < r.maxPlayers {
		m.reply <- ErrTooEarly
		return
	}
	var transition game.Transition
	switch m.action.Kind {
	case ActionPlay:
		if m.action.Card == nil {
			m.reply <- ErrInvalidMove
			return
		}
		transition = game.Play(m.player, *m.action.Card)
	case ActionPass:
		transition = game.PassTurn(m.player)
	default:
		m.reply <- ErrInvalidMove
		return
	}
	if err := r.game.Update(transition); err != nil {
		m.reply <- ErrInvalidMove
		return
	}
	if m.action.Kind == ActionPlay {
		action := m.action
		r.lastMove = &action
	}
	r.notifyChange()
	m.reply <- nil
}

// Play submits the player's action. It fails with ErrTooEarly before the room
// is full and ErrInvalidMove when the game rejects the action.
func (h *Handle) Play(ctx context.Context, player int, action Action) error {
	msg := playMsg{player: player, action: action, reply: make(chan error, 1)}
	if err := h.send(ctx, msg); err != nil {
		return err
	}
	return <-msg.reply
}

type handMsg struct {
	player int
	reply  chan handReply
}

type handReply struct {
	cards []deck.Card
	err   error
}

func (m handMsg) deliver(r *room) {
	cards, err := r.game.HandOf(m.player)
	m.reply <- handReply{cards: cards, err: err}
}

// Hand returns the player's unplayed cards.
func (h *Handle) Hand(ctx context.Context, player int) ([]deck.Card, error) {
	msg := handMsg{player: player, reply: make(chan handReply, 1)}
	if err := h.send(ctx, msg); err != nil {
		return nil, err
	}
	res := <-msg.reply
	return res.cards, res.err
}

type snapshotMsg struct {
	reply chan Snapshot
}

func (m snapshotMsg) deliver(r *room) {
	m.reply <- r.snapshot()
}

// Snapshot returns the room's public state.
func (h *Handle) Snapshot(ctx context.Context) (Snapshot, error) {
	msg := snapshotMsg{reply: make(chan Snapshot, 1)}
	if err := h.send(ctx, msg); err != nil {
		return Snapshot{}, err
	}
	return <-msg.reply, nil
}

type lastMoveMsg struct {
	reply chan lastMoveReply
}

type lastMoveReply struct {
	action Action
	err    error
}

func (m lastMoveMsg) deliver(r *room) {
	if r.lastMove == nil {
		m.reply <- lastMoveReply{err: ErrNoMove}
		return
	}
	m.reply <- lastMoveReply{action: *r.lastMove}
}

// LastMove returns the most recently accepted card play. Passes are not
// recorded. It fails with ErrNoMove before the first play.
func (h *Handle) LastMove(ctx context.Context) (Action, error) {
	msg := lastMoveMsg{reply: make(chan lastMoveReply, 1)}
	if err := h.send(ctx, msg); err != nil {
		return Action{}, err
	}
	res := <-msg.reply
	return res.action, res.err
}

type overMsg struct {
	reply chan bool
}

func (m overMsg) deliver(r *room) {
	m.reply <- r.game.Over()
}

// Over reports whether the room's game has ended.
func (h *Handle) Over(ctx context.Context) (bool, error) {
	msg := overMsg{reply: make(chan bool, 1)}
	if err := h.send(ctx, msg); err != nil {
		return false, err
	}
	return <-msg.reply, nil
}

type watchMsg struct {
	reply chan watchReply
}

type watchReply struct {
	snap    Snapshot
	changed <-chan struct{}
}

func (m watchMsg) deliver(r *room) {
	m.reply <- watchReply{snap: r.snapshot(), changed: r.changed}
}

// Watch returns the current snapshot together with a channel that is closed
// on the next accepted transition, so callers can wait for a change with
// their own timeout instead of polling. The room's exit also wakes waiters
// through Done.
func (h *Handle) Watch(ctx context.Context) (Snapshot, <-chan struct{}, error) {
	msg := watchMsg{reply: make(chan watchReply, 1)}
	if err := h.send(ctx, msg); err != nil {
		return Snapshot{}, nil, err
	}
	res := <-msg.reply
	return res.snap, res.changed, nil
}

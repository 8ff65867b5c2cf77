package game

import (
	"errors"

	"github.com/scimas/badam-sat/deck"
)

var (
	ErrTooFewPlayers     = errors.New("minimum of 2 players required")
	ErrTooFewDecks       = errors.New("minimum of 1 deck required")
	ErrInvalidTransition = errors.New("attempted transition is not valid for the current game state")
	ErrInvalidPlayerID   = errors.New("no such player exists")
)

// openingCard is the card that must open an untouched playing area.
var openingCard = deck.Card{Suit: deck.Hearts, Rank: deck.Seven}

type phase int

const (
	prePlay phase = iota
	inPlay
	over
)

// TransitionKind discriminates the events that can advance a game.
type TransitionKind int

const (
	// DealCards shuffles and distributes the decks, ending the pre-play phase
	DealCards TransitionKind = iota
	// PlayCard places the moving player's card on the playing area
	PlayCard
	// Pass forfeits the turn; only legal when no card is playable
	Pass
)

// Transition is an attempted game event. It is a comparable value so that sets
// of transitions can be kept as map keys.
type Transition struct {
	Kind   TransitionKind
	Player int
	Card   deck.Card
}

// Deal builds the deal-cards transition.
func Deal() Transition {
	return Transition{Kind: DealCards}
}

// Play builds a play-card transition for the player.
func Play(player int, card deck.Card) Transition {
	return Transition{Kind: PlayCard, Player: player, Card: card}
}

// PassTurn builds a pass transition for the player.
func PassTurn(player int) Transition {
	return Transition{Kind: Pass, Player: player}
}

// Opts configures a new game.
type Opts struct {
	// Players is the number of seats; at least 2.
	Players int
	// Decks is the number of 52-card decks dealt; defaults to 1.
	Decks int
	// FreeOpening lifts the house rule that the very first card played must
	// be the seven of hearts.
	FreeOpening bool
}

// Game is the turn-by-turn state machine for one game of badam sat. It is not
// safe for concurrent use; the room actor serializes access to it.
type Game struct {
	phase        phase
	current      int
	validActions map[Transition]struct{}
	winner       int
	players      []*player
	area         *PlayingArea
	decks        int
	freeOpening  bool
}

// New constructs a game in the pre-play phase. Hand capacities are fixed here:
// every seat gets decks×52 / players cards, and the remainder is absorbed one
// extra card each by the first seats.
func New(opts Opts) (*Game, error) {
	if opts.Players < 2 {
		return nil, ErrTooFewPlayers
	}
	if opts.Decks == 0 {
		opts.Decks = 1
	}
	if opts.Decks < 0 {
		return nil, ErrTooFewDecks
	}

	numCards := opts.Decks * 52
	perPlayer, leftover := numCards/opts.Players, numCards%opts.Players
	players := make([]*player, opts.Players)
	for i := range players {
		capacity := perPlayer
		if i < leftover {
			capacity++
		}
		players[i] = newPlayer(capacity)
	}

	return &Game{
		phase:       prePlay,
		players:     players,
		area:        NewPlayingArea(opts.Decks),
		decks:       opts.Decks,
		freeOpening: opts.FreeOpening,
	}, nil
}

// Update attempts to advance the game with the transition. A rejected
// transition returns ErrInvalidTransition and leaves the game untouched.
func (g *Game) Update(t Transition) error {
	switch g.phase {
	case prePlay:
		if t.Kind != DealCards {
			return ErrInvalidTransition
		}
		g.deal()
		// a freshly dealt game always has at least one valid action
		next, actions, _ := g.findValidActions()
		g.phase = inPlay
		g.current = next
		g.validActions = actions
		return nil

	case inPlay:
		if t.Kind == DealCards || t.Player != g.current {
			return ErrInvalidTransition
		}
		if _, ok := g.validActions[t]; !ok {
			return ErrInvalidTransition
		}
		if t.Kind == PlayCard {
			if err := g.area.Play(t.Card); err != nil {
				return ErrInvalidTransition
			}
			g.players[g.current].remove(t.Card)
		}
		if next, actions, ok := g.findValidActions(); ok {
			g.current = next
			g.validActions = actions
		} else {
			g.phase = over
			g.winner = g.current
			g.validActions = nil
		}
		return nil

	default:
		return ErrInvalidTransition
	}
}

// deal shuffles the decks and distributes every card into the hands.
func (g *Game) deal() {
	d := deck.New(g.decks)
	d.Shuffle()
	for _, p := range g.players {
		p.assign(d.Deal(p.capacity))
	}
}

// findValidActions computes the legal transitions for the player to move next.
// It returns false when the game is decided: the mover's hand is empty.
func (g *Game) findValidActions() (int, map[Transition]struct{}, bool) {
	var idx int
	switch g.phase {
	case prePlay:
		idx = 0
	case inPlay:
		if g.players[g.current].size() == 0 {
			return 0, nil, false
		}
		idx = (g.current + 1) % len(g.players)
	default:
		return 0, nil, false
	}

	playable := make(map[deck.Card]struct{}, 2*len(g.area.stacks))
	for _, stack := range g.area.stacks {
		for _, card := range stack.NextPlayable() {
			playable[card] = struct{}{}
		}
	}

	actions := make(map[Transition]struct{})
	for card := range g.players[idx].unique() {
		if _, ok := playable[card]; ok {
			actions[Play(idx, card)] = struct{}{}
		}
	}
	if !g.freeOpening && g.area.IsEmpty() {
		for action := range actions {
			if action.Card != openingCard {
				delete(actions, action)
			}
		}
	}
	if len(actions) == 0 {
		actions[PassTurn(idx)] = struct{}{}
	}
	return idx, actions, true
}

// CurrentPlayer returns the player to move, if the game is in play.
func (g *Game) CurrentPlayer() (int, bool) {
	if g.phase != inPlay {
		return 0, false
	}
	return g.current, true
}

// Winner returns the winning player, if the game is over.
func (g *Game) Winner() (int, bool) {
	if g.phase != over {
		return 0, false
	}
	return g.winner, true
}

// Over reports whether the game has ended.
func (g *Game) Over() bool {
	return g.phase == over
}

// Started reports whether the cards have been dealt.
func (g *Game) Started() bool {
	return g.phase != prePlay
}

// ValidActions returns the legal transitions for the player to move. It is
// empty outside the in-play phase and never empty during it.
func (g *Game) ValidActions() []Transition {
	actions := make([]Transition, 0, len(g.validActions))
	for action := range g.validActions {
		actions = append(actions, action)
	}
	return actions
}

// PlayingArea returns the game's playing area.
func (g *Game) PlayingArea() *PlayingArea {
	return g.area
}

// HandOf returns a copy of the player's unplayed cards.
func (g *Game) HandOf(player int) ([]deck.Card, error) {
	if player < 0 || player >= len(g.players) {
		return nil, ErrInvalidPlayerID
	}
	return g.players[player].cards(), nil
}

// HandSizes returns the number of unplayed cards per player.
func (g *Game) HandSizes() []int {
	sizes := make([]int, len(g.players))
	for i, p := range g.players {
		sizes[i] = p.size()
	}
	return sizes
}

// Players returns the number of seats in the game.
func (g *Game) Players() int {
	return len(g.players)
}

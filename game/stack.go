package game

import (
	"encoding/json"
	"errors"

	"github.com/scimas/badam-sat/deck"
)

var (
	ErrSuitMismatch = errors.New("card belongs to a different suit")
	ErrRankMismatch = errors.New("card does not continue the stack's run")
	ErrStackFull    = errors.New("stack already holds its full suit")
	ErrCardMismatch = errors.New("played card cannot be added to the playing area")
)

// StackState represents the shape of a card stack's run
type StackState int

const (
	// Empty stack, waiting for its seven
	Empty StackState = iota
	// SevenOnly holds just the seven
	SevenOnly
	// LowOnly has grown downward from the seven but not upward
	LowOnly
	// HighOnly has grown upward from the seven but not downward
	HighOnly
	// LowAndHigh has grown in both directions
	LowAndHigh
)

var stackStateNames = []string{"empty", "seven_only", "low_only", "high_only", "low_and_high"}

func (s StackState) String() string {
	return stackStateNames[s]
}

// CardStack records the contiguous run of cards of one suit built outward from
// the seven. Low and High are the current ends of the run; they only ever move
// outward, Low toward Ace and High toward King.
type CardStack struct {
	suit  deck.Suit
	state StackState
	low   deck.Rank
	high  deck.Rank
}

// NewCardStack creates an empty stack for cards of the given suit.
func NewCardStack(suit deck.Suit) CardStack {
	return CardStack{suit: suit, state: Empty}
}

// Suit returns the suit of the stack.
func (s CardStack) Suit() deck.Suit {
	return s.suit
}

// State returns the shape of the stack's run.
func (s CardStack) State() StackState {
	return s.state
}

// Bounds returns the current low and high ends of the run. Only the ends the
// state implies are meaningful: neither for Empty, the seven for SevenOnly,
// Low for LowOnly, High for HighOnly, both for LowAndHigh.
func (s CardStack) Bounds() (low, high deck.Rank) {
	switch s.state {
	case SevenOnly:
		return deck.Seven, deck.Seven
	case LowOnly:
		return s.low, deck.Seven
	case HighOnly:
		return deck.Seven, s.high
	case LowAndHigh:
		return s.low, s.high
	}
	return 0, 0
}

// Add returns the stack extended with card, leaving the receiver untouched.
// It fails with ErrSuitMismatch for a card of another suit, ErrStackFull when
// the run already spans Ace through King and ErrRankMismatch otherwise.
func (s CardStack) Add(card deck.Card) (CardStack, error) {
	if card.Suit != s.suit {
		return CardStack{}, ErrSuitMismatch
	}
	switch s.state {
	case Empty:
		if card.Rank == deck.Seven {
			return CardStack{suit: s.suit, state: SevenOnly}, nil
		}
	case SevenOnly:
		if card.Rank == deck.Six {
			return CardStack{suit: s.suit, state: LowOnly, low: deck.Six}, nil
		}
		if card.Rank == deck.Eight {
			return CardStack{suit: s.suit, state: HighOnly, high: deck.Eight}, nil
		}
	case LowOnly:
		if card.Rank == s.low-1 {
			return CardStack{suit: s.suit, state: LowOnly, low: card.Rank}, nil
		}
		if card.Rank == deck.Eight {
			return CardStack{suit: s.suit, state: LowAndHigh, low: s.low, high: deck.Eight}, nil
		}
	case HighOnly:
		if card.Rank == s.high+1 {
			return CardStack{suit: s.suit, state: HighOnly, high: card.Rank}, nil
		}
		if card.Rank == deck.Six {
			return CardStack{suit: s.suit, state: LowAndHigh, low: deck.Six, high: s.high}, nil
		}
	case LowAndHigh:
		if card.Rank == s.low-1 {
			return CardStack{suit: s.suit, state: LowAndHigh, low: card.Rank, high: s.high}, nil
		}
		if card.Rank == s.high+1 {
			return CardStack{suit: s.suit, state: LowAndHigh, low: s.low, high: card.Rank}, nil
		}
		if s.low == deck.Ace && s.high == deck.King {
			return CardStack{}, ErrStackFull
		}
	}
	return CardStack{}, ErrRankMismatch
}

// NextPlayable returns the cards that the stack would currently accept,
// between zero and two of them.
func (s CardStack) NextPlayable() []deck.Card {
	switch s.state {
	case Empty:
		return []deck.Card{{Suit: s.suit, Rank: deck.Seven}}
	case SevenOnly:
		return []deck.Card{{Suit: s.suit, Rank: deck.Six}, {Suit: s.suit, Rank: deck.Eight}}
	case LowOnly:
		cards := []deck.Card{{Suit: s.suit, Rank: deck.Eight}}
		if s.low != deck.Ace {
			cards = append(cards, deck.Card{Suit: s.suit, Rank: s.low - 1})
		}
		return cards
	case HighOnly:
		cards := []deck.Card{{Suit: s.suit, Rank: deck.Six}}
		if s.high != deck.King {
			cards = append(cards, deck.Card{Suit: s.suit, Rank: s.high + 1})
		}
		return cards
	case LowAndHigh:
		var cards []deck.Card
		if s.low != deck.Ace {
			cards = append(cards, deck.Card{Suit: s.suit, Rank: s.low - 1})
		}
		if s.high != deck.King {
			cards = append(cards, deck.Card{Suit: s.suit, Rank: s.high + 1})
		}
		return cards
	}
	return nil
}

// size is the number of cards embedded in the stack.
func (s CardStack) size() int {
	switch s.state {
	case SevenOnly:
		return 1
	case LowOnly:
		return int(deck.Seven - s.low + 1)
	case HighOnly:
		return int(s.high - deck.Seven + 1)
	case LowAndHigh:
		return int(s.high - s.low + 1)
	}
	return 0
}

type stackJSON struct {
	Suit  deck.Suit  `json:"suit"`
	State string     `json:"state"`
	Low   *deck.Rank `json:"low,omitempty"`
	High  *deck.Rank `json:"high,omitempty"`
}

// MarshalJSON encodes the stack as its suit, state and run ends.
func (s CardStack) MarshalJSON() ([]byte, error) {
	out := stackJSON{Suit: s.suit, State: s.state.String()}
	if s.state != Empty {
		low, high := s.Bounds()
		out.Low, out.High = &low, &high
	}
	return json.Marshal(out)
}

// PlayingArea is the complete set of card stacks for one game, one stack per
// suit per deck copy in play.
type PlayingArea struct {
	stacks []CardStack
}

// NewPlayingArea creates a playing area capable of holding cards from the
// given number of standard 52-card decks.
func NewPlayingArea(decks int) *PlayingArea {
	stacks := make([]CardStack, 0, decks*4)
	for _, suit := range deck.Suits() {
		for i := 0; i < decks; i++ {
			stacks = append(stacks, NewCardStack(suit))
		}
	}
	return &PlayingArea{stacks: stacks}
}

// Play adds the card to the first stack that accepts it. It fails with
// ErrCardMismatch when no stack does.
func (pa *PlayingArea) Play(card deck.Card) error {
	for i, stack := range pa.stacks {
		if next, err := stack.Add(card); err == nil {
			pa.stacks[i] = next
			return nil
		}
	}
	return ErrCardMismatch
}

// IsEmpty reports whether no card has been played yet.
func (pa *PlayingArea) IsEmpty() bool {
	for _, stack := range pa.stacks {
		if stack.state != Empty {
			return false
		}
	}
	return true
}

// Stacks returns a copy of the area's stacks.
func (pa *PlayingArea) Stacks() []CardStack {
	stacks := make([]CardStack, len(pa.stacks))
	copy(stacks, pa.stacks)
	return stacks
}

// Clone returns an independent copy of the playing area.
func (pa *PlayingArea) Clone() *PlayingArea {
	return &PlayingArea{stacks: pa.Stacks()}
}

// size is the total number of cards embedded in the area.
func (pa *PlayingArea) size() int {
	total := 0
	for _, stack := range pa.stacks {
		total += stack.size()
	}
	return total
}

// MarshalJSON encodes the playing area as its list of stacks.
func (pa *PlayingArea) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Stacks []CardStack `json:"stacks"`
	}{Stacks: pa.stacks})
}

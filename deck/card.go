package deck

import (
	"encoding/json"
	"fmt"
)

// Rank represents a rank in a deck of cards, Ace low through King high.
type Rank int

const (
	Ace Rank = 1 + iota
	Two
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
)

var rankNames = []string{"Ace", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine", "Ten", "Jack", "Queen", "King"}

func (r Rank) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Rank(%d)", int(r))
	}
	return rankNames[r-Ace]
}

// Valid reports whether the rank is within Ace..King.
func (r Rank) Valid() bool {
	return r >= Ace && r <= King
}

// Suit represents a suit in a deck of cards
type Suit int

const (
	Clubs Suit = iota
	Diamonds
	Hearts
	Spades
)

var suitNames = []string{"clubs", "diamonds", "hearts", "spades"}

func (s Suit) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Suit(%d)", int(s))
	}
	return suitNames[s]
}

// Valid reports whether the suit is one of the four suits.
func (s Suit) Valid() bool {
	return s >= Clubs && s <= Spades
}

// Suits lists the four suits in a fixed order.
func Suits() []Suit {
	return []Suit{Clubs, Diamonds, Hearts, Spades}
}

// MarshalJSON encodes the suit as its lowercase name.
func (s Suit) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid suit %d", int(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a suit from its lowercase name.
func (s *Suit) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for i, n := range suitNames {
		if n == name {
			*s = Suit(i)
			return nil
		}
	}
	return fmt.Errorf("unknown suit %q", name)
}

// Card represents a playing card. Cards are immutable values; two cards are
// equal when their suit and rank are equal, so a Card can be used as a map key.
type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

// NewCard constructs a card, validating the suit and rank.
func NewCard(suit Suit, rank Rank) (Card, error) {
	if !suit.Valid() || !rank.Valid() {
		return Card{}, fmt.Errorf("no such card: suit %d, rank %d", int(suit), int(rank))
	}
	return Card{Suit: suit, Rank: rank}, nil
}

func (c Card) String() string {
	return fmt.Sprintf("%s of %s", c.Rank, c.Suit)
}

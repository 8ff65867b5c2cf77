package deck

import "math/rand"

// Deck represents one or more standard 52-card decks shuffled together
type Deck []Card

// New creates a deck made of n copies of a standard 52-card deck
func New(n int) Deck {
	cards := make(Deck, 0, n*52)
	for i := 0; i < n; i++ {
		for _, suit := range Suits() {
			for rank := Ace; rank <= King; rank++ {
				cards = append(cards, Card{Suit: suit, Rank: rank})
			}
		}
	}
	return cards
}

// Shuffle shuffles the deck of cards
func (d Deck) Shuffle() {
	rand.Shuffle(len(d), func(i, j int) {
		d[i], d[j] = d[j], d[i]
	})
}

// Deal deals n cards from the top of the deck, until it is empty
func (d *Deck) Deal(n int) []Card {
	numCardsInDeck := len(*d)
	if n < 0 || n > numCardsInDeck {
		return []Card{}
	}
	startingIndex := numCardsInDeck - n
	subSlice := (*d)[startingIndex:numCardsInDeck]
	*d = (*d)[:startingIndex]
	return subSlice
}

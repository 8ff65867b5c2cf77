package game

import "github.com/scimas/badam-sat/deck"

// player holds one seat's unplayed cards. The capacity is fixed at
// construction so that the deal can be checked against it.
type player struct {
	hand     []deck.Card
	capacity int
}

func newPlayer(capacity int) *player {
	return &player{hand: make([]deck.Card, 0, capacity), capacity: capacity}
}

func (p *player) assign(cards []deck.Card) {
	p.hand = append(p.hand, cards...)
}

// remove takes one copy of card out of the hand, reporting whether it was held.
func (p *player) remove(card deck.Card) bool {
	for i, held := range p.hand {
		if held == card {
			p.hand = append(p.hand[:i], p.hand[i+1:]...)
			return true
		}
	}
	return false
}

// unique returns the de-duplicated set of cards in the hand.
func (p *player) unique() map[deck.Card]struct{} {
	cards := make(map[deck.Card]struct{}, len(p.hand))
	for _, card := range p.hand {
		cards[card] = struct{}{}
	}
	return cards
}

func (p *player) size() int {
	return len(p.hand)
}

func (p *player) cards() []deck.Card {
	cards := make([]deck.Card, len(p.hand))
	copy(cards, p.hand)
	return cards
}

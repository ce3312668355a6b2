package game

import "sort"

// Card is a single auction card value.
type Card int

// The card range is fixed: every session deals the same set of cards, with a
// fixed number removed face-down before play. The union of deck, hidden
// discards, hands and the center card is always exactly this range.
const (
	MinCard Card = 3
	MaxCard Card = 35

	// HiddenDiscards is the number of cards removed face-down at deal time.
	HiddenDiscards = 9
)

// DeckSize is the number of cards actually in play after the hidden discards
// are removed.
const DeckSize = int(MaxCard-MinCard) + 1 - HiddenDiscards

// fullRange returns every card value in ascending order.
func fullRange() []Card {
	cards := make([]Card, 0, int(MaxCard-MinCard)+1)
	for c := MinCard; c <= MaxCard; c++ {
		cards = append(cards, c)
	}
	return cards
}

// InsertSorted adds card to hand keeping it sorted ascending.
func InsertSorted(hand []Card, card Card) []Card {
	i := sort.Search(len(hand), func(i int) bool { return hand[i] >= card })
	hand = append(hand, 0)
	copy(hand[i+1:], hand[i:])
	hand[i] = card
	return hand
}

// cardSets partitions a sorted ascending hand into maximal runs of
// consecutive values.
func cardSets(hand []Card) [][]Card {
	if len(hand) == 0 {
		return nil
	}
	var sets [][]Card
	run := []Card{hand[0]}
	for _, c := range hand[1:] {
		if c == run[len(run)-1]+1 {
			run = append(run, c)
			continue
		}
		sets = append(sets, run)
		run = []Card{c}
	}
	return append(sets, run)
}

package game

import (
	"fmt"
	"sort"
	"time"

	"github.com/lox/nothanks/internal/randutil"
)

const (
	MinPlayers = 2
	MaxPlayers = 7
)

// Rules holds the per-session tunables that are not part of the fixed card
// range.
type Rules struct {
	StartingChips int
	TurnTimeout   time.Duration
}

// DefaultRules returns the standard rule set.
func DefaultRules() Rules {
	return Rules{
		StartingChips: 11,
		TurnTimeout:   30 * time.Second,
	}
}

// NewSession deals a fresh session snapshot from the given seed: the full
// card range is shuffled, a fixed number of cards are removed face-down, and
// the first center card is drawn immediately. The session stays in the setup
// phase until the first action is applied.
func NewSession(id string, players []Player, seed int64, now time.Time, rules Rules) (*Snapshot, error) {
	if len(players) < MinPlayers || len(players) > MaxPlayers {
		return nil, ErrPlayerOrderInvalid(fmt.Sprintf(
			"session requires between %d and %d players, got %d", MinPlayers, MaxPlayers, len(players)))
	}
	seen := make(map[string]bool, len(players))
	for _, p := range players {
		if p.ID == "" {
			return nil, ErrPlayerOrderInvalid("player id must not be empty")
		}
		if seen[p.ID] {
			return nil, ErrPlayerOrderInvalid(fmt.Sprintf("duplicate player id %s", p.ID))
		}
		seen[p.ID] = true
	}
	if rules.StartingChips < 1 {
		rules.StartingChips = DefaultRules().StartingChips
	}

	rng := randutil.New(seed)
	cards := fullRange()
	rng.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})

	discard := append([]Card(nil), cards[:HiddenDiscards]...)
	sort.Slice(discard, func(i, j int) bool { return discard[i] < discard[j] })
	deck := append([]Card(nil), cards[HiddenDiscards:]...)

	order := make([]string, len(players))
	chips := make(map[string]int, len(players))
	hands := make(map[string][]Card, len(players))
	for i, p := range players {
		order[i] = p.ID
		chips[p.ID] = rules.StartingChips
		hands[p.ID] = []Card{}
	}

	// The first card goes up for auction immediately.
	center := deck[0]
	deck = deck[1:]

	snap := &Snapshot{
		SessionID:     id,
		Phase:         PhaseSetup,
		Deck:          deck,
		DiscardHidden: discard,
		PlayerOrder:   order,
		RNGSeed:       seed,
		Players:       append([]Player(nil), players...),
		Chips:         chips,
		Hands:         hands,
		CentralPot:    0,
		TurnState: TurnState{
			Turn:               1,
			CurrentPlayerID:    order[0],
			CurrentPlayerIndex: 0,
			CardInCenter:       &center,
			AwaitingAction:     true,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if rules.TurnTimeout > 0 {
		deadline := now.Add(rules.TurnTimeout)
		snap.TurnState.Deadline = &deadline
	}
	return snap, nil
}

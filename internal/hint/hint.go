// Package hint derives short textual hints about the current turn. Hints are
// advisory only: the engine forwards them through the broadcast gateway as a
// pass-through and never lets them affect control flow.
package hint

import (
	"fmt"

	"github.com/lox/nothanks/internal/game"
)

// Service produces rule hints from snapshots.
type Service struct{}

// NewService creates a hint service.
func NewService() *Service {
	return &Service{}
}

// ForSnapshot returns a hint for the player currently on turn, or "" when no
// action is awaited.
func (s *Service) ForSnapshot(snap *game.Snapshot) string {
	ts := snap.TurnState
	if !ts.AwaitingAction || ts.CardInCenter == nil {
		return ""
	}

	card := *ts.CardInCenter
	playerID := ts.CurrentPlayerID
	chips := snap.Chips[playerID]
	hand := snap.Hands[playerID]

	if chips == 0 {
		return fmt.Sprintf("%s has no chips left and must take the %d", playerID, card)
	}

	for _, held := range hand {
		if held == card-1 || held == card+1 {
			return fmt.Sprintf("taking the %d would extend an existing run for %s at no extra score", card, playerID)
		}
	}

	if snap.CentralPot >= int(card) {
		return fmt.Sprintf("the pot holds %d chips, fully covering the %d", snap.CentralPot, card)
	}
	return fmt.Sprintf("taking the %d collects %d chips; passing costs one", card, snap.CentralPot)
}

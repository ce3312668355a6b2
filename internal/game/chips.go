package game

// ChipDelta records a single chip transfer between a player and the central
// pot, from the player's perspective.
type ChipDelta struct {
	PlayerID string `json:"playerId"`
	Chips    int    `json:"chips"`
	Pot      int    `json:"pot"`
}

// EnsureChipActionAllowed fails when action is a chip placement and the
// player has no chips left. Taking the card never requires chips.
func EnsureChipActionAllowed(s *Snapshot, playerID string, action Action) error {
	chips, ok := s.Chips[playerID]
	if !ok {
		return ErrPlayerNotFound(playerID)
	}
	if action == ActionPlaceChip && chips < 1 {
		return ErrChipInsufficient(playerID)
	}
	return nil
}

// PlaceChipIntoCenter moves one chip from the player into the central pot.
func PlaceChipIntoCenter(s *Snapshot, playerID string) (ChipDelta, error) {
	chips, ok := s.Chips[playerID]
	if !ok {
		return ChipDelta{}, ErrPlayerNotFound(playerID)
	}
	if chips < 1 {
		return ChipDelta{}, ErrChipInsufficient(playerID)
	}
	s.Chips[playerID] = chips - 1
	s.CentralPot++
	return ChipDelta{PlayerID: playerID, Chips: -1, Pot: 1}, nil
}

// CollectCentralPotForPlayer transfers the entire central pot to the player
// and resets it to zero. Returns nil when the pot was already empty.
func CollectCentralPotForPlayer(s *Snapshot, playerID string) (*ChipDelta, error) {
	chips, ok := s.Chips[playerID]
	if !ok {
		return nil, ErrPlayerNotFound(playerID)
	}
	if s.CentralPot == 0 {
		return nil, nil
	}
	pot := s.CentralPot
	s.Chips[playerID] = chips + pot
	s.CentralPot = 0
	return &ChipDelta{PlayerID: playerID, Chips: pot, Pot: -pot}, nil
}

package game

import "time"

// Phase is the coarse session lifecycle stage.
type Phase string

const (
	PhaseSetup     Phase = "setup"
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
)

// Player identifies a participant in a session.
type Player struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// TurnState tracks the card currently up for auction and whose turn it is.
type TurnState struct {
	// Turn increments each time a new center card is drawn. It never
	// decreases.
	Turn               int        `json:"turn"`
	CurrentPlayerID    string     `json:"currentPlayerId"`
	CurrentPlayerIndex int        `json:"currentPlayerIndex"`
	CardInCenter       *Card      `json:"cardInCenter"`
	AwaitingAction     bool       `json:"awaitingAction"`
	Deadline           *time.Time `json:"deadline"`
}

// Snapshot is the complete state of one session at a point in time. It is a
// value type: it is deep-copied on every boundary crossing so no caller can
// alias stored state.
type Snapshot struct {
	SessionID     string            `json:"sessionId"`
	Phase         Phase             `json:"phase"`
	Deck          []Card            `json:"deck"`
	DiscardHidden []Card            `json:"discardHidden"`
	PlayerOrder   []string          `json:"playerOrder"`
	RNGSeed       int64             `json:"rngSeed"`
	Players       []Player          `json:"players"`
	Chips         map[string]int    `json:"chips"`
	Hands         map[string][]Card `json:"hands"`
	CentralPot    int               `json:"centralPot"`
	TurnState     TurnState         `json:"turnState"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
	FinalResults  *ScoreSummary     `json:"finalResults"`
}

// Clone returns a deep copy of the snapshot. Nested slices, maps and pointer
// fields are all freshly allocated.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s

	out.Deck = append([]Card(nil), s.Deck...)
	out.DiscardHidden = append([]Card(nil), s.DiscardHidden...)
	out.PlayerOrder = append([]string(nil), s.PlayerOrder...)
	out.Players = append([]Player(nil), s.Players...)

	out.Chips = make(map[string]int, len(s.Chips))
	for id, n := range s.Chips {
		out.Chips[id] = n
	}
	out.Hands = make(map[string][]Card, len(s.Hands))
	for id, hand := range s.Hands {
		out.Hands[id] = append([]Card(nil), hand...)
	}

	if s.TurnState.CardInCenter != nil {
		card := *s.TurnState.CardInCenter
		out.TurnState.CardInCenter = &card
	}
	if s.TurnState.Deadline != nil {
		deadline := *s.TurnState.Deadline
		out.TurnState.Deadline = &deadline
	}
	out.FinalResults = s.FinalResults.clone()

	return &out
}

func (s *ScoreSummary) clone() *ScoreSummary {
	if s == nil {
		return nil
	}
	out := ScoreSummary{
		Placements: make([]Placement, len(s.Placements)),
	}
	for i, p := range s.Placements {
		cp := p
		cp.Cards = append([]Card(nil), p.Cards...)
		cp.CardSets = make([][]Card, len(p.CardSets))
		for j, set := range p.CardSets {
			cp.CardSets[j] = append([]Card(nil), set...)
		}
		out.Placements[i] = cp
	}
	if s.TieBreak != nil {
		tb := TieBreak{
			TiedScore:  s.TieBreak.TiedScore,
			Contenders: append([]string(nil), s.TieBreak.Contenders...),
		}
		if s.TieBreak.Winner != nil {
			winner := *s.TieBreak.Winner
			tb.Winner = &winner
		}
		out.TieBreak = &tb
	}
	return &out
}

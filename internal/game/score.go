package game

import "sort"

// Placement is one player's final ranking entry. Lower scores are better.
type Placement struct {
	Rank           int      `json:"rank"`
	PlayerID       string   `json:"playerId"`
	Score          int      `json:"score"`
	ChipsRemaining int      `json:"chipsRemaining"`
	Cards          []Card   `json:"cards"`
	CardSets       [][]Card `json:"cardSets"`
}

// TieBreak reports how a shared best score was resolved. Winner is nil when
// the contenders also tie on chips remaining (unresolved draw).
type TieBreak struct {
	TiedScore  int      `json:"tiedScore"`
	Contenders []string `json:"contenders"`
	Winner     *string  `json:"winner"`
}

// ScoreSummary is the final ranking produced once at game completion.
type ScoreSummary struct {
	Placements []Placement `json:"placements"`
	TieBreak   *TieBreak   `json:"tieBreak"`
}

// Score computes the final ranking for a snapshot. For each player the held
// cards are partitioned into maximal runs of consecutive values; the raw
// score is the sum of each run's minimum, minus chips remaining. Players are
// ranked by (score asc, chips desc, id asc) with dense ranks for equal
// (score, chips) pairs.
func Score(s *Snapshot) ScoreSummary {
	placements := make([]Placement, 0, len(s.Players))
	for _, p := range s.Players {
		hand := append([]Card(nil), s.Hands[p.ID]...)
		sort.Slice(hand, func(i, j int) bool { return hand[i] < hand[j] })

		sets := cardSets(hand)
		score := 0
		for _, set := range sets {
			score += int(set[0])
		}
		chips := s.Chips[p.ID]
		score -= chips

		placements = append(placements, Placement{
			PlayerID:       p.ID,
			Score:          score,
			ChipsRemaining: chips,
			Cards:          hand,
			CardSets:       sets,
		})
	}

	sort.Slice(placements, func(i, j int) bool {
		a, b := placements[i], placements[j]
		if a.Score != b.Score {
			return a.Score < b.Score
		}
		if a.ChipsRemaining != b.ChipsRemaining {
			return a.ChipsRemaining > b.ChipsRemaining
		}
		return a.PlayerID < b.PlayerID
	})

	rank := 0
	for i := range placements {
		if i == 0 || placements[i].Score != placements[i-1].Score ||
			placements[i].ChipsRemaining != placements[i-1].ChipsRemaining {
			rank++
		}
		placements[i].Rank = rank
	}

	return ScoreSummary{
		Placements: placements,
		TieBreak:   tieBreak(placements),
	}
}

// tieBreak resolves a shared best score by chips remaining. Returns nil when
// the best score is held by a single player.
func tieBreak(placements []Placement) *TieBreak {
	if len(placements) < 2 {
		return nil
	}
	best := placements[0].Score
	var contenders []Placement
	for _, p := range placements {
		if p.Score == best {
			contenders = append(contenders, p)
		}
	}
	if len(contenders) < 2 {
		return nil
	}

	ids := make([]string, len(contenders))
	for i, p := range contenders {
		ids[i] = p.PlayerID
	}
	sort.Strings(ids)

	tb := &TieBreak{TiedScore: best, Contenders: ids}

	// Contenders are already ordered by chips remaining descending, so the
	// first entry wins unless the second matches it.
	if contenders[0].ChipsRemaining > contenders[1].ChipsRemaining {
		winner := contenders[0].PlayerID
		tb.Winner = &winner
	}
	return tb
}

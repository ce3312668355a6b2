package game

// Action is a turn command: pay a chip to pass, or take the center card.
type Action string

const (
	ActionPlaceChip Action = "placeChip"
	ActionTakeCard  Action = "takeCard"
)

func (a Action) String() string { return string(a) }

// ParseAction validates an action received from a client.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionPlaceChip, ActionTakeCard:
		return Action(s), nil
	default:
		return "", ErrActionNotSupported(s)
	}
}

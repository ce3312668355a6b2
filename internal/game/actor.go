package game

// Actor identifies who issued a command: a specific player, or the system
// itself (the forced-timeout path). The distinction is a tagged value rather
// than a sentinel player id so the ownership-check bypass in the engine is an
// explicit case.
type Actor struct {
	system   bool
	playerID string
}

// PlayerActor returns an actor for a specific player id.
func PlayerActor(id string) Actor {
	return Actor{playerID: id}
}

// SystemActor returns the distinguished system actor. It bypasses turn
// ownership checks, acting as whoever currently holds the turn.
func SystemActor() Actor {
	return Actor{system: true}
}

// IsSystem reports whether this is the system actor.
func (a Actor) IsSystem() bool { return a.system }

// PlayerID returns the player id for a player actor, or "" for the system
// actor.
func (a Actor) PlayerID() string { return a.playerID }

func (a Actor) String() string {
	if a.system {
		return "system"
	}
	return a.playerID
}

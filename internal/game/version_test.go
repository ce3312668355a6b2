package game

import (
	"testing"
	"time"
)

func TestVersionDeterministic(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	players := []Player{{ID: "a", DisplayName: "Alice"}, {ID: "b", DisplayName: "Bob"}}

	first, err := NewSession("s1", players, 42, now, DefaultRules())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	second, err := NewSession("s1", players, 42, now, DefaultRules())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	if Version(first) != Version(second) {
		t.Error("identical snapshots must hash to the same version")
	}
	if Version(first) != Version(first.Clone()) {
		t.Error("a clone must hash to the same version as its source")
	}
}

func TestVersionChangesWithContent(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	players := []Player{{ID: "a"}, {ID: "b"}}

	snap, err := NewSession("s1", players, 42, now, DefaultRules())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	before := Version(snap)

	changed := snap.Clone()
	changed.Chips["a"]--
	changed.CentralPot++
	if Version(changed) == before {
		t.Error("a chip transfer must change the version")
	}

	reordered := snap.Clone()
	reordered.TurnState.Turn++
	if Version(reordered) == before {
		t.Error("a turn change must change the version")
	}
}

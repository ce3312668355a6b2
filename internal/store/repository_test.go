package store

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/nothanks/internal/game"
)

func testRepository() *Repository {
	return NewRepository(log.New(io.Discard))
}

func testSnapshot(t *testing.T, id string) *game.Snapshot {
	t.Helper()
	snap, err := game.NewSession(id,
		[]game.Player{{ID: "a"}, {ID: "b"}},
		1, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), game.DefaultRules())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return snap
}

func TestSaveAndGetSnapshot(t *testing.T) {
	repo := testRepository()
	snap := testSnapshot(t, "s1")

	env := repo.Save(snap)
	if env.Version != game.Version(snap) {
		t.Errorf("saved version = %s, want content hash of snapshot", env.Version)
	}

	got, version, err := repo.GetSnapshot("s1")
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if version != env.Version {
		t.Errorf("get version = %s, want %s", version, env.Version)
	}

	// Returned copies must not alias the stored state.
	got.Chips["a"] = 0
	again, _, _ := repo.GetSnapshot("s1")
	if again.Chips["a"] != 11 {
		t.Error("mutating a returned snapshot leaked into the store")
	}

	// Mutating the input after Save must not change the stored state either.
	snap.CentralPot = 99
	again, _, _ = repo.GetSnapshot("s1")
	if again.CentralPot != 0 {
		t.Error("mutating the input snapshot leaked into the store")
	}
}

func TestGetSnapshotUnknownSession(t *testing.T) {
	repo := testRepository()
	_, _, err := repo.GetSnapshot("missing")
	if !game.IsCode(err, game.CodeSessionNotFound) {
		t.Errorf("expected SessionNotFound, got %v", err)
	}
}

func TestSaveReplacePreservesLogAndLedger(t *testing.T) {
	repo := testRepository()
	snap := testSnapshot(t, "s1")
	repo.Save(snap)

	if _, err := repo.AppendEventLog("s1", []game.EventLogEntry{{ID: "turn-1-log-1", Turn: 1}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := repo.MarkCommandProcessed("s1", "cmd-1"); err != nil {
		t.Fatalf("mark: %v", err)
	}

	next := snap.Clone()
	next.CentralPot = 3
	env := repo.Save(next)

	if len(env.EventLog) != 1 || env.EventLog[0].ID != "turn-1-log-1" {
		t.Error("event log did not survive a replacing save")
	}
	if !env.Processed["cmd-1"] {
		t.Error("idempotency ledger did not survive a replacing save")
	}
	if env.Snapshot.CentralPot != 3 {
		t.Error("replacing save did not store the new snapshot")
	}
}

func TestExclusiveLockIsStable(t *testing.T) {
	repo := testRepository()
	repo.Save(testSnapshot(t, "s1"))

	first, err := repo.GetEnvelope("s1")
	if err != nil {
		t.Fatalf("get envelope: %v", err)
	}
	repo.Save(testSnapshot(t, "s1"))
	second, _ := repo.GetEnvelope("s1")

	// The same session must always hand out the same lock, or concurrent
	// commands would not serialize.
	if first.Exclusive != second.Exclusive {
		t.Error("exclusive lock changed across saves")
	}
}

func TestEventLogCursorSemantics(t *testing.T) {
	repo := testRepository()
	repo.Save(testSnapshot(t, "s1"))

	entries := []game.EventLogEntry{
		{ID: "turn-1-log-1", Turn: 1},
		{ID: "turn-1-log-2", Turn: 1},
		{ID: "turn-2-log-1", Turn: 2},
	}
	if _, err := repo.AppendEventLog("s1", entries); err != nil {
		t.Fatalf("append: %v", err)
	}

	after, err := repo.ListEventLogAfter("s1", "turn-1-log-2")
	if err != nil {
		t.Fatalf("list after cursor: %v", err)
	}
	if len(after) != 1 || after[0].ID != "turn-2-log-1" {
		t.Errorf("cursor list = %v, want only turn-2-log-1", after)
	}

	full, _ := repo.ListEventLogAfter("s1", "")
	if len(full) != 3 {
		t.Errorf("empty cursor returned %d entries, want 3", len(full))
	}

	// An unknown cursor falls back to the full log rather than dropping
	// entries.
	unknown, _ := repo.ListEventLogAfter("s1", "turn-9-log-9")
	if len(unknown) != 3 {
		t.Errorf("unknown cursor returned %d entries, want 3", len(unknown))
	}

	last, _ := repo.ListEventLogAfter("s1", "turn-2-log-1")
	if len(last) != 0 {
		t.Errorf("cursor at tail returned %d entries, want 0", len(last))
	}
}

func TestEventLogRequiresSession(t *testing.T) {
	repo := testRepository()

	_, err := repo.AppendEventLog("missing", []game.EventLogEntry{{ID: "turn-1-log-1"}})
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("append: expected ErrNotInitialized, got %v", err)
	}
	if err := repo.MarkCommandProcessed("missing", "cmd"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("mark: expected ErrNotInitialized, got %v", err)
	}
	if _, err := repo.HasProcessedCommand("missing", "cmd"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("lookup: expected ErrNotInitialized, got %v", err)
	}
}

func TestIdempotencyLedger(t *testing.T) {
	repo := testRepository()
	repo.Save(testSnapshot(t, "s1"))

	processed, err := repo.HasProcessedCommand("s1", "cmd-1")
	if err != nil || processed {
		t.Fatalf("fresh ledger: processed=%v err=%v", processed, err)
	}
	if err := repo.MarkCommandProcessed("s1", "cmd-1"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	processed, _ = repo.HasProcessedCommand("s1", "cmd-1")
	if !processed {
		t.Error("marked command not reported as processed")
	}
}

func TestListSessionsSorted(t *testing.T) {
	repo := testRepository()
	repo.Save(testSnapshot(t, "s2"))
	repo.Save(testSnapshot(t, "s1"))
	repo.Save(testSnapshot(t, "s3"))

	summaries := repo.ListSessions()
	if len(summaries) != 3 {
		t.Fatalf("len = %d, want 3", len(summaries))
	}
	for i, want := range []string{"s1", "s2", "s3"} {
		if summaries[i].ID != want {
			t.Errorf("summaries[%d].ID = %s, want %s", i, summaries[i].ID, want)
		}
	}
}

func TestPruneSessionsOlderThan(t *testing.T) {
	repo := testRepository()

	old := testSnapshot(t, "old")
	old.UpdatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.Save(old)

	fresh := testSnapshot(t, "fresh")
	fresh.UpdatedAt = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	repo.Save(fresh)

	removed := repo.PruneSessionsOlderThan(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	if len(removed) != 1 || removed[0] != "old" {
		t.Errorf("removed = %v, want [old]", removed)
	}
	if _, _, err := repo.GetSnapshot("old"); !game.IsCode(err, game.CodeSessionNotFound) {
		t.Error("pruned session still retrievable")
	}
	if _, _, err := repo.GetSnapshot("fresh"); err != nil {
		t.Errorf("fresh session should survive pruning: %v", err)
	}
}

// Package store holds the volatile, in-process session repository. It owns
// the authoritative snapshot, version, event log and idempotency ledger per
// session. It contains no business logic: each call is a single synchronous
// mutation, and cross-command serialization is the engine's responsibility
// via the envelope's exclusive lock.
package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/nothanks/internal/game"
)

// ErrNotInitialized is returned when event log or ledger operations target a
// session that was never saved.
var ErrNotInitialized = errors.New("session not initialized")

// envelope is the repository-owned wrapper around a session's state. Never
// exposed outside the package; callers get deep copies through Envelope.
type envelope struct {
	snapshot  *game.Snapshot
	version   string
	eventLog  []game.EventLogEntry
	processed map[string]struct{}

	// exclusive serializes command application for this session. It lives
	// for the whole session so concurrent callers queue on a single lock.
	exclusive sync.Mutex
}

// Envelope is a copy-safe view of a stored session. Snapshot, EventLog and
// Processed are deep copies; Exclusive is the live per-session lock.
type Envelope struct {
	Snapshot  *game.Snapshot
	Version   string
	EventLog  []game.EventLogEntry
	Processed map[string]bool
	Exclusive *sync.Mutex
}

// SessionSummary is lightweight per-session metadata.
type SessionSummary struct {
	ID        string     `json:"id"`
	Phase     game.Phase `json:"phase"`
	Version   string     `json:"version"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Repository is the process-wide session map. Construct one and pass it by
// reference to every component that needs it.
type Repository struct {
	mu       sync.RWMutex
	sessions map[string]*envelope
	logger   *log.Logger
}

// NewRepository creates an empty repository.
func NewRepository(logger *log.Logger) *Repository {
	return &Repository{
		sessions: make(map[string]*envelope),
		logger:   logger.WithPrefix("store"),
	}
}

// Save deep-copies the snapshot, computes its content-hash version, and
// either creates a new envelope (first save for the session id) or replaces
// the existing envelope's snapshot and version in place. The event log,
// idempotency ledger and exclusive lock survive replacement.
func (r *Repository) Save(snapshot *game.Snapshot) *Envelope {
	stored := snapshot.Clone()
	version := game.Version(stored)

	r.mu.Lock()
	env, ok := r.sessions[snapshot.SessionID]
	if !ok {
		env = &envelope{processed: make(map[string]struct{})}
		r.sessions[snapshot.SessionID] = env
		r.logger.Debug("Session created", "session", snapshot.SessionID)
	}
	env.snapshot = stored
	env.version = version
	view := env.view()
	r.mu.Unlock()

	return view
}

// GetSnapshot returns a deep copy of the stored snapshot and its version.
func (r *Repository) GetSnapshot(id string) (*game.Snapshot, string, error) {
	r.mu.RLock()
	env, ok := r.sessions[id]
	if !ok {
		r.mu.RUnlock()
		return nil, "", game.ErrSessionNotFound(id)
	}
	snap := env.snapshot.Clone()
	version := env.version
	r.mu.RUnlock()
	return snap, version, nil
}

// GetEnvelope returns a copy-safe view of the stored envelope, including the
// live exclusive lock.
func (r *Repository) GetEnvelope(id string) (*Envelope, error) {
	r.mu.RLock()
	env, ok := r.sessions[id]
	if !ok {
		r.mu.RUnlock()
		return nil, game.ErrSessionNotFound(id)
	}
	view := env.view()
	r.mu.RUnlock()
	return view, nil
}

func (e *envelope) view() *Envelope {
	processed := make(map[string]bool, len(e.processed))
	for id := range e.processed {
		processed[id] = true
	}
	return &Envelope{
		Snapshot:  e.snapshot.Clone(),
		Version:   e.version,
		EventLog:  game.CloneEntries(e.eventLog),
		Processed: processed,
		Exclusive: &e.exclusive,
	}
}

// AppendEventLog deep-copies and appends entries to the session's log,
// returning the stored copies.
func (r *Repository) AppendEventLog(id string, entries []game.EventLogEntry) ([]game.EventLogEntry, error) {
	stored := game.CloneEntries(entries)

	r.mu.Lock()
	env, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("append event log for %s: %w", id, ErrNotInitialized)
	}
	env.eventLog = append(env.eventLog, stored...)
	r.mu.Unlock()

	return game.CloneEntries(stored), nil
}

// ListEventLogAfter returns the entries strictly after the cursor id. An
// empty cursor returns the full log; so does a cursor that is not found, so
// observers with an aged-out cursor never silently miss entries.
func (r *Repository) ListEventLogAfter(id, cursorID string) ([]game.EventLogEntry, error) {
	r.mu.RLock()
	env, ok := r.sessions[id]
	if !ok {
		r.mu.RUnlock()
		return nil, game.ErrSessionNotFound(id)
	}
	entries := env.eventLog
	if cursorID != "" {
		for i, entry := range entries {
			if entry.ID == cursorID {
				entries = entries[i+1:]
				break
			}
		}
	}
	out := game.CloneEntries(entries)
	r.mu.RUnlock()
	return out, nil
}

// HasProcessedCommand reports whether the command id is in the session's
// idempotency ledger.
func (r *Repository) HasProcessedCommand(id, commandID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	env, ok := r.sessions[id]
	if !ok {
		return false, fmt.Errorf("lookup command for %s: %w", id, ErrNotInitialized)
	}
	_, processed := env.processed[commandID]
	return processed, nil
}

// MarkCommandProcessed inserts the command id into the idempotency ledger.
// The ledger only grows.
func (r *Repository) MarkCommandProcessed(id, commandID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	env, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("mark command for %s: %w", id, ErrNotInitialized)
	}
	env.processed[commandID] = struct{}{}
	return nil
}

// ListSessions returns lightweight metadata for every stored session, sorted
// by id for stable output.
func (r *Repository) ListSessions() []SessionSummary {
	r.mu.RLock()
	summaries := make([]SessionSummary, 0, len(r.sessions))
	for id, env := range r.sessions {
		summaries = append(summaries, SessionSummary{
			ID:        id,
			Phase:     env.snapshot.Phase,
			Version:   env.version,
			UpdatedAt: env.snapshot.UpdatedAt,
		})
	}
	r.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	return summaries
}

// PruneSessionsOlderThan deletes sessions whose UpdatedAt precedes the
// threshold and returns the removed ids.
func (r *Repository) PruneSessionsOlderThan(threshold time.Time) []string {
	r.mu.Lock()
	var removed []string
	for id, env := range r.sessions {
		if env.snapshot.UpdatedAt.Before(threshold) {
			delete(r.sessions, id)
			removed = append(removed, id)
		}
	}
	r.mu.Unlock()

	if len(removed) > 0 {
		sort.Strings(removed)
		r.logger.Info("Pruned sessions", "count", len(removed))
	}
	return removed
}

// Package eventlog builds and replays the append-only per-session log. The
// repository is the durable store; the broadcast gateway receives a live copy
// of every appended entry.
package eventlog

import (
	"context"
	"fmt"
	"regexp"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/nothanks/internal/broadcast"
	"github.com/lox/nothanks/internal/game"
	"github.com/lox/nothanks/internal/store"
)

// idPattern matches the turn-scoped sequential entry id format.
var idPattern = regexp.MustCompile(`^turn-\d+-log-\d+$`)

// IsEventLogID recognizes the log entry id format, for cursor validation at
// the boundary.
func IsEventLogID(value string) bool {
	return idPattern.MatchString(value)
}

// Service appends immutable entries and republishes them.
type Service struct {
	store   *store.Repository
	gateway *broadcast.Gateway
	clock   quartz.Clock
	logger  *log.Logger
}

// NewService creates an event log service over the given repository and
// gateway.
func NewService(repo *store.Repository, gateway *broadcast.Gateway, clock quartz.Clock, logger *log.Logger) *Service {
	return &Service{
		store:   repo,
		gateway: gateway,
		clock:   clock,
		logger:  logger.WithPrefix("eventlog"),
	}
}

// RecordAction appends an entry describing an applied player or system
// action and publishes it to live listeners.
func (s *Service) RecordAction(sessionID string, turn int, actor game.Actor, action game.Action, delta *game.ChipDelta, details map[string]any) (game.EventLogEntry, error) {
	return s.record(sessionID, turn, actor.String(), action.String(), delta, details)
}

// RecordSystemEvent appends an entry for a lifecycle event (e.g. game
// completion) attributed to the system actor.
func (s *Service) RecordSystemEvent(sessionID string, turn int, event string, details map[string]any) (game.EventLogEntry, error) {
	return s.record(sessionID, turn, game.SystemActor().String(), event, nil, details)
}

func (s *Service) record(sessionID string, turn int, actor, action string, delta *game.ChipDelta, details map[string]any) (game.EventLogEntry, error) {
	id, err := s.nextID(sessionID, turn)
	if err != nil {
		return game.EventLogEntry{}, err
	}

	entry := game.EventLogEntry{
		ID:         id,
		Turn:       turn,
		Actor:      actor,
		Action:     action,
		Timestamp:  s.clock.Now(),
		ChipsDelta: delta,
		Details:    details,
	}

	stored, err := s.store.AppendEventLog(sessionID, []game.EventLogEntry{entry})
	if err != nil {
		return game.EventLogEntry{}, fmt.Errorf("record log entry: %w", err)
	}

	if err := s.gateway.PublishEventLog(sessionID, stored[0]); err != nil {
		// Listeners can replay from the repository; a publish failure is
		// not a record failure.
		s.logger.Warn("Failed to publish log entry", "session", sessionID, "entry", id, "error", err)
	}
	return stored[0], nil
}

// nextID builds a sequential id scoped to the turn: turn-{n}-log-{k} where k
// counts existing entries for that turn plus one.
func (s *Service) nextID(sessionID string, turn int) (string, error) {
	entries, err := s.store.ListEventLogAfter(sessionID, "")
	if err != nil {
		return "", err
	}
	k := 1
	for _, entry := range entries {
		if entry.Turn == turn {
			k++
		}
	}
	return fmt.Sprintf("turn-%d-log-%d", turn, k), nil
}

// ReplayEntries streams, in order, every entry after the cursor (the full
// log when the cursor is empty or unknown), awaiting each delivery before
// sending the next.
func (s *Service) ReplayEntries(ctx context.Context, sessionID, cursorID string, sink func(game.EventLogEntry) error) error {
	entries, err := s.store.ListEventLogAfter(sessionID, cursorID)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sink(entry); err != nil {
			return fmt.Errorf("replay delivery: %w", err)
		}
	}
	return nil
}

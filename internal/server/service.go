package server

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/lox/nothanks/internal/broadcast"
	"github.com/lox/nothanks/internal/deadline"
	"github.com/lox/nothanks/internal/engine"
	"github.com/lox/nothanks/internal/eventlog"
	"github.com/lox/nothanks/internal/game"
	"github.com/lox/nothanks/internal/randutil"
	"github.com/lox/nothanks/internal/store"
)

// SessionService is the thin translation layer between WebSocket messages
// and the session engine. It holds no game state of its own.
type SessionService struct {
	store     *store.Repository
	engine    *engine.Engine
	logs      *eventlog.Service
	gateway   *broadcast.Gateway
	deadlines *deadline.Supervisor
	clock     quartz.Clock
	rules     game.Rules
	logger    *log.Logger
}

// NewSessionService wires the service over the core components.
func NewSessionService(repo *store.Repository, eng *engine.Engine, logs *eventlog.Service, gateway *broadcast.Gateway, deadlines *deadline.Supervisor, clock quartz.Clock, rules game.Rules, logger *log.Logger) *SessionService {
	return &SessionService{
		store:     repo,
		engine:    eng,
		logs:      logs,
		gateway:   gateway,
		deadlines: deadlines,
		clock:     clock,
		rules:     rules,
		logger:    logger.WithPrefix("service"),
	}
}

// CreateSession deals a new session, persists it and arms its first
// deadline. A nil seed draws one at random.
func (s *SessionService) CreateSession(players []game.Player, seed *int64) (*game.Snapshot, string, error) {
	sessionID := uuid.NewString()
	actualSeed := randutil.NewSeed()
	if seed != nil {
		actualSeed = *seed
	}

	snap, err := game.NewSession(sessionID, players, actualSeed, s.clock.Now(), s.rules)
	if err != nil {
		return nil, "", err
	}

	env := s.store.Save(snap)
	s.deadlines.Register(sessionID, env.Snapshot.TurnState.Deadline)

	s.logger.Info("Session created",
		"session", sessionID, "players", len(players), "seed", actualSeed)
	return env.Snapshot, env.Version, nil
}

// GetState returns a deep copy of the current snapshot and its version.
func (s *SessionService) GetState(sessionID string) (*game.Snapshot, string, error) {
	return s.store.GetSnapshot(sessionID)
}

// ListSessions returns lightweight summaries for every live session.
func (s *SessionService) ListSessions() []store.SessionSummary {
	return s.store.ListSessions()
}

// Action validates and applies a player command through the engine.
func (s *SessionService) Action(data ActionData) (*engine.Result, error) {
	action, err := game.ParseAction(data.Action)
	if err != nil {
		return nil, err
	}
	return s.engine.ApplyCommand(data.SessionID, data.CommandID, data.ExpectedVersion,
		game.PlayerActor(data.PlayerID), action)
}

// ReplayLog streams every log entry after the cursor to the sink, in order,
// and returns how many entries were delivered. Cursor format validation is
// the caller's concern (eventlog.IsEventLogID).
func (s *SessionService) ReplayLog(ctx context.Context, sessionID, afterID string, sink func(game.EventLogEntry) error) (int, error) {
	count := 0
	err := s.logs.ReplayEntries(ctx, sessionID, afterID, func(entry game.EventLogEntry) error {
		count++
		return sink(entry)
	})
	return count, err
}

// Prune removes sessions older than the retention window from the repository
// and releases their gateway and timer state.
func (s *SessionService) Prune(maxAge time.Duration) []string {
	removed := s.store.PruneSessionsOlderThan(s.clock.Now().Add(-maxAge))
	for _, id := range removed {
		s.deadlines.Clear(id)
		s.gateway.RemoveSession(id)
	}
	return removed
}

// ErrorData translates a core error into a transport error frame.
func translateError(err error) ErrorData {
	var domainErr *game.Error
	if errors.As(err, &domainErr) {
		return ErrorData{
			Code:    string(domainErr.Code),
			Status:  domainErr.Status,
			Message: domainErr.Message,
		}
	}
	if errors.Is(err, store.ErrNotInitialized) {
		return ErrorData{Code: "NotInitialized", Status: 404, Message: err.Error()}
	}
	return ErrorData{Code: "Internal", Status: 500, Message: err.Error()}
}

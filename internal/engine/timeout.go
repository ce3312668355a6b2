package engine

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/lox/nothanks/internal/broadcast"
	"github.com/lox/nothanks/internal/game"
	"github.com/lox/nothanks/internal/monitor"
	"github.com/lox/nothanks/internal/store"
)

// TimeoutHandler resolves expired turns by forcing the current player to
// take the center card. It is a best-effort liveness mechanism: every error
// is swallowed so a failed forced action never halts the timer subsystem.
type TimeoutHandler struct {
	engine  *Engine
	store   *store.Repository
	gateway *broadcast.Gateway
	monitor monitor.Monitor
	logger  *log.Logger
}

// NewTimeoutHandler creates a handler bound to the engine and repository.
func NewTimeoutHandler(eng *Engine, repo *store.Repository, gateway *broadcast.Gateway, mon monitor.Monitor, logger *log.Logger) *TimeoutHandler {
	if mon == nil {
		mon = monitor.NullMonitor{}
	}
	return &TimeoutHandler{
		engine:  eng,
		store:   repo,
		gateway: gateway,
		monitor: mon,
		logger:  logger.WithPrefix("timeout"),
	}
}

// ForcedCommandID derives the idempotency key for a forced action from the
// turn number, so a duplicate or stale fire collapses into the ledger
// instead of double-applying.
func ForcedCommandID(turn int) string {
	return fmt.Sprintf("forced-takecard-turn-%d", turn)
}

// HandleDeadline runs when a session's deadline fires.
func (h *TimeoutHandler) HandleDeadline(sessionID string) {
	env, err := h.store.GetEnvelope(sessionID)
	if err != nil {
		h.logger.Debug("Deadline fired for unknown session", "session", sessionID)
		return
	}

	ts := env.Snapshot.TurnState
	if env.Snapshot.Phase == game.PhaseCompleted || !ts.AwaitingAction || ts.CardInCenter == nil {
		// State changed since the timer was set; nothing to force.
		return
	}

	commandID := ForcedCommandID(ts.Turn)
	h.logger.Info("Forcing action on expired deadline",
		"session", sessionID, "turn", ts.Turn, "player", ts.CurrentPlayerID)

	_, err = h.engine.ApplyCommand(sessionID, commandID, env.Version, game.SystemActor(), game.ActionTakeCard)
	h.monitor.OnForcedTimeout(sessionID, err == nil)
	if err != nil {
		// A concurrent player command racing the timer lands here as a
		// version mismatch; the next deadline re-arm covers the session.
		h.logger.Warn("Forced action not applied", "session", sessionID, "error", err)
		if pubErr := h.gateway.PublishSystemError(sessionID, map[string]any{
			"code":    "ForcedActionSkipped",
			"message": err.Error(),
		}); pubErr != nil {
			h.logger.Debug("Failed to publish system error", "session", sessionID, "error", pubErr)
		}
	}
}

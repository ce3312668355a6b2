// Package engine applies turn commands to sessions. Each command runs
// entirely inside its session's exclusive section: validation on a cloned
// snapshot, the chip and card moves, scoring at completion, persistence,
// deadline re-arming and publication. Failures never mutate stored state.
package engine

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/nothanks/internal/broadcast"
	"github.com/lox/nothanks/internal/deadline"
	"github.com/lox/nothanks/internal/eventlog"
	"github.com/lox/nothanks/internal/game"
	"github.com/lox/nothanks/internal/hint"
	"github.com/lox/nothanks/internal/monitor"
	"github.com/lox/nothanks/internal/store"
)

// Result is the persisted outcome of an applied (or replayed) command.
type Result struct {
	Snapshot *game.Snapshot
	Version  string
}

// StatePayload is the broadcast body for state.delta and state.final events.
type StatePayload struct {
	SessionID string         `json:"sessionId"`
	Version   string         `json:"version"`
	Snapshot  *game.Snapshot `json:"snapshot"`
}

// HintPayload is the broadcast body for rule.hint events.
type HintPayload struct {
	SessionID string `json:"sessionId"`
	Version   string `json:"version"`
	Hint      string `json:"hint"`
}

// Engine is the turn decision engine.
type Engine struct {
	store       *store.Repository
	logs        *eventlog.Service
	gateway     *broadcast.Gateway
	deadlines   *deadline.Supervisor
	hints       *hint.Service
	monitor     monitor.Monitor
	clock       quartz.Clock
	logger      *log.Logger
	turnTimeout time.Duration
}

// Options configures an engine. Hints and Monitor may be nil.
type Options struct {
	Store       *store.Repository
	Logs        *eventlog.Service
	Gateway     *broadcast.Gateway
	Deadlines   *deadline.Supervisor
	Hints       *hint.Service
	Monitor     monitor.Monitor
	Clock       quartz.Clock
	Logger      *log.Logger
	TurnTimeout time.Duration
}

// New creates an engine.
func New(opts Options) *Engine {
	mon := opts.Monitor
	if mon == nil {
		mon = monitor.NullMonitor{}
	}
	return &Engine{
		store:       opts.Store,
		logs:        opts.Logs,
		gateway:     opts.Gateway,
		deadlines:   opts.Deadlines,
		hints:       opts.Hints,
		monitor:     mon,
		clock:       opts.Clock,
		logger:      opts.Logger.WithPrefix("engine"),
		turnTimeout: opts.TurnTimeout,
	}
}

// ApplyCommand validates and applies one command under the session's
// exclusive lock. A replayed commandID returns the current state without
// re-application; a stale expectedVersion fails with StateVersionMismatch.
func (e *Engine) ApplyCommand(sessionID, commandID, expectedVersion string, actor game.Actor, action game.Action) (result *Result, err error) {
	start := e.clock.Now()
	defer func() {
		e.monitor.OnCommandApplied(sessionID, action.String(), e.clock.Now().Sub(start), err)
	}()

	env, err := e.store.GetEnvelope(sessionID)
	if err != nil {
		return nil, err
	}

	env.Exclusive.Lock()
	defer env.Exclusive.Unlock()
	e.monitor.OnExclusivityWait(sessionID, e.clock.Now().Sub(start))

	// Re-fetch under the lock: another command may have run while we
	// queued.
	env, err = e.store.GetEnvelope(sessionID)
	if err != nil {
		return nil, err
	}

	if env.Processed[commandID] {
		e.logger.Debug("Replayed command", "session", sessionID, "command", commandID)
		return &Result{Snapshot: env.Snapshot, Version: env.Version}, nil
	}

	if expectedVersion != env.Version {
		return nil, game.ErrStateVersionMismatch(expectedVersion, env.Version)
	}

	next := env.Snapshot.Clone()
	actingID, err := validate(next, actor, action)
	if err != nil {
		return nil, err
	}

	// The log entry is scoped to the turn the action resolved, before
	// takeCard draws the next card and advances the counter.
	turn := next.TurnState.Turn

	delta, details, err := apply(next, actingID, action)
	if err != nil {
		return nil, err
	}

	if next.Phase == game.PhaseSetup {
		next.Phase = game.PhaseRunning
	}

	now := e.clock.Now()
	next.UpdatedAt = now
	if next.TurnState.AwaitingAction {
		due := now.Add(e.turnTimeout)
		next.TurnState.Deadline = &due
	} else {
		next.TurnState.Deadline = nil
	}

	if _, err := e.logs.RecordAction(sessionID, turn, actor, action, delta, details); err != nil {
		return nil, err
	}

	completed := len(next.Deck) == 0 &&
		next.TurnState.CardInCenter == nil && !next.TurnState.AwaitingAction &&
		next.FinalResults == nil
	if completed {
		next.Phase = game.PhaseCompleted
		summary := game.Score(next)
		next.FinalResults = &summary
		next.TurnState.Deadline = nil
		if _, err := e.logs.RecordSystemEvent(sessionID, next.TurnState.Turn, "game_completed", map[string]any{
			"placements": len(summary.Placements),
		}); err != nil {
			return nil, err
		}
	}

	saved := e.store.Save(next)
	if err := e.store.MarkCommandProcessed(sessionID, commandID); err != nil {
		return nil, err
	}

	if saved.Snapshot.TurnState.AwaitingAction {
		e.deadlines.Register(sessionID, saved.Snapshot.TurnState.Deadline)
	} else {
		e.deadlines.Clear(sessionID)
	}

	e.publish(saved)

	return &Result{Snapshot: saved.Snapshot, Version: saved.Version}, nil
}

// validate runs every precondition on the cloned snapshot and resolves the
// acting player. The system actor acts as whoever currently holds the turn.
func validate(next *game.Snapshot, actor game.Actor, action game.Action) (string, error) {
	if action != game.ActionPlaceChip && action != game.ActionTakeCard {
		return "", game.ErrActionNotSupported(action.String())
	}
	if next.Phase == game.PhaseCompleted {
		return "", game.ErrGameAlreadyCompleted(next.SessionID)
	}
	ts := next.TurnState
	if !ts.AwaitingAction || ts.CardInCenter == nil {
		return "", game.ErrTurnNotAvailable("no card is awaiting action")
	}
	if !actor.IsSystem() && actor.PlayerID() != ts.CurrentPlayerID {
		return "", game.ErrTurnNotAvailable("acting out of turn")
	}
	actingID := ts.CurrentPlayerID
	if err := game.EnsureChipActionAllowed(next, actingID, action); err != nil {
		return "", err
	}
	return actingID, nil
}

// apply mutates the cloned snapshot for the validated action.
func apply(next *game.Snapshot, actingID string, action game.Action) (*game.ChipDelta, map[string]any, error) {
	ts := &next.TurnState
	card := *ts.CardInCenter

	switch action {
	case game.ActionPlaceChip:
		delta, err := game.PlaceChipIntoCenter(next, actingID)
		if err != nil {
			return nil, nil, err
		}
		if err := advanceTurn(next); err != nil {
			return nil, nil, err
		}
		return &delta, map[string]any{"card": card, "pot": next.CentralPot}, nil

	case game.ActionTakeCard:
		next.Hands[actingID] = game.InsertSorted(next.Hands[actingID], card)
		potDelta, err := game.CollectCentralPotForPlayer(next, actingID)
		if err != nil {
			return nil, nil, err
		}
		ts.CardInCenter = nil
		ts.AwaitingAction = false
		if len(next.Deck) > 0 {
			head := next.Deck[0]
			next.Deck = next.Deck[1:]
			ts.CardInCenter = &head
			ts.Turn++
			ts.AwaitingAction = true
		}
		// The taker keeps the turn, acting next on the fresh card.
		details := map[string]any{"card": card}
		if ts.CardInCenter != nil {
			details["nextCard"] = *ts.CardInCenter
		}
		return potDelta, details, nil

	default:
		return nil, nil, game.ErrActionNotSupported(action.String())
	}
}

// advanceTurn moves the current-player pointer to the next entry of the
// player order, wrapping circularly.
func advanceTurn(next *game.Snapshot) error {
	ts := &next.TurnState
	if len(next.PlayerOrder) == 0 {
		return game.ErrPlayerOrderInvalid("player order is empty")
	}
	if ts.CurrentPlayerIndex < 0 || ts.CurrentPlayerIndex >= len(next.PlayerOrder) ||
		next.PlayerOrder[ts.CurrentPlayerIndex] != ts.CurrentPlayerID {
		return game.ErrPlayerOrderInvalid("current player is not at its recorded index")
	}
	ts.CurrentPlayerIndex = (ts.CurrentPlayerIndex + 1) % len(next.PlayerOrder)
	ts.CurrentPlayerID = next.PlayerOrder[ts.CurrentPlayerIndex]
	return nil
}

// publish emits the resulting state and, while the session is live, a rule
// hint. Publish failures are logged, never propagated.
func (e *Engine) publish(saved *store.Envelope) {
	snap := saved.Snapshot
	payload := StatePayload{SessionID: snap.SessionID, Version: saved.Version, Snapshot: snap}

	var err error
	if snap.Phase == game.PhaseCompleted {
		err = e.gateway.PublishStateFinal(snap.SessionID, payload)
	} else {
		err = e.gateway.PublishStateDelta(snap.SessionID, payload)
	}
	if err != nil {
		e.logger.Warn("Failed to publish state", "session", snap.SessionID, "error", err)
	}

	if e.hints == nil || !snap.TurnState.AwaitingAction {
		return
	}
	if text := e.hints.ForSnapshot(snap); text != "" {
		hintPayload := HintPayload{SessionID: snap.SessionID, Version: saved.Version, Hint: text}
		if err := e.gateway.PublishRuleHint(snap.SessionID, hintPayload); err != nil {
			e.logger.Warn("Failed to publish hint", "session", snap.SessionID, "error", err)
		}
	}
}

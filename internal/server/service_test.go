package server

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/nothanks/internal/broadcast"
	"github.com/lox/nothanks/internal/deadline"
	"github.com/lox/nothanks/internal/engine"
	"github.com/lox/nothanks/internal/eventlog"
	"github.com/lox/nothanks/internal/game"
	"github.com/lox/nothanks/internal/hint"
	"github.com/lox/nothanks/internal/monitor"
	"github.com/lox/nothanks/internal/store"
)

func newTestService(t *testing.T) (*SessionService, *quartz.Mock) {
	t.Helper()
	logger := log.New(io.Discard)
	clock := quartz.NewMock(t)
	repo := store.NewRepository(logger)
	gateway := broadcast.NewGateway(logger, monitor.NullMonitor{})
	logs := eventlog.NewService(repo, gateway, clock, logger)
	deadlines := deadline.NewSupervisor(clock, logger, monitor.NullMonitor{})

	rules := game.DefaultRules()
	eng := engine.New(engine.Options{
		Store:       repo,
		Logs:        logs,
		Gateway:     gateway,
		Deadlines:   deadlines,
		Hints:       hint.NewService(),
		Clock:       clock,
		Logger:      logger,
		TurnTimeout: rules.TurnTimeout,
	})
	timeouts := engine.NewTimeoutHandler(eng, repo, gateway, monitor.NullMonitor{}, logger)
	deadlines.SetHandler(timeouts.HandleDeadline)

	return NewSessionService(repo, eng, logs, gateway, deadlines, clock, rules, logger), clock
}

func twoPlayers() []game.Player {
	return []game.Player{{ID: "a", DisplayName: "Alice"}, {ID: "b", DisplayName: "Bob"}}
}

func TestCreateSession(t *testing.T) {
	svc, _ := newTestService(t)

	snap, version, err := svc.CreateSession(twoPlayers(), nil)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.NotEmpty(t, snap.SessionID)
	assert.NotEmpty(t, version)
	assert.Equal(t, game.PhaseSetup, snap.Phase)
	assert.NotNil(t, snap.TurnState.CardInCenter)

	// The session is immediately retrievable.
	got, gotVersion, err := svc.GetState(snap.SessionID)
	require.NoError(t, err)
	assert.Equal(t, version, gotVersion)
	assert.Equal(t, snap.SessionID, got.SessionID)
}

func TestCreateSessionWithSeedIsDeterministic(t *testing.T) {
	svc, _ := newTestService(t)

	seed := int64(42)
	first, _, err := svc.CreateSession(twoPlayers(), &seed)
	require.NoError(t, err)
	second, _, err := svc.CreateSession(twoPlayers(), &seed)
	require.NoError(t, err)

	assert.Equal(t, first.Deck, second.Deck)
	assert.Equal(t, *first.TurnState.CardInCenter, *second.TurnState.CardInCenter)
}

func TestCreateSessionRejectsBadPlayers(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.CreateSession([]game.Player{{ID: "solo"}}, nil)
	assert.True(t, game.IsCode(err, game.CodePlayerOrderInvalid))
}

func TestActionRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)

	snap, version, err := svc.CreateSession(twoPlayers(), nil)
	require.NoError(t, err)

	result, err := svc.Action(ActionData{
		SessionID:       snap.SessionID,
		CommandID:       "cmd-1",
		ExpectedVersion: version,
		PlayerID:        "a",
		Action:          "placeChip",
	})
	require.NoError(t, err)
	assert.Equal(t, 10, result.Snapshot.Chips["a"])
	assert.Equal(t, "b", result.Snapshot.TurnState.CurrentPlayerID)
}

func TestActionRejectsUnknownVerb(t *testing.T) {
	svc, _ := newTestService(t)

	snap, version, err := svc.CreateSession(twoPlayers(), nil)
	require.NoError(t, err)

	_, err = svc.Action(ActionData{
		SessionID:       snap.SessionID,
		CommandID:       "cmd-1",
		ExpectedVersion: version,
		PlayerID:        "a",
		Action:          "fold",
	})
	assert.True(t, game.IsCode(err, game.CodeActionNotSupported))
}

func TestReplayLogCountsEntries(t *testing.T) {
	svc, _ := newTestService(t)

	snap, version, err := svc.CreateSession(twoPlayers(), nil)
	require.NoError(t, err)
	_, err = svc.Action(ActionData{
		SessionID:       snap.SessionID,
		CommandID:       "cmd-1",
		ExpectedVersion: version,
		PlayerID:        "a",
		Action:          "takeCard",
	})
	require.NoError(t, err)

	var ids []string
	count, err := svc.ReplayLog(context.Background(), snap.SessionID, "", func(entry game.EventLogEntry) error {
		ids = append(ids, entry.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"turn-1-log-1"}, ids)
}

func TestPruneReleasesSessionState(t *testing.T) {
	svc, clock := newTestService(t)

	snap, _, err := svc.CreateSession(twoPlayers(), nil)
	require.NoError(t, err)

	clock.Advance(48 * time.Hour).MustWait(context.Background())

	removed := svc.Prune(24 * time.Hour)
	require.Equal(t, []string{snap.SessionID}, removed)

	_, _, err = svc.GetState(snap.SessionID)
	assert.True(t, game.IsCode(err, game.CodeSessionNotFound))
}

func TestTranslateError(t *testing.T) {
	data := translateError(game.ErrSessionNotFound("s1"))
	assert.Equal(t, "SessionNotFound", data.Code)
	assert.Equal(t, 404, data.Status)

	data = translateError(game.ErrStateVersionMismatch("a", "b"))
	assert.Equal(t, "StateVersionMismatch", data.Code)
	assert.Equal(t, 409, data.Status)

	data = translateError(store.ErrNotInitialized)
	assert.Equal(t, "NotInitialized", data.Code)
	assert.Equal(t, 404, data.Status)

	data = translateError(errors.New("boom"))
	assert.Equal(t, "Internal", data.Code)
	assert.Equal(t, 500, data.Status)
	assert.Equal(t, "boom", data.Message)
}

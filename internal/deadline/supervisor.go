// Package deadline schedules the forced-action timer for each session: at
// most one live timer per session, re-registering always cancels the prior
// one first.
package deadline

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/nothanks/internal/monitor"
	"github.com/lox/nothanks/internal/store"
)

// Handler is invoked when a session's deadline fires.
type Handler func(sessionID string)

// Supervisor owns every scheduled deadline callback, keyed by session id.
// Timer handles live here, not in the domain snapshot.
type Supervisor struct {
	clock   quartz.Clock
	logger  *log.Logger
	monitor monitor.Monitor

	mu      sync.Mutex
	timers  map[string]*quartz.Timer
	handler Handler
}

// NewSupervisor creates a supervisor with no handler attached; call
// SetHandler before registering deadlines.
func NewSupervisor(clock quartz.Clock, logger *log.Logger, mon monitor.Monitor) *Supervisor {
	if mon == nil {
		mon = monitor.NullMonitor{}
	}
	return &Supervisor{
		clock:   clock,
		logger:  logger.WithPrefix("deadline"),
		monitor: mon,
		timers:  make(map[string]*quartz.Timer),
	}
}

// SetHandler attaches the forced-timeout handler. The supervisor and handler
// reference each other through the engine, so the handler is wired after
// construction.
func (s *Supervisor) SetHandler(h Handler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

// Register cancels any existing timer for the session and, when dueAt is
// set, schedules a new callback at max(0, dueAt-now).
func (s *Supervisor) Register(sessionID string, dueAt *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked(sessionID)
	if dueAt == nil {
		return
	}

	delay := dueAt.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}

	s.timers[sessionID] = s.clock.AfterFunc(delay, func() {
		s.fire(sessionID)
	})
	s.logger.Debug("Deadline registered", "session", sessionID, "dueAt", *dueAt)
	s.monitor.OnTimerRegistered(sessionID, *dueAt)
}

// Clear cancels and forgets the session's timer.
func (s *Supervisor) Clear(sessionID string) {
	s.mu.Lock()
	cancelled := s.cancelLocked(sessionID)
	s.mu.Unlock()

	if cancelled {
		s.logger.Debug("Deadline cleared", "session", sessionID)
		s.monitor.OnTimerCleared(sessionID)
	}
}

func (s *Supervisor) cancelLocked(sessionID string) bool {
	timer, ok := s.timers[sessionID]
	if !ok {
		return false
	}
	timer.Stop()
	delete(s.timers, sessionID)
	return true
}

func (s *Supervisor) fire(sessionID string) {
	s.mu.Lock()
	delete(s.timers, sessionID)
	handler := s.handler
	s.mu.Unlock()

	if handler == nil {
		s.logger.Warn("Deadline fired with no handler", "session", sessionID)
		return
	}
	handler(sessionID)
}

// RestoreAll walks every known session and re-registers the timer for those
// still awaiting action with a deadline, clearing the rest. Run once at
// startup to recover timer state.
func (s *Supervisor) RestoreAll(repo *store.Repository) {
	restored := 0
	for _, summary := range repo.ListSessions() {
		snap, _, err := repo.GetSnapshot(summary.ID)
		if err != nil {
			continue
		}
		ts := snap.TurnState
		if ts.AwaitingAction && ts.Deadline != nil {
			s.Register(summary.ID, ts.Deadline)
			restored++
		} else {
			s.Clear(summary.ID)
		}
	}
	if restored > 0 {
		s.logger.Info("Restored deadline timers", "count", restored)
	}
}

// StopAll cancels every pending timer. Used at shutdown.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

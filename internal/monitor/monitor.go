// Package monitor defines the fire-and-forget observation hooks the session
// engine invokes. Implementations must never affect control flow.
package monitor

import (
	"time"

	"github.com/charmbracelet/log"
)

// Monitor receives notifications about engine activity.
type Monitor interface {
	// OnCommandApplied is called after every command attempt, successful or
	// not.
	OnCommandApplied(sessionID, action string, duration time.Duration, err error)

	// OnExclusivityWait reports how long a command waited for its session's
	// exclusive section.
	OnExclusivityWait(sessionID string, wait time.Duration)

	// OnConnectionCountChanged is called when a session's listener count
	// changes.
	OnConnectionCountChanged(sessionID string, count int)

	// OnTimerRegistered is called when a deadline timer is scheduled.
	OnTimerRegistered(sessionID string, dueAt time.Time)

	// OnTimerCleared is called when a deadline timer is cancelled.
	OnTimerCleared(sessionID string)

	// OnForcedTimeout is called after a deadline fires and the forced
	// action has been attempted.
	OnForcedTimeout(sessionID string, applied bool)
}

// NullMonitor is a no-op implementation.
type NullMonitor struct{}

func (NullMonitor) OnCommandApplied(string, string, time.Duration, error) {}
func (NullMonitor) OnExclusivityWait(string, time.Duration)               {}
func (NullMonitor) OnConnectionCountChanged(string, int)                  {}
func (NullMonitor) OnTimerRegistered(string, time.Time)                   {}
func (NullMonitor) OnTimerCleared(string)                                 {}
func (NullMonitor) OnForcedTimeout(string, bool)                          {}

// MultiMonitor fans out notifications to multiple monitors.
type MultiMonitor struct {
	monitors []Monitor
}

// NewMultiMonitor builds a composite monitor, automatically pruning nil
// entries and returning a NullMonitor when no monitors are provided.
func NewMultiMonitor(monitors ...Monitor) Monitor {
	filtered := make([]Monitor, 0, len(monitors))
	for _, m := range monitors {
		if m != nil {
			filtered = append(filtered, m)
		}
	}

	switch len(filtered) {
	case 0:
		return NullMonitor{}
	case 1:
		return filtered[0]
	default:
		return MultiMonitor{monitors: filtered}
	}
}

func (m MultiMonitor) OnCommandApplied(sessionID, action string, duration time.Duration, err error) {
	for _, monitor := range m.monitors {
		monitor.OnCommandApplied(sessionID, action, duration, err)
	}
}

func (m MultiMonitor) OnExclusivityWait(sessionID string, wait time.Duration) {
	for _, monitor := range m.monitors {
		monitor.OnExclusivityWait(sessionID, wait)
	}
}

func (m MultiMonitor) OnConnectionCountChanged(sessionID string, count int) {
	for _, monitor := range m.monitors {
		monitor.OnConnectionCountChanged(sessionID, count)
	}
}

func (m MultiMonitor) OnTimerRegistered(sessionID string, dueAt time.Time) {
	for _, monitor := range m.monitors {
		monitor.OnTimerRegistered(sessionID, dueAt)
	}
}

func (m MultiMonitor) OnTimerCleared(sessionID string) {
	for _, monitor := range m.monitors {
		monitor.OnTimerCleared(sessionID)
	}
}

func (m MultiMonitor) OnForcedTimeout(sessionID string, applied bool) {
	for _, monitor := range m.monitors {
		monitor.OnForcedTimeout(sessionID, applied)
	}
}

// LogMonitor writes every notification to a structured logger at debug
// level, with forced timeouts at info.
type LogMonitor struct {
	logger *log.Logger
}

// NewLogMonitor creates a monitor backed by the given logger.
func NewLogMonitor(logger *log.Logger) *LogMonitor {
	return &LogMonitor{logger: logger.WithPrefix("monitor")}
}

func (m *LogMonitor) OnCommandApplied(sessionID, action string, duration time.Duration, err error) {
	if err != nil {
		m.logger.Debug("Command failed", "session", sessionID, "action", action, "duration", duration, "error", err)
		return
	}
	m.logger.Debug("Command applied", "session", sessionID, "action", action, "duration", duration)
}

func (m *LogMonitor) OnExclusivityWait(sessionID string, wait time.Duration) {
	m.logger.Debug("Exclusivity wait", "session", sessionID, "wait", wait)
}

func (m *LogMonitor) OnConnectionCountChanged(sessionID string, count int) {
	m.logger.Debug("Connection count changed", "session", sessionID, "count", count)
}

func (m *LogMonitor) OnTimerRegistered(sessionID string, dueAt time.Time) {
	m.logger.Debug("Deadline registered", "session", sessionID, "dueAt", dueAt)
}

func (m *LogMonitor) OnTimerCleared(sessionID string) {
	m.logger.Debug("Deadline cleared", "session", sessionID)
}

func (m *LogMonitor) OnForcedTimeout(sessionID string, applied bool) {
	m.logger.Info("Forced timeout", "session", sessionID, "applied", applied)
}

// Package broadcast fans session events out to connected observers, keeping
// a bounded per-session replay history so a reconnecting observer can catch
// up from the last event id it saw.
package broadcast

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/lox/nothanks/internal/monitor"
)

// EventType identifies one of the five event kinds the gateway emits.
type EventType string

const (
	TypeStateDelta  EventType = "state.delta"
	TypeStateFinal  EventType = "state.final"
	TypeSystemError EventType = "system.error"
	TypeEventLog    EventType = "event.log"
	TypeRuleHint    EventType = "rule.hint"
)

// HistoryCapacity bounds the per-session replay buffer. Oldest events are
// evicted first.
const HistoryCapacity = 100

// Event is a typed, immutable broadcast event.
type Event struct {
	ID   string          `json:"id"`
	Type EventType       `json:"eventType"`
	Data json.RawMessage `json:"jsonData"`
}

// Sink receives events for one listener. Delivery awaits the sink's return,
// so a slow sink bounds its own consumption rate, not the gateway's other
// sessions.
type Sink func(Event) error

// ConnectOptions describe a new listener. CursorID, when set, is the id of
// the last event the listener already saw.
type ConnectOptions struct {
	SessionID string
	CursorID  string
	Sink      Sink
}

// Subscription is a handle for an active listener.
type Subscription struct {
	gateway   *Gateway
	sessionID string
	listener  int
	once      sync.Once
}

// Disconnect removes exactly this listener.
func (s *Subscription) Disconnect() {
	s.once.Do(func() {
		s.gateway.disconnect(s.sessionID, s.listener)
	})
}

// hub is one session's listener set and replay history. Each hub has its own
// lock so sessions never block each other.
type hub struct {
	mu           sync.Mutex
	listeners    map[int]Sink
	nextListener int
	history      []Event
}

// Gateway is the per-session fan-out pub/sub.
type Gateway struct {
	mu       sync.Mutex
	sessions map[string]*hub
	logger   *log.Logger
	monitor  monitor.Monitor
}

// NewGateway creates an empty gateway.
func NewGateway(logger *log.Logger, mon monitor.Monitor) *Gateway {
	if mon == nil {
		mon = monitor.NullMonitor{}
	}
	return &Gateway{
		sessions: make(map[string]*hub),
		logger:   logger.WithPrefix("broadcast"),
		monitor:  mon,
	}
}

func (g *Gateway) hubFor(sessionID string) *hub {
	g.mu.Lock()
	defer g.mu.Unlock()
	h, ok := g.sessions[sessionID]
	if !ok {
		h = &hub{listeners: make(map[int]Sink)}
		g.sessions[sessionID] = h
	}
	return h
}

// Connect registers a listener and immediately replays the bounded history:
// the full buffer when no cursor is given or the cursor has aged out of it,
// otherwise only the entries strictly after the cursor. Replay completes
// before any live event reaches the listener.
func (g *Gateway) Connect(opts ConnectOptions) (*Subscription, error) {
	if opts.Sink == nil {
		return nil, fmt.Errorf("broadcast connect: nil sink")
	}
	h := g.hubFor(opts.SessionID)

	h.mu.Lock()
	defer h.mu.Unlock()

	replay := h.history
	if opts.CursorID != "" {
		for i, event := range h.history {
			if event.ID == opts.CursorID {
				replay = h.history[i+1:]
				break
			}
		}
	}
	for _, event := range replay {
		if err := opts.Sink(event); err != nil {
			return nil, fmt.Errorf("broadcast replay: %w", err)
		}
	}

	id := h.nextListener
	h.nextListener++
	h.listeners[id] = opts.Sink

	g.logger.Debug("Listener connected", "session", opts.SessionID, "listeners", len(h.listeners))
	g.monitor.OnConnectionCountChanged(opts.SessionID, len(h.listeners))

	return &Subscription{gateway: g, sessionID: opts.SessionID, listener: id}, nil
}

func (g *Gateway) disconnect(sessionID string, listener int) {
	g.mu.Lock()
	h, ok := g.sessions[sessionID]
	g.mu.Unlock()
	if !ok {
		return
	}

	h.mu.Lock()
	delete(h.listeners, listener)
	count := len(h.listeners)
	if count == 0 {
		// Drop the listener map; the history buffer stays for reconnects.
		h.listeners = make(map[int]Sink)
	}
	h.mu.Unlock()

	g.logger.Debug("Listener disconnected", "session", sessionID, "listeners", count)
	g.monitor.OnConnectionCountChanged(sessionID, count)
}

// PublishStateDelta broadcasts an incremental state update.
func (g *Gateway) PublishStateDelta(sessionID string, payload any) error {
	return g.publish(sessionID, TypeStateDelta, payload, true)
}

// PublishStateFinal broadcasts the terminal state of a completed session.
func (g *Gateway) PublishStateFinal(sessionID string, payload any) error {
	return g.publish(sessionID, TypeStateFinal, payload, true)
}

// PublishSystemError broadcasts a session-scoped failure notice.
func (g *Gateway) PublishSystemError(sessionID string, payload any) error {
	return g.publish(sessionID, TypeSystemError, payload, true)
}

// PublishRuleHint broadcasts a textual hint for the current turn.
func (g *Gateway) PublishRuleHint(sessionID string, payload any) error {
	return g.publish(sessionID, TypeRuleHint, payload, true)
}

// PublishEventLog delivers a log entry to listeners without adding it to the
// bounded history: the event log service is the durable source of truth for
// log replay, and this buffer only covers the other event kinds.
func (g *Gateway) PublishEventLog(sessionID string, payload any) error {
	return g.publish(sessionID, TypeEventLog, payload, false)
}

func (g *Gateway) publish(sessionID string, eventType EventType, payload any, remember bool) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("broadcast marshal %s: %w", eventType, err)
	}
	event := Event{
		ID:   uuid.NewString(),
		Type: eventType,
		Data: data,
	}

	h := g.hubFor(sessionID)
	h.mu.Lock()
	defer h.mu.Unlock()

	if remember {
		h.history = append(h.history, event)
		if len(h.history) > HistoryCapacity {
			h.history = append([]Event(nil), h.history[len(h.history)-HistoryCapacity:]...)
		}
	}

	for id, sink := range h.listeners {
		if err := sink(event); err != nil {
			// A failing sink is a dead connection; drop it so the next
			// publish does not block on it again.
			g.logger.Debug("Dropping failed listener", "session", sessionID, "error", err)
			delete(h.listeners, id)
			g.monitor.OnConnectionCountChanged(sessionID, len(h.listeners))
		}
	}
	return nil
}

// RemoveSession discards all state for a pruned session, listeners and
// history included.
func (g *Gateway) RemoveSession(sessionID string) {
	g.mu.Lock()
	delete(g.sessions, sessionID)
	g.mu.Unlock()
}

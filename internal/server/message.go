package server

import (
	"encoding/json"
	"time"

	"github.com/lox/nothanks/internal/game"
	"github.com/lox/nothanks/internal/store"
)

// MessageType identifies a WebSocket message kind.
type MessageType string

const (
	// Client → Server
	MessageTypeCreateSession MessageType = "create_session"
	MessageTypeGetState      MessageType = "get_state"
	MessageTypeListSessions  MessageType = "list_sessions"
	MessageTypeAction        MessageType = "action"
	MessageTypeSubscribe     MessageType = "subscribe"
	MessageTypeUnsubscribe   MessageType = "unsubscribe"
	MessageTypeReplayLog     MessageType = "replay_log"

	// Server → Client
	MessageTypeSessionCreated MessageType = "session_created"
	MessageTypeState          MessageType = "state"
	MessageTypeStateUnchanged MessageType = "state_unchanged"
	MessageTypeSessionList    MessageType = "session_list"
	MessageTypeActionResult   MessageType = "action_result"
	MessageTypeSubscribed     MessageType = "subscribed"
	MessageTypeUnsubscribed   MessageType = "unsubscribed"
	MessageTypeEvent          MessageType = "event"
	MessageTypeLogEntry       MessageType = "log_entry"
	MessageTypeReplayDone     MessageType = "replay_done"
	MessageTypeError          MessageType = "error"
)

func (t MessageType) String() string { return string(t) }

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server Messages

type CreateSessionData struct {
	Players []game.Player `json:"players"`
	Seed    *int64        `json:"seed,omitempty"`
}

type GetStateData struct {
	SessionID string `json:"sessionId"`
	// IfVersion makes the fetch conditional: when it matches the current
	// version the server answers state_unchanged with no snapshot body.
	IfVersion string `json:"ifVersion,omitempty"`
}

type ActionData struct {
	SessionID       string `json:"sessionId"`
	CommandID       string `json:"commandId"`
	ExpectedVersion string `json:"expectedVersion"`
	PlayerID        string `json:"playerId"`
	Action          string `json:"action"`
}

type SubscribeData struct {
	SessionID   string `json:"sessionId"`
	LastEventID string `json:"lastEventId,omitempty"`
}

type UnsubscribeData struct {
	SessionID string `json:"sessionId"`
}

type ReplayLogData struct {
	SessionID string `json:"sessionId"`
	AfterID   string `json:"afterId,omitempty"`
}

// Server → Client Messages

type ErrorData struct {
	Code    string `json:"code"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

type SessionCreatedData struct {
	SessionID string         `json:"sessionId"`
	Version   string         `json:"version"`
	Snapshot  *game.Snapshot `json:"snapshot"`
}

type StateData struct {
	SessionID string         `json:"sessionId"`
	Version   string         `json:"version"`
	Snapshot  *game.Snapshot `json:"snapshot"`
}

type StateUnchangedData struct {
	SessionID string `json:"sessionId"`
	Version   string `json:"version"`
}

type SessionListData struct {
	Sessions []store.SessionSummary `json:"sessions"`
}

type ActionResultData struct {
	SessionID string         `json:"sessionId"`
	CommandID string         `json:"commandId"`
	Version   string         `json:"version"`
	Snapshot  *game.Snapshot `json:"snapshot"`
}

type SubscribedData struct {
	SessionID string `json:"sessionId"`
}

type ReplayDoneData struct {
	SessionID string `json:"sessionId"`
	Entries   int    `json:"entries"`
}

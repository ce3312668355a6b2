package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/nothanks/internal/broadcast"
	"github.com/lox/nothanks/internal/eventlog"
	"github.com/lox/nothanks/internal/game"
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	conn      *websocket.Conn
	send      chan *Message
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	closeOnce sync.Once
	service   *SessionService

	// subscriptions tracks this connection's gateway listeners by session
	// id, so disconnecting the socket releases them all.
	subscriptions map[string]*broadcast.Subscription
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, logger *log.Logger, service *SessionService) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		conn:          conn,
		send:          make(chan *Message, 256),
		logger:        logger.WithPrefix("conn"),
		ctx:           ctx,
		cancel:        cancel,
		service:       service,
		subscriptions: make(map[string]*broadcast.Subscription),
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection and releases its gateway subscriptions
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()

		c.mu.Lock()
		for id, sub := range c.subscriptions {
			sub.Disconnect()
			delete(c.subscriptions, id)
		}
		c.mu.Unlock()

		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// SendMessage sends a message to the client
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel was closed, this is expected during shutdown
			c.logger.Debug("Attempted to send message on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 16384
)

var ErrConnectionClosed = websocket.ErrCloseSent

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type)

	switch msg.Type {
	case MessageTypeCreateSession:
		var data CreateSessionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendParseError("create session")
			return
		}
		c.handleCreateSession(data)

	case MessageTypeGetState:
		var data GetStateData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendParseError("get state")
			return
		}
		c.handleGetState(data)

	case MessageTypeListSessions:
		c.handleListSessions()

	case MessageTypeAction:
		var data ActionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendParseError("action")
			return
		}
		c.handleAction(data)

	case MessageTypeSubscribe:
		var data SubscribeData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendParseError("subscribe")
			return
		}
		c.handleSubscribe(data)

	case MessageTypeUnsubscribe:
		var data UnsubscribeData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendParseError("unsubscribe")
			return
		}
		c.handleUnsubscribe(data)

	case MessageTypeReplayLog:
		var data ReplayLogData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendParseError("replay log")
			return
		}
		c.handleReplayLog(data)

	default:
		c.sendError(ErrorData{Code: "UnknownMessageType", Status: 422,
			Message: "unknown message type: " + msg.Type.String()})
	}
}

func (c *Connection) sendParseError(what string) {
	c.sendError(ErrorData{Code: "InvalidMessage", Status: 422, Message: "failed to parse " + what + " data"})
}

// sendError sends an error message to the client
func (c *Connection) sendError(data ErrorData) {
	errorMsg, err := NewMessage(MessageTypeError, data)
	if err != nil {
		c.logger.Error("Failed to create error message", "error", err)
		return
	}
	_ = c.SendMessage(errorMsg)
}

func (c *Connection) handleCreateSession(data CreateSessionData) {
	snap, version, err := c.service.CreateSession(data.Players, data.Seed)
	if err != nil {
		c.sendError(translateError(err))
		return
	}

	response, _ := NewMessage(MessageTypeSessionCreated, SessionCreatedData{
		SessionID: snap.SessionID,
		Version:   version,
		Snapshot:  snap,
	})
	_ = c.SendMessage(response)
}

func (c *Connection) handleGetState(data GetStateData) {
	snap, version, err := c.service.GetState(data.SessionID)
	if err != nil {
		c.sendError(translateError(err))
		return
	}

	// The version token supports conditional fetches: a matching token
	// means the caller's cached view is still current.
	if data.IfVersion != "" && data.IfVersion == version {
		response, _ := NewMessage(MessageTypeStateUnchanged, StateUnchangedData{
			SessionID: data.SessionID,
			Version:   version,
		})
		_ = c.SendMessage(response)
		return
	}

	response, _ := NewMessage(MessageTypeState, StateData{
		SessionID: data.SessionID,
		Version:   version,
		Snapshot:  snap,
	})
	_ = c.SendMessage(response)
}

func (c *Connection) handleListSessions() {
	response, _ := NewMessage(MessageTypeSessionList, SessionListData{
		Sessions: c.service.ListSessions(),
	})
	_ = c.SendMessage(response)
}

func (c *Connection) handleAction(data ActionData) {
	result, err := c.service.Action(data)
	if err != nil {
		c.sendError(translateError(err))
		return
	}

	response, _ := NewMessage(MessageTypeActionResult, ActionResultData{
		SessionID: data.SessionID,
		CommandID: data.CommandID,
		Version:   result.Version,
		Snapshot:  result.Snapshot,
	})
	_ = c.SendMessage(response)
}

func (c *Connection) handleSubscribe(data SubscribeData) {
	c.mu.Lock()
	_, already := c.subscriptions[data.SessionID]
	c.mu.Unlock()
	if already {
		c.sendError(ErrorData{Code: "AlreadySubscribed", Status: 409,
			Message: "connection is already subscribed to session " + data.SessionID})
		return
	}

	// Reject unknown sessions before registering a listener.
	if _, _, err := c.service.GetState(data.SessionID); err != nil {
		c.sendError(translateError(err))
		return
	}

	sub, err := c.service.gateway.Connect(broadcast.ConnectOptions{
		SessionID: data.SessionID,
		CursorID:  data.LastEventID,
		Sink: func(event broadcast.Event) error {
			msg, err := NewMessage(MessageTypeEvent, event)
			if err != nil {
				return err
			}
			return c.SendMessage(msg)
		},
	})
	if err != nil {
		c.sendError(translateError(err))
		return
	}

	c.mu.Lock()
	c.subscriptions[data.SessionID] = sub
	c.mu.Unlock()

	response, _ := NewMessage(MessageTypeSubscribed, SubscribedData{SessionID: data.SessionID})
	_ = c.SendMessage(response)
}

func (c *Connection) handleUnsubscribe(data UnsubscribeData) {
	c.mu.Lock()
	sub, ok := c.subscriptions[data.SessionID]
	if ok {
		delete(c.subscriptions, data.SessionID)
	}
	c.mu.Unlock()

	if ok {
		sub.Disconnect()
	}
	response, _ := NewMessage(MessageTypeUnsubscribed, SubscribedData{SessionID: data.SessionID})
	_ = c.SendMessage(response)
}

func (c *Connection) handleReplayLog(data ReplayLogData) {
	if data.AfterID != "" && !eventlog.IsEventLogID(data.AfterID) {
		c.sendError(ErrorData{Code: "InvalidCursor", Status: 422,
			Message: "cursor " + data.AfterID + " is not an event log id"})
		return
	}

	count, err := c.service.ReplayLog(c.ctx, data.SessionID, data.AfterID, func(entry game.EventLogEntry) error {
		msg, err := NewMessage(MessageTypeLogEntry, entry)
		if err != nil {
			return err
		}
		return c.SendMessage(msg)
	})
	if err != nil {
		c.sendError(translateError(err))
		return
	}

	response, _ := NewMessage(MessageTypeReplayDone, ReplayDoneData{
		SessionID: data.SessionID,
		Entries:   count,
	})
	_ = c.SendMessage(response)
}

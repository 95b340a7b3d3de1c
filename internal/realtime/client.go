package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/casewire/casewire/internal/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer. A
	// connection that never authenticates is torn down by this same idle
	// mechanism; the session layer has no separate auth timeout.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 16384

	// Outbound buffer per connection.
	sendBufferSize = 256
)

// Client is the session layer's handle on one transport connection
type Client struct {
	ID       string
	conn     *websocket.Conn
	registry *Registry
	auth     *Authenticator
	send     chan *Message
	onClose  func(*Client)

	mu       sync.Mutex
	identity *Identity
	closed   bool
}

// NewClient wraps an upgraded websocket connection
func NewClient(id string, conn *websocket.Conn, registry *Registry, auth *Authenticator, onClose func(*Client)) *Client {
	return &Client{
		ID:       id,
		conn:     conn,
		registry: registry,
		auth:     auth,
		send:     make(chan *Message, sendBufferSize),
		onClose:  onClose,
	}
}

// Identity returns the authenticated identity, or nil before a successful
// authenticate
func (c *Client) Identity() *Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *Client) setIdentity(identity *Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = identity
}

// Closed reports whether the connection has been shut down
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close marks the client closed and releases the outbound channel. Safe to
// call more than once. Pending outbound messages are still flushed by the
// write pump before the underlying connection goes away.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.send)
}

// Send queues a message for delivery. Delivery is best-effort: a full
// buffer drops the message rather than blocking room fan-out.
func (c *Client) Send(msg *Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- msg:
	default:
		logger.Warn("Send buffer full for connection %s, message dropped", c.ID)
	}
}

// SendError reports a rejected operation to this connection only
func (c *Client) SendError(requestID, code, message, details string) {
	c.Send(NewError(MessageTypeError, requestID, code, message, details))
}

// ReadPump pumps messages from the websocket into the dispatcher. It runs
// in its own goroutine; on exit the connection is closed and the registry
// cleans up every room membership and presence entry.
func (c *Client) ReadPump() {
	defer func() {
		c.Close()
		c.registry.DropConnection(c)
		if c.onClose != nil {
			c.onClose(c)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket read error on connection %s: %v", c.ID, err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Warn("Malformed frame from connection %s: %v", c.ID, err)
			c.SendError("", ErrorCodeInvalidRequest, "malformed message", err.Error())
			continue
		}

		c.handleMessage(&msg)
	}
}

// WritePump pumps queued messages to the websocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				logger.Debug("Write failed on connection %s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches one inbound frame. The message set is closed:
// anything unrecognized is answered with INVALID_REQUEST.
func (c *Client) handleMessage(msg *Message) {
	logger.Debug("Connection %s received %s", c.ID, msg.Type)

	if msg.Type == MessageTypeAuthenticate {
		c.handleAuthenticate(msg)
		return
	}

	// Every other operation requires a prior successful authenticate.
	if c.Identity() == nil {
		c.SendError(msg.RequestID, ErrorCodeAuthRequired, "authenticate first", "")
		return
	}

	switch msg.Type {
	case MessageTypePing:
		c.Send(NewResponse(MessageTypePong, msg.RequestID, nil))

	case MessageTypeJoinCase:
		c.handleJoinCase(msg)

	case MessageTypeLeaveCase:
		c.handleLeaveCase(msg)

	case MessageTypeSendMessage:
		c.handleSendMessage(msg)

	case MessageTypeTypingStart:
		c.handleTyping(msg, true)

	case MessageTypeTypingStop:
		c.handleTyping(msg, false)

	default:
		c.SendError(msg.RequestID, ErrorCodeInvalidRequest, "unknown message type: "+msg.Type, "")
	}
}

// handleAuthenticate verifies the presented credential. A connection
// authenticates successfully at most once: re-authentication is rejected
// and treated like any other auth failure, so the connection is dropped
// after notification.
func (c *Client) handleAuthenticate(msg *Message) {
	if c.Identity() != nil {
		c.Send(NewError(MessageTypeAuthError, msg.RequestID, ErrorCodeAuthFailed, "already authenticated", ""))
		c.Close()
		return
	}

	var req AuthenticateRequest
	if err := parseData(msg.Data, &req); err != nil {
		c.Send(NewError(MessageTypeAuthError, msg.RequestID, ErrorCodeAuthFailed, "invalid authenticate request", err.Error()))
		c.Close()
		return
	}

	identity, err := c.auth.Authenticate(req.Credential)
	if err != nil {
		logger.Warn("Authentication failed for connection %s: %v", c.ID, err)
		c.Send(NewError(MessageTypeAuthError, msg.RequestID, ErrorCodeAuthFailed, "authentication failed", err.Error()))
		c.Close()
		return
	}

	c.setIdentity(identity)
	logger.Info("Connection %s authenticated as %s (%s)", c.ID, identity.ID, identity.Role)

	c.Send(NewResponse(MessageTypeAuthOK, msg.RequestID, map[string]interface{}{
		"connection_id": c.ID,
		"identity":      identity,
	}))
}

func (c *Client) handleJoinCase(msg *Message) {
	var req CaseRequest
	if err := parseData(msg.Data, &req); err != nil {
		c.SendError(msg.RequestID, ErrorCodeInvalidRequest, "invalid join_case request", err.Error())
		return
	}

	if err := c.registry.Join(context.Background(), c, req.CaseID); err != nil {
		if rej, ok := err.(*RejectedError); ok {
			c.SendError(msg.RequestID, rej.Code, rej.Reason, "")
		} else {
			c.SendError(msg.RequestID, ErrorCodeRoomUnavailable, "join failed", err.Error())
		}
		return
	}

	c.Send(NewResponse(MessageTypeCaseJoined, msg.RequestID, map[string]interface{}{
		"case_id": req.CaseID,
	}))
}

func (c *Client) handleLeaveCase(msg *Message) {
	var req CaseRequest
	if err := parseData(msg.Data, &req); err != nil {
		c.SendError(msg.RequestID, ErrorCodeInvalidRequest, "invalid leave_case request", err.Error())
		return
	}

	c.registry.Leave(c, req.CaseID)

	c.Send(NewResponse(MessageTypeCaseLeft, msg.RequestID, map[string]interface{}{
		"case_id": req.CaseID,
	}))
}

func (c *Client) handleSendMessage(msg *Message) {
	var req SendMessageRequest
	if err := parseData(msg.Data, &req); err != nil {
		c.SendError(msg.RequestID, ErrorCodeInvalidRequest, "invalid send_message request", err.Error())
		return
	}

	if !c.registry.IsMember(c, req.CaseID) {
		c.SendError(msg.RequestID, ErrorCodeNotAuthorized, "not a member of this case", "")
		return
	}

	delivered := c.registry.BroadcastMessage(req.CaseID, c, req.Payload)
	logger.Debug("Connection %s message to case %s delivered to %d member(s)", c.ID, req.CaseID, delivered)
}

func (c *Client) handleTyping(msg *Message, typing bool) {
	var req CaseRequest
	if err := parseData(msg.Data, &req); err != nil {
		c.SendError(msg.RequestID, ErrorCodeInvalidRequest, "invalid typing request", err.Error())
		return
	}

	if !c.registry.IsMember(c, req.CaseID) {
		c.SendError(msg.RequestID, ErrorCodeNotAuthorized, "not a member of this case", "")
		return
	}

	c.registry.SetTyping(req.CaseID, c, typing)
}

package client

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"collabedit/internal/protocol"
)

// DefaultReconnectDelay is the fixed interval between reconnect attempts.
const DefaultReconnectDelay = 3 * time.Second

// ErrNotConnected is returned by Send when the connection is not open. The
// message is dropped, not queued; a resync after reconnect recovers the state.
var ErrNotConnected = errors.New("client: websocket is not connected")

// MessageHandler receives every decoded inbound message, in the exact order
// the connection delivered them. Handlers run on the read goroutine and must
// not block.
type MessageHandler func(protocol.Message)

type connState int

const (
	stateIdle connState = iota
	stateConnecting
	stateOpen
	stateClosed
)

// EditorConn owns one logical websocket connection to the collaboration
// backend. It reconnects on its own after an unexpected close and re-joins
// the last joined document once the new connection is open.
type EditorConn struct {
	url    string
	dialer *websocket.Dialer

	mu            sync.Mutex
	ws            *websocket.Conn
	state         connState
	handler       MessageHandler
	onStateChange func(connected bool)
	documentID    string
	policy        backoff.BackOff
	timer         *time.Timer
	closed        bool // user called Disconnect
}

func NewEditorConn(url string) *EditorConn {
	return &EditorConn{
		url:    url,
		dialer: websocket.DefaultDialer,
		policy: backoff.NewConstantBackOff(DefaultReconnectDelay),
	}
}

// SetReconnectDelay overrides the fixed reconnect interval. Call before
// Connect.
func (c *EditorConn) SetReconnectDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policy = backoff.NewConstantBackOff(d)
}

// OnStateChange registers a connectivity hook, invoked with true when the
// connection opens and false when it closes. Call before Connect.
func (c *EditorConn) OnStateChange(fn func(connected bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStateChange = fn
}

// Connect dials the backend and starts delivering inbound messages to
// handler. A failed dial is reported through the returned error, but retries
// are already armed: the connection comes up on its own once the backend is
// reachable, like any other non-user-initiated close.
func (c *EditorConn) Connect(ctx context.Context, handler MessageHandler) error {
	c.mu.Lock()
	if c.state == stateOpen || c.state == stateConnecting {
		c.mu.Unlock()
		return errors.New("client: already connected")
	}
	c.state = stateConnecting
	c.closed = false
	c.handler = handler
	c.mu.Unlock()

	ws, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.mu.Lock()
		c.state = stateClosed
		notify := c.onStateChange
		c.mu.Unlock()
		if notify != nil {
			notify(false)
		}
		c.scheduleReconnect()
		return err
	}

	c.mu.Lock()
	c.ws = ws
	c.state = stateOpen
	notify := c.onStateChange
	c.mu.Unlock()

	if notify != nil {
		notify(true)
	}
	go c.readLoop(ws)
	return nil
}

// Connected reports whether the connection is currently open.
func (c *EditorConn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateOpen
}

// Send serializes and transmits one message. When the connection is not open
// the message is dropped with a logged failure and ErrNotConnected.
func (c *EditorConn) Send(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(msg)
}

func (c *EditorConn) sendLocked(msg protocol.Message) error {
	if c.state != stateOpen || c.ws == nil {
		log.Printf("dropped %s: websocket is not connected", msg.MessageType())
		return ErrNotConnected
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// JoinDocument sends JoinDocument and records the id so the document is
// re-joined automatically after a reconnect.
func (c *EditorConn) JoinDocument(documentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.documentID = documentID
	return c.sendLocked(protocol.NewJoinDocument(documentID))
}

// LeaveDocument sends LeaveDocument and clears the rejoin id.
func (c *EditorConn) LeaveDocument(documentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.documentID = ""
	return c.sendLocked(protocol.NewLeaveDocument(documentID))
}

// Disconnect tears down the transport and cancels any pending reconnect.
// Idempotent.
func (c *EditorConn) Disconnect() {
	c.mu.Lock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	ws := c.ws
	c.ws = nil
	c.state = stateClosed
	c.documentID = ""
	c.handler = nil
	c.mu.Unlock()

	if ws != nil {
		ws.Close()
	}
}

func (c *EditorConn) readLoop(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.handleClose(ws)
			return
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			if !errors.Is(err, protocol.ErrUnknownType) {
				log.Printf("discarding inbound message: %v", err)
			}
			continue
		}
		c.mu.Lock()
		handler := c.handler
		c.mu.Unlock()
		if handler != nil {
			handler(msg)
		}
	}
}

func (c *EditorConn) handleClose(ws *websocket.Conn) {
	ws.Close()

	c.mu.Lock()
	if c.ws == ws {
		c.ws = nil
		c.state = stateClosed
	}
	userInitiated := c.closed
	notify := c.onStateChange
	c.mu.Unlock()

	if userInitiated {
		return
	}
	if notify != nil {
		notify(false)
	}
	c.scheduleReconnect()
}

// scheduleReconnect arms the single reconnect timer, replacing any pending
// one. Attempts continue until Disconnect.
func (c *EditorConn) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.policy.NextBackOff(), c.redial)
}

func (c *EditorConn) redial() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = stateConnecting
	c.mu.Unlock()

	ws, _, err := c.dialer.DialContext(context.Background(), c.url, nil)
	if err != nil {
		log.Printf("reconnect failed: %v", err)
		c.mu.Lock()
		c.state = stateClosed
		c.mu.Unlock()
		c.scheduleReconnect()
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ws.Close()
		return
	}
	c.ws = ws
	c.state = stateOpen
	c.policy.Reset()
	documentID := c.documentID
	notify := c.onStateChange
	c.mu.Unlock()

	if notify != nil {
		notify(true)
	}
	go c.readLoop(ws)

	// Re-enter the document that was open when the connection dropped. The
	// server answers with a fresh DocumentState, which resyncs the session.
	if documentID != "" {
		if err := c.Send(protocol.NewJoinDocument(documentID)); err != nil {
			log.Printf("rejoin %s failed: %v", documentID, err)
		}
	}
}

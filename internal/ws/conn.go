package ws

import (
	"errors"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"collabedit/internal/protocol"
	"collabedit/internal/store"
)

// Conn is one client connection to the collaboration server. Inbound
// messages are handled on the read loop; outbound messages go through a
// buffered send channel drained by the write loop.
type Conn struct {
	ws       *websocket.Conn
	hub      *Hub
	presence *Presence
	store    *store.DocumentStore

	nodeID string
	color  string
	docID  string // room currently joined, "" when none

	sendMu     sync.Mutex
	send       chan []byte
	sendClosed bool
}

func NewConn(ws *websocket.Conn, hub *Hub, presence *Presence, docs *store.DocumentStore, nodeID, color string) *Conn {
	return &Conn{
		ws:       ws,
		hub:      hub,
		presence: presence,
		store:    docs,
		nodeID:   nodeID,
		color:    color,
		send:     make(chan []byte, 32),
	}
}

// enqueue queues an encoded message for the write loop. A slow consumer's
// full queue drops the message rather than blocking the room. A broadcast can
// race the connection's teardown: the hub snapshots the room before the conn
// leaves it, so enqueue must tolerate an already-closed queue.
func (c *Conn) enqueue(data []byte) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// closeSend shuts the send queue, stopping the write loop. Idempotent.
func (c *Conn) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.send)
}

func (c *Conn) enqueueMessage(msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		log.Printf("encode %s: %v", msg.MessageType(), err)
		return
	}
	c.enqueue(data)
}

func (c *Conn) readLoop() {
	defer c.closeSend()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.leaveRoom()
			return
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			// Unknown kinds are ignored without failing the connection.
			if !errors.Is(err, protocol.ErrUnknownType) {
				log.Printf("bad message from %s: %v", c.nodeID, err)
			}
			continue
		}

		switch m := msg.(type) {
		case protocol.JoinDocument:
			c.handleJoin(m.DocumentID)
		case protocol.LeaveDocument:
			c.leaveRoom()
		case protocol.TextChange:
			c.handleTextChange(m)
		case protocol.CursorMove:
			c.handleCursorMove(m)
		default:
			// Server->client kinds arriving inbound are dropped.
		}
	}
}

func (c *Conn) writeLoop() {
	for data := range c.send {
		if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func (c *Conn) handleJoin(docID string) {
	doc, err := c.store.Get(docID, c.nodeID)
	if err != nil {
		c.enqueueMessage(protocol.Error{Type: protocol.TypeError, Message: err.Error()})
		return
	}

	// Joining a new document while in another room switches rooms.
	if c.docID != "" && c.docID != docID {
		c.leaveRoom()
	}
	c.docID = docID

	c.hub.Join(docID, c)
	c.presence.AddMember(docID, c.nodeID, c.color)

	c.enqueueMessage(protocol.DocumentState{
		Type:     protocol.TypeDocumentState,
		Document: doc,
		Cursors:  c.presence.Cursors(docID),
	})
	c.hub.Broadcast(docID, protocol.UserJoined{
		Type:  protocol.TypeUserJoined,
		User:  c.nodeID,
		Color: c.color,
	}, c)
}

func (c *Conn) handleTextChange(m protocol.TextChange) {
	if c.docID == "" {
		return
	}
	if err := c.store.ApplyText(c.docID, m.Position, m.Delete, m.Insert); err != nil {
		c.enqueueMessage(protocol.Error{Type: protocol.TypeError, Message: err.Error()})
		return
	}
	c.hub.Broadcast(c.docID, protocol.TextUpdate{
		Type:     protocol.TypeTextUpdate,
		User:     c.nodeID,
		Position: m.Position,
		Delete:   m.Delete,
		Insert:   m.Insert,
	}, c)
}

func (c *Conn) handleCursorMove(m protocol.CursorMove) {
	if c.docID == "" {
		return
	}
	c.presence.SetCursor(c.docID, c.nodeID, m.Position, c.color)
	c.hub.Broadcast(c.docID, protocol.CursorUpdate{
		Type:     protocol.TypeCursorUpdate,
		User:     c.nodeID,
		Position: m.Position,
	}, c)
}

// leaveRoom removes the connection from its current room, clears its
// presence, and announces the departure. Safe to call when not in a room.
func (c *Conn) leaveRoom() {
	if c.docID == "" {
		return
	}
	docID := c.docID
	c.docID = ""

	c.presence.RemoveMember(docID, c.nodeID)
	c.hub.Leave(docID, c)
	c.hub.Broadcast(docID, protocol.UserLeft{
		Type: protocol.TypeUserLeft,
		User: c.nodeID,
	}, c)
}

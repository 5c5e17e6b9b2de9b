package ws

import (
	"log"
	"sync"

	"collabedit/internal/protocol"
)

// Hub tracks which connections are in which document room and fans messages
// out to them.
type Hub struct {
	mu sync.RWMutex
	// docID -> set of connections. A set of conns rather than node ids: one
	// node can hold several connections (tabs), and fan-out is per connection.
	rooms map[string]map[*Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Conn]struct{})}
}

// Join adds a connection to a document room.
func (h *Hub) Join(docID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[docID] == nil {
		h.rooms[docID] = make(map[*Conn]struct{})
	}
	h.rooms[docID][c] = struct{}{}
}

// Leave removes a connection from a document room.
func (h *Hub) Leave(docID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[docID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, docID)
		}
	}
}

// Broadcast sends msg to every connection in the room except exclude. The
// sender of an operation is excluded so clients never see their own edits
// echoed back.
func (h *Hub) Broadcast(docID string, msg protocol.Message, exclude *Conn) {
	data, err := protocol.Encode(msg)
	if err != nil {
		log.Printf("broadcast encode %s: %v", msg.MessageType(), err)
		return
	}

	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.rooms[docID]))
	for c := range h.rooms[docID] {
		if c != exclude {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.enqueue(data)
	}
}

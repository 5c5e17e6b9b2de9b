package ws

import (
	"sync"

	"collabedit/internal/protocol"
)

// Presence is the server-side registry of connected members and their
// cursors, per document. In-process state: the reference server is a single
// process, so there is no cross-instance presence to share.
type Presence struct {
	mu      sync.Mutex
	members map[string]map[string]string                  // docID -> node -> color
	cursors map[string]map[string]protocol.CursorPosition // docID -> node -> cursor
}

func NewPresence() *Presence {
	return &Presence{
		members: make(map[string]map[string]string),
		cursors: make(map[string]map[string]protocol.CursorPosition),
	}
}

// AddMember records node as connected to docID with its session color.
// A duplicate join overwrites the previous entry.
func (p *Presence) AddMember(docID, node, color string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.members[docID] == nil {
		p.members[docID] = make(map[string]string)
	}
	p.members[docID][node] = color
}

// RemoveMember drops node's membership and cursor for docID.
func (p *Presence) RemoveMember(docID, node string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.members[docID], node)
	delete(p.cursors[docID], node)
}

// SetCursor upserts node's cursor for docID.
func (p *Presence) SetCursor(docID, node string, position int, color string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cursors[docID] == nil {
		p.cursors[docID] = make(map[string]protocol.CursorPosition)
	}
	p.cursors[docID][node] = protocol.CursorPosition{User: node, Position: position, Color: color}
}

// Cursors returns a copy of the cursor map for docID, as sent in
// DocumentState.
func (p *Presence) Cursors(docID string) map[string]protocol.CursorPosition {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]protocol.CursorPosition, len(p.cursors[docID]))
	for node, cur := range p.cursors[docID] {
		out[node] = cur
	}
	return out
}

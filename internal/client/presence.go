package client

import (
	"collabedit/internal/protocol"
)

// Participant is a connected collaborator as known to the local session. The
// local user is never tracked here; it is rendered separately.
type Participant struct {
	Color string `json:"color"`
}

// Presence holds the participant and cursor maps for one session. It is not
// safe for concurrent use on its own; the owning Session serializes access.
type Presence struct {
	participants map[string]Participant
	cursors      map[string]protocol.CursorPosition
}

func NewPresence() *Presence {
	return &Presence{
		participants: make(map[string]Participant),
		cursors:      make(map[string]protocol.CursorPosition),
	}
}

// Reset drops all tracked participants and cursors, as happens when a
// document is opened or closed.
func (p *Presence) Reset() {
	p.participants = make(map[string]Participant)
	p.cursors = make(map[string]protocol.CursorPosition)
}

// Join records a participant and its session color. Re-joining overwrites.
func (p *Presence) Join(user, color string) {
	p.participants[user] = Participant{Color: color}
}

// Leave removes a participant and its cursor.
func (p *Presence) Leave(user string) {
	delete(p.participants, user)
	delete(p.cursors, user)
}

// SetCursor upserts a participant's cursor, inheriting the color assigned at
// join time. A cursor can arrive before its UserJoined; it then gets the
// default color until the join is observed.
func (p *Presence) SetCursor(user string, position int) {
	color := protocol.DefaultCursorColor
	if participant, ok := p.participants[user]; ok {
		color = participant.Color
	}
	p.cursors[user] = protocol.CursorPosition{User: user, Position: position, Color: color}
}

// ReplaceCursors swaps in an authoritative cursor map wholesale (resync).
func (p *Presence) ReplaceCursors(cursors map[string]protocol.CursorPosition) {
	p.cursors = make(map[string]protocol.CursorPosition, len(cursors))
	for user, cur := range cursors {
		p.cursors[user] = cur
	}
}

// Participants returns a copy of the participant map.
func (p *Presence) Participants() map[string]Participant {
	out := make(map[string]Participant, len(p.participants))
	for user, participant := range p.participants {
		out[user] = participant
	}
	return out
}

// Cursors returns a copy of the cursor map.
func (p *Presence) Cursors() map[string]protocol.CursorPosition {
	out := make(map[string]protocol.CursorPosition, len(p.cursors))
	for user, cur := range p.cursors {
		out[user] = cur
	}
	return out
}

// HasParticipant reports whether user is currently tracked as connected.
func (p *Presence) HasParticipant(user string) bool {
	_, ok := p.participants[user]
	return ok
}

// OfflineMembers returns the document-declared members that are not currently
// connected. Purely a display computation; nothing is stored.
func (p *Presence) OfflineMembers(doc *protocol.Document) []string {
	if doc == nil {
		return nil
	}
	var offline []string
	for _, member := range doc.Participants {
		if _, ok := p.participants[member]; !ok {
			offline = append(offline, member)
		}
	}
	return offline
}

package client

import (
	"context"
	"sync"

	"collabedit/internal/protocol"
)

// DocumentFetcher retrieves the authoritative document snapshot on open.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, id string) (protocol.Document, error)
}

// Sender is the connection surface the session needs. *EditorConn satisfies
// it; tests substitute a recorder.
type Sender interface {
	Send(msg protocol.Message) error
	JoinDocument(documentID string) error
	LeaveDocument(documentID string) error
	Connected() bool
}

// Session is the state machine for editing one document: it owns the local
// document snapshot and the presence maps, merges local and remote edits, and
// resynchronizes from DocumentState after a (re)join.
//
// Consistency model: edits are applied by position with no causal ordering,
// so all clients converge only when they process the same message sequence.
// Concurrent edits from different participants arriving in different orders
// can diverge until the next resync. This is inherent to the protocol.
type Session struct {
	conn      Sender
	fetcher   DocumentFetcher
	localUser string

	// dropSelfUpdates discards TextUpdate/CursorUpdate whose user is the
	// local participant. Enable against backends that echo the sender's own
	// changes back; the reference server excludes the sender from fan-out,
	// so the default is off.
	dropSelfUpdates bool

	mu       sync.RWMutex
	doc      *protocol.Document
	presence *Presence
	errMsg   string
}

func NewSession(conn Sender, fetcher DocumentFetcher, localUser string) *Session {
	return &Session{
		conn:      conn,
		fetcher:   fetcher,
		localUser: localUser,
		presence:  NewPresence(),
	}
}

// DropSelfUpdates sets the echo policy. Call before joining a document.
func (s *Session) DropSelfUpdates(drop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropSelfUpdates = drop
}

// Open fetches the document snapshot, resets presence, and joins the
// document room if the connection is up. A failed fetch leaves any previously
// open document untouched.
func (s *Session) Open(ctx context.Context, documentID string) error {
	doc, err := s.fetcher.FetchDocument(ctx, documentID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.doc = &doc
	s.presence.Reset()
	s.mu.Unlock()

	if s.conn.Connected() {
		if err := s.conn.JoinDocument(documentID); err != nil {
			// The join is recovered by the automatic rejoin on reconnect.
			return nil
		}
	}
	return nil
}

// Close leaves the document room and clears all local state. Safe to call
// when no document is open.
func (s *Session) Close() {
	s.mu.Lock()
	doc := s.doc
	s.doc = nil
	s.presence.Reset()
	s.mu.Unlock()

	if doc != nil && s.conn.Connected() {
		s.conn.LeaveDocument(doc.ID)
	}
}

// ApplyLocalEdit sends a TextChange and then applies it to the local content
// (optimistic echo, never rolled back). The edit is silently dropped when no
// document is open or the connection is down; the next resync reconciles.
// Send precedes the local apply so a failed send leaves content unmodified.
func (s *Session) ApplyLocalEdit(position, deleteCount int, insert string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil || !s.conn.Connected() {
		return
	}
	if err := s.conn.Send(protocol.NewTextChange(position, deleteCount, insert)); err != nil {
		return
	}
	s.doc.Content = protocol.ApplyText(s.doc.Content, position, deleteCount, insert)
}

// ApplyLocalCursorMove reports the local cursor position. The local cursor is
// rendered separately, so no local state changes.
func (s *Session) ApplyLocalCursorMove(position int) {
	s.mu.RLock()
	open := s.doc != nil
	s.mu.RUnlock()
	if !open || !s.conn.Connected() {
		return
	}
	s.conn.Send(protocol.NewCursorMove(position))
}

// HandleMessage is the inbound reducer. It is invoked from the connection's
// read goroutine, one message at a time, in delivery order.
func (s *Session) HandleMessage(msg protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch m := msg.(type) {
	case protocol.DocumentState:
		// Resynchronization point: the snapshot supersedes all local state,
		// including optimistic edits the server has not echoed back.
		doc := m.Document
		s.doc = &doc
		s.presence.ReplaceCursors(m.Cursors)

	case protocol.UserJoined:
		s.presence.Join(m.User, m.Color)

	case protocol.UserLeft:
		s.presence.Leave(m.User)

	case protocol.TextUpdate:
		if s.dropSelfUpdates && m.User == s.localUser {
			return
		}
		if s.doc != nil {
			s.doc.Content = protocol.ApplyText(s.doc.Content, m.Position, m.Delete, m.Insert)
		}

	case protocol.CursorUpdate:
		if s.dropSelfUpdates && m.User == s.localUser {
			return
		}
		s.presence.SetCursor(m.User, m.Position)

	case protocol.Error:
		s.errMsg = m.Message
	}
}

// Document returns a copy of the current document, or nil when none is open.
func (s *Session) Document() *protocol.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return nil
	}
	doc := *s.doc
	doc.Participants = append([]string(nil), s.doc.Participants...)
	return &doc
}

// Content returns the current materialized content, or "" when no document
// is open.
func (s *Session) Content() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return ""
	}
	return s.doc.Content
}

func (s *Session) Cursors() map[string]protocol.CursorPosition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.presence.Cursors()
}

func (s *Session) Participants() map[string]Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.presence.Participants()
}

// OfflineMembers lists document members that are not currently connected.
func (s *Session) OfflineMembers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.presence.OfflineMembers(s.doc)
}

// Err returns the last backend-reported error message, if any. Non-fatal and
// dismissible.
func (s *Session) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

func (s *Session) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = ""
}

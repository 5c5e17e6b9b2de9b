package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"collabedit/internal/protocol"
	"collabedit/internal/textbuf"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrAccessDenied = errors.New("access denied")
	ErrNotHost      = errors.New("only the host can send invites")
)

// DocumentStore is the authoritative in-memory document registry of the
// reference server. Persistence is deliberately absent; documents live for
// the process lifetime.
type DocumentStore struct {
	mu      sync.RWMutex
	docs    map[string]*storedDocument
	invites map[string][]string // node id -> pending document ids
	now     func() time.Time
}

type storedDocument struct {
	meta protocol.Document // content is materialized from buf on read
	buf  textbuf.Buffer
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs:    make(map[string]*storedDocument),
		invites: make(map[string][]string),
		now:     time.Now,
	}
}

// Create registers a new empty document hosted by node.
func (s *DocumentStore) Create(node, title string) protocol.Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC().Format(time.RFC3339)
	d := &storedDocument{
		meta: protocol.Document{
			ID:           uuid.NewString(),
			Title:        title,
			Host:         node,
			Participants: []string{node},
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		buf: textbuf.NewPieceTable(""),
	}
	s.docs[d.meta.ID] = d
	return snapshot(d)
}

// Get returns the document snapshot if node is its host or a participant.
func (s *DocumentStore) Get(id, node string) (protocol.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.docs[id]
	if !ok {
		return protocol.Document{}, ErrNotFound
	}
	if !hasAccess(d, node) {
		return protocol.Document{}, ErrAccessDenied
	}
	return snapshot(d), nil
}

// List returns every document node hosts or participates in.
func (s *DocumentStore) List(node string) []protocol.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []protocol.Document{}
	for _, d := range s.docs {
		if hasAccess(d, node) {
			out = append(out, snapshot(d))
		}
	}
	return out
}

// ApplyText applies a position-based edit to the document content and bumps
// updated_at. Out-of-bounds fields are clamped by the buffer.
func (s *DocumentStore) ApplyText(id string, position, deleteCount int, insert string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.docs[id]
	if !ok {
		return ErrNotFound
	}
	d.buf.Apply(position, deleteCount, insert)
	d.meta.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	return nil
}

// Invite adds target to the document's participants and records a pending
// invite for it. Only the host may invite; inviting an existing participant
// is a no-op.
func (s *DocumentStore) Invite(id, from, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.docs[id]
	if !ok {
		return ErrNotFound
	}
	if d.meta.Host != from {
		return ErrNotHost
	}
	for _, p := range d.meta.Participants {
		if p == target {
			return nil
		}
	}
	d.meta.Participants = append(d.meta.Participants, target)
	s.invites[target] = append(s.invites[target], id)
	return nil
}

// PendingInvites returns the document ids node has been invited to.
func (s *DocumentStore) PendingInvites(node string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.invites[node]...)
}

func snapshot(d *storedDocument) protocol.Document {
	doc := d.meta
	doc.Content = d.buf.String()
	doc.Participants = append([]string(nil), d.meta.Participants...)
	return doc
}

func hasAccess(d *storedDocument, node string) bool {
	if d.meta.Host == node {
		return true
	}
	for _, p := range d.meta.Participants {
		if p == node {
			return true
		}
	}
	return false
}

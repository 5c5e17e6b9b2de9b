package client

import (
	"context"
	"log"
	"sync"
	"time"

	"collabedit/internal/protocol"
)

// DocumentAPI is the document store service consumed by the facade. The
// session itself depends only on the FetchDocument subset.
type DocumentAPI interface {
	DocumentFetcher
	CreateDocument(ctx context.Context, title string) (protocol.Document, error)
	ListDocuments(ctx context.Context) ([]protocol.Document, error)
	SendInvite(ctx context.Context, documentID, target string) error
	ListPendingInvites(ctx context.Context) ([]string, error)
}

// State is the snapshot the facade exposes to a presentation layer.
type State struct {
	Document       *protocol.Document
	WSConnected    bool
	Cursors        map[string]protocol.CursorPosition
	Participants   map[string]Participant
	Documents      []protocol.Document
	PendingInvites []string
	Err            string
}

// Editor coordinates the document session lifecycle with user intents and
// surfaces state for rendering. Thin orchestration; the consistency logic
// lives in Session.
type Editor struct {
	api      DocumentAPI
	conn     *EditorConn
	session  *Session
	debounce *CursorDebouncer

	mu          sync.RWMutex
	wsConnected bool
	documents   []protocol.Document
	invites     []string
	errMsg      string
}

func NewEditor(api DocumentAPI, conn *EditorConn, localUser string) *Editor {
	e := &Editor{
		api:      api,
		conn:     conn,
		session:  NewSession(conn, api, localUser),
		debounce: NewCursorDebouncer(DefaultCursorThreshold, DefaultCursorInterval),
	}
	conn.OnStateChange(func(connected bool) {
		e.mu.Lock()
		e.wsConnected = connected
		e.mu.Unlock()
	})
	return e
}

// Session exposes the underlying document session, e.g. to set the echo
// policy before joining.
func (e *Editor) Session() *Session { return e.session }

// SetCursorDebounce overrides the cursor reporting threshold and minimum
// interval.
func (e *Editor) SetCursorDebounce(threshold int, interval time.Duration) {
	e.mu.Lock()
	e.debounce = NewCursorDebouncer(threshold, interval)
	e.mu.Unlock()
}

func (e *Editor) debouncer() *CursorDebouncer {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.debounce
}

// Initialize loads the document list and pending invites, then connects the
// websocket. List and invite failures are surfaced; a connect failure only
// leaves the connectivity indicator down (the user can retry).
func (e *Editor) Initialize(ctx context.Context) {
	e.FetchDocuments(ctx)
	e.FetchInvites(ctx)
	if err := e.conn.Connect(ctx, e.session.HandleMessage); err != nil {
		log.Printf("websocket connect failed: %v", err)
	}
}

// Shutdown tears down the websocket connection.
func (e *Editor) Shutdown() {
	e.conn.Disconnect()
	e.mu.Lock()
	e.wsConnected = false
	e.mu.Unlock()
}

// FetchDocuments refreshes the document list.
func (e *Editor) FetchDocuments(ctx context.Context) {
	docs, err := e.api.ListDocuments(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.errMsg = err.Error()
		return
	}
	e.documents = docs
}

// CreateDocument creates a document and opens it.
func (e *Editor) CreateDocument(ctx context.Context, title string) {
	doc, err := e.api.CreateDocument(ctx, title)
	if err != nil {
		e.setError(err.Error())
		return
	}
	e.mu.Lock()
	e.documents = append(e.documents, doc)
	e.mu.Unlock()
	e.OpenDocument(ctx, doc.ID)
}

// OpenDocument opens a session on the given document. On failure the
// previously open document, if any, stays active.
func (e *Editor) OpenDocument(ctx context.Context, documentID string) {
	if err := e.session.Open(ctx, documentID); err != nil {
		e.setError(err.Error())
		return
	}
	e.debouncer().Reset()
}

// CloseDocument leaves the current document.
func (e *Editor) CloseDocument() {
	e.session.Close()
}

// HandleTextChange applies a local edit optimistically and sends it.
func (e *Editor) HandleTextChange(position, deleteCount int, insert string) {
	e.session.ApplyLocalEdit(position, deleteCount, insert)
}

// HandleCursorMove reports the local cursor position, debounced.
func (e *Editor) HandleCursorMove(position int) {
	if e.debouncer().ShouldSend(position) {
		e.session.ApplyLocalCursorMove(position)
	}
}

// SendInvite invites target to the open document, then re-opens it so the
// refreshed participant list is visible.
func (e *Editor) SendInvite(ctx context.Context, target string) {
	doc := e.session.Document()
	if doc == nil {
		return
	}
	if err := e.api.SendInvite(ctx, doc.ID, target); err != nil {
		e.setError(err.Error())
		return
	}
	e.OpenDocument(ctx, doc.ID)
}

// FetchInvites refreshes the pending invite list.
func (e *Editor) FetchInvites(ctx context.Context) {
	invites, err := e.api.ListPendingInvites(ctx)
	if err != nil {
		log.Printf("fetch invites failed: %v", err)
		return
	}
	e.mu.Lock()
	e.invites = invites
	e.mu.Unlock()
}

// WSConnected reports the connectivity indicator.
func (e *Editor) WSConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.wsConnected
}

// Err returns the current user-visible error, if any: fetch errors first,
// then backend-reported ones.
func (e *Editor) Err() string {
	e.mu.RLock()
	msg := e.errMsg
	e.mu.RUnlock()
	if msg != "" {
		return msg
	}
	return e.session.Err()
}

// ClearError dismisses the current error.
func (e *Editor) ClearError() {
	e.mu.Lock()
	e.errMsg = ""
	e.mu.Unlock()
	e.session.ClearError()
}

// Snapshot captures the full presentation state.
func (e *Editor) Snapshot() State {
	e.mu.RLock()
	docs := append([]protocol.Document(nil), e.documents...)
	invites := append([]string(nil), e.invites...)
	connected := e.wsConnected
	e.mu.RUnlock()

	return State{
		Document:       e.session.Document(),
		WSConnected:    connected,
		Cursors:        e.session.Cursors(),
		Participants:   e.session.Participants(),
		Documents:      docs,
		PendingInvites: invites,
		Err:            e.Err(),
	}
}

func (e *Editor) setError(msg string) {
	e.mu.Lock()
	e.errMsg = msg
	e.mu.Unlock()
}

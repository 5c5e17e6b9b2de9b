package client

import (
	"context"
	"errors"
	"testing"

	"collabedit/internal/protocol"
)

type fakeConn struct {
	connected bool
	sendErr   error
	sent      []protocol.Message
}

func (f *fakeConn) Send(msg protocol.Message) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeConn) JoinDocument(id string) error  { return f.Send(protocol.NewJoinDocument(id)) }
func (f *fakeConn) LeaveDocument(id string) error { return f.Send(protocol.NewLeaveDocument(id)) }
func (f *fakeConn) Connected() bool               { return f.connected }

func (f *fakeConn) sentOfType(msgType string) []protocol.Message {
	var out []protocol.Message
	for _, m := range f.sent {
		if m.MessageType() == msgType {
			out = append(out, m)
		}
	}
	return out
}

type fakeFetcher struct {
	docs map[string]protocol.Document
	err  error
}

func (f *fakeFetcher) FetchDocument(ctx context.Context, id string) (protocol.Document, error) {
	if f.err != nil {
		return protocol.Document{}, f.err
	}
	doc, ok := f.docs[id]
	if !ok {
		return protocol.Document{}, errors.New("document not found")
	}
	return doc, nil
}

func newTestSession(content string) (*Session, *fakeConn) {
	conn := &fakeConn{connected: true}
	fetcher := &fakeFetcher{docs: map[string]protocol.Document{
		"d1": {ID: "d1", Title: "notes", Content: content, Host: "alice.os", Participants: []string{"alice.os"}},
	}}
	s := NewSession(conn, fetcher, "alice.os")
	if err := s.Open(context.Background(), "d1"); err != nil {
		panic(err)
	}
	return s, conn
}

func TestSessionOpenFetchesSnapshotAndJoins(t *testing.T) {
	s, conn := newTestSession("hello")
	if got := s.Content(); got != "hello" {
		t.Fatalf("Content() = %q, want %q", got, "hello")
	}
	joins := conn.sentOfType(protocol.TypeJoinDocument)
	if len(joins) != 1 {
		t.Fatalf("sent %d JoinDocument, want 1", len(joins))
	}
	if join := joins[0].(protocol.JoinDocument); join.DocumentID != "d1" {
		t.Fatalf("JoinDocument.DocumentID = %q, want %q", join.DocumentID, "d1")
	}
}

func TestSessionOpenWhileDisconnectedSkipsJoin(t *testing.T) {
	conn := &fakeConn{connected: false}
	fetcher := &fakeFetcher{docs: map[string]protocol.Document{"d1": {ID: "d1", Content: "x"}}}
	s := NewSession(conn, fetcher, "alice.os")
	if err := s.Open(context.Background(), "d1"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if len(conn.sent) != 0 {
		t.Fatalf("sent %d messages while disconnected, want 0", len(conn.sent))
	}
	if got := s.Content(); got != "x" {
		t.Fatalf("Content() = %q, want %q", got, "x")
	}
}

func TestSessionOpenFetchErrorKeepsPrior(t *testing.T) {
	s, _ := newTestSession("hello")
	s.fetcher.(*fakeFetcher).err = errors.New("store unavailable")
	if err := s.Open(context.Background(), "d2"); err == nil {
		t.Fatal("Open() error = nil, want fetch error")
	}
	doc := s.Document()
	if doc == nil || doc.ID != "d1" {
		t.Fatalf("Document() = %+v, want d1 still open", doc)
	}
	if got := s.Content(); got != "hello" {
		t.Fatalf("Content() = %q, want %q", got, "hello")
	}
}

func TestSessionLocalEditEndToEnd(t *testing.T) {
	s, conn := newTestSession("hello")

	s.ApplyLocalEdit(5, 0, " world")
	if got := s.Content(); got != "hello world" {
		t.Fatalf("Content() = %q, want %q", got, "hello world")
	}
	changes := conn.sentOfType(protocol.TypeTextChange)
	if len(changes) != 1 {
		t.Fatalf("sent %d TextChange, want 1", len(changes))
	}
	change := changes[0].(protocol.TextChange)
	if change.Position != 5 || change.Delete != 0 || change.Insert != " world" {
		t.Fatalf("TextChange = %+v", change)
	}

	s.HandleMessage(protocol.TextUpdate{Type: protocol.TypeTextUpdate, User: "bob.os", Position: 0, Delete: 5, Insert: "HELLO"})
	if got := s.Content(); got != "HELLO world" {
		t.Fatalf("Content() = %q, want %q", got, "HELLO world")
	}
}

func TestSessionLocalEditRequiresConnection(t *testing.T) {
	s, conn := newTestSession("hello")
	conn.connected = false

	s.ApplyLocalEdit(0, 0, "x")
	if got := s.Content(); got != "hello" {
		t.Fatalf("Content() = %q, want unmodified %q", got, "hello")
	}
	if len(conn.sentOfType(protocol.TypeTextChange)) != 0 {
		t.Fatal("TextChange sent while disconnected")
	}
}

func TestSessionLocalEditRequiresOpenDocument(t *testing.T) {
	conn := &fakeConn{connected: true}
	s := NewSession(conn, &fakeFetcher{}, "alice.os")

	s.ApplyLocalEdit(0, 0, "x")
	if len(conn.sent) != 0 {
		t.Fatal("edit sent with no document open")
	}
}

func TestSessionLocalEditSendFailureLeavesContent(t *testing.T) {
	s, conn := newTestSession("hello")
	conn.sendErr = errors.New("write: broken pipe")

	s.ApplyLocalEdit(5, 0, " world")
	if got := s.Content(); got != "hello" {
		t.Fatalf("Content() = %q, want unmodified %q", got, "hello")
	}
}

func TestSessionResyncOverwrites(t *testing.T) {
	s, _ := newTestSession("hello")
	s.HandleMessage(protocol.CursorUpdate{Type: protocol.TypeCursorUpdate, User: "bob.os", Position: 2})
	s.ApplyLocalEdit(0, 0, "local ")

	s.HandleMessage(protocol.DocumentState{
		Type:     protocol.TypeDocumentState,
		Document: protocol.Document{ID: "d1", Content: "authoritative"},
		Cursors: map[string]protocol.CursorPosition{
			"carol.os": {User: "carol.os", Position: 4, Color: "#45B7D1"},
		},
	})

	if got := s.Content(); got != "authoritative" {
		t.Fatalf("Content() = %q, want full overwrite", got)
	}
	cursors := s.Cursors()
	if len(cursors) != 1 {
		t.Fatalf("cursors = %v, want only carol.os", cursors)
	}
	if cur := cursors["carol.os"]; cur.Position != 4 {
		t.Fatalf("cursor = %+v", cur)
	}
}

func TestSessionPresenceJoinLeave(t *testing.T) {
	s, _ := newTestSession("")
	s.HandleMessage(protocol.UserJoined{Type: protocol.TypeUserJoined, User: "bob.os", Color: "#4ECDC4"})
	s.HandleMessage(protocol.CursorUpdate{Type: protocol.TypeCursorUpdate, User: "bob.os", Position: 1})

	if _, ok := s.Participants()["bob.os"]; !ok {
		t.Fatal("bob.os missing after UserJoined")
	}

	s.HandleMessage(protocol.UserLeft{Type: protocol.TypeUserLeft, User: "bob.os"})
	if _, ok := s.Participants()["bob.os"]; ok {
		t.Fatal("bob.os still in participants after UserLeft")
	}
	if _, ok := s.Cursors()["bob.os"]; ok {
		t.Fatal("bob.os still in cursors after UserLeft")
	}
}

func TestSessionCursorBeforeJoinGetsDefaultColor(t *testing.T) {
	s, _ := newTestSession("")
	s.HandleMessage(protocol.CursorUpdate{Type: protocol.TypeCursorUpdate, User: "bob.os", Position: 3})

	cur, ok := s.Cursors()["bob.os"]
	if !ok {
		t.Fatal("cursor missing")
	}
	if cur.Color != protocol.DefaultCursorColor {
		t.Fatalf("color = %q, want default %q", cur.Color, protocol.DefaultCursorColor)
	}
}

func TestSessionCursorInheritsJoinColor(t *testing.T) {
	s, _ := newTestSession("")
	s.HandleMessage(protocol.UserJoined{Type: protocol.TypeUserJoined, User: "bob.os", Color: "#4ECDC4"})
	s.HandleMessage(protocol.CursorUpdate{Type: protocol.TypeCursorUpdate, User: "bob.os", Position: 3})

	if cur := s.Cursors()["bob.os"]; cur.Color != "#4ECDC4" {
		t.Fatalf("color = %q, want %q", cur.Color, "#4ECDC4")
	}
}

func TestSessionSelfUpdateApplied(t *testing.T) {
	// Default policy: every TextUpdate applies, including the local user's
	// own (backends that exclude the sender never deliver one).
	s, _ := newTestSession("hello")
	s.HandleMessage(protocol.TextUpdate{Type: protocol.TypeTextUpdate, User: "alice.os", Position: 5, Delete: 0, Insert: "!"})
	if got := s.Content(); got != "hello!" {
		t.Fatalf("Content() = %q, want %q", got, "hello!")
	}
}

func TestSessionSelfUpdateDropped(t *testing.T) {
	// Against a backend that echoes the sender, dropping self updates
	// prevents double-application of the optimistic local edit.
	s, _ := newTestSession("hello")
	s.DropSelfUpdates(true)

	s.ApplyLocalEdit(5, 0, "!")
	s.HandleMessage(protocol.TextUpdate{Type: protocol.TypeTextUpdate, User: "alice.os", Position: 5, Delete: 0, Insert: "!"})
	if got := s.Content(); got != "hello!" {
		t.Fatalf("Content() = %q, want single application %q", got, "hello!")
	}

	s.HandleMessage(protocol.TextUpdate{Type: protocol.TypeTextUpdate, User: "bob.os", Position: 6, Delete: 0, Insert: "?"})
	if got := s.Content(); got != "hello!?" {
		t.Fatalf("Content() = %q, want remote edits still applied", got)
	}
}

func TestSessionErrorSurfaced(t *testing.T) {
	s, _ := newTestSession("hello")
	s.HandleMessage(protocol.Error{Type: protocol.TypeError, Message: "Access denied"})

	if got := s.Err(); got != "Access denied" {
		t.Fatalf("Err() = %q, want %q", got, "Access denied")
	}
	if got := s.Content(); got != "hello" {
		t.Fatalf("Content() = %q, error must not alter document state", got)
	}
	s.ClearError()
	if got := s.Err(); got != "" {
		t.Fatalf("Err() = %q after ClearError, want empty", got)
	}
}

func TestSessionCloseSendsLeave(t *testing.T) {
	s, conn := newTestSession("hello")
	s.Close()

	leaves := conn.sentOfType(protocol.TypeLeaveDocument)
	if len(leaves) != 1 {
		t.Fatalf("sent %d LeaveDocument, want 1", len(leaves))
	}
	if s.Document() != nil {
		t.Fatal("document still open after Close")
	}
	if len(s.Cursors()) != 0 || len(s.Participants()) != 0 {
		t.Fatal("presence not cleared after Close")
	}
}

func TestSessionCloseWithoutDocument(t *testing.T) {
	conn := &fakeConn{connected: true}
	s := NewSession(conn, &fakeFetcher{}, "alice.os")
	s.Close() // must be a no-op
	if len(conn.sent) != 0 {
		t.Fatalf("sent %d messages on closing an idle session, want 0", len(conn.sent))
	}
}

func TestSessionOfflineMembers(t *testing.T) {
	conn := &fakeConn{connected: true}
	fetcher := &fakeFetcher{docs: map[string]protocol.Document{
		"d1": {ID: "d1", Participants: []string{"alice.os", "bob.os", "carol.os"}},
	}}
	s := NewSession(conn, fetcher, "alice.os")
	if err := s.Open(context.Background(), "d1"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	s.HandleMessage(protocol.UserJoined{Type: protocol.TypeUserJoined, User: "bob.os", Color: "#4ECDC4"})

	got := s.OfflineMembers()
	want := map[string]bool{"alice.os": true, "carol.os": true}
	if len(got) != len(want) {
		t.Fatalf("OfflineMembers() = %v, want alice.os and carol.os", got)
	}
	for _, member := range got {
		if !want[member] {
			t.Fatalf("OfflineMembers() contains %q", member)
		}
	}
}

func TestSessionCursorMoveSendsOnly(t *testing.T) {
	s, conn := newTestSession("hello")
	s.ApplyLocalCursorMove(3)

	moves := conn.sentOfType(protocol.TypeCursorMove)
	if len(moves) != 1 {
		t.Fatalf("sent %d CursorMove, want 1", len(moves))
	}
	if len(s.Cursors()) != 0 {
		t.Fatal("local cursor must not appear in the cursor map")
	}
}

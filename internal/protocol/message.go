package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message type tags. The wire format is a closed set of JSON records
// discriminated by the "type" field.
const (
	// Client -> server
	TypeJoinDocument  = "JoinDocument"
	TypeLeaveDocument = "LeaveDocument"
	TypeTextChange    = "TextChange"
	TypeCursorMove    = "CursorMove"

	// Server -> client
	TypeDocumentState = "DocumentState"
	TypeUserJoined    = "UserJoined"
	TypeUserLeft      = "UserLeft"
	TypeTextUpdate    = "TextUpdate"
	TypeCursorUpdate  = "CursorUpdate"
	TypeError         = "Error"
)

// ErrUnknownType is returned by Decode for a message kind outside the closed
// set. Callers drop such messages without failing the connection.
var ErrUnknownType = errors.New("protocol: unknown message type")

type Document struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	Host         string   `json:"host"`
	Participants []string `json:"participants"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

type CursorPosition struct {
	User     string `json:"user"`
	Position int    `json:"position"`
	Color    string `json:"color"`
}

// Message is one wire message, outbound or inbound.
type Message interface {
	MessageType() string
}

type JoinDocument struct {
	Type       string `json:"type"`
	DocumentID string `json:"document_id"`
}

type LeaveDocument struct {
	Type       string `json:"type"`
	DocumentID string `json:"document_id"`
}

type TextChange struct {
	Type     string `json:"type"`
	Position int    `json:"position"`
	Delete   int    `json:"delete"`
	Insert   string `json:"insert"`
}

type CursorMove struct {
	Type     string `json:"type"`
	Position int    `json:"position"`
}

type DocumentState struct {
	Type     string                    `json:"type"`
	Document Document                  `json:"document"`
	Cursors  map[string]CursorPosition `json:"cursors"`
}

type UserJoined struct {
	Type  string `json:"type"`
	User  string `json:"user"`
	Color string `json:"color"`
}

type UserLeft struct {
	Type string `json:"type"`
	User string `json:"user"`
}

type TextUpdate struct {
	Type     string `json:"type"`
	User     string `json:"user"`
	Position int    `json:"position"`
	Delete   int    `json:"delete"`
	Insert   string `json:"insert"`
}

type CursorUpdate struct {
	Type     string `json:"type"`
	User     string `json:"user"`
	Position int    `json:"position"`
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (m JoinDocument) MessageType() string  { return m.Type }
func (m LeaveDocument) MessageType() string { return m.Type }
func (m TextChange) MessageType() string    { return m.Type }
func (m CursorMove) MessageType() string    { return m.Type }
func (m DocumentState) MessageType() string { return m.Type }
func (m UserJoined) MessageType() string    { return m.Type }
func (m UserLeft) MessageType() string      { return m.Type }
func (m TextUpdate) MessageType() string    { return m.Type }
func (m CursorUpdate) MessageType() string  { return m.Type }
func (m Error) MessageType() string         { return m.Type }

func NewJoinDocument(id string) JoinDocument   { return JoinDocument{Type: TypeJoinDocument, DocumentID: id} }
func NewLeaveDocument(id string) LeaveDocument { return LeaveDocument{Type: TypeLeaveDocument, DocumentID: id} }

func NewTextChange(position, deleteCount int, insert string) TextChange {
	return TextChange{Type: TypeTextChange, Position: position, Delete: deleteCount, Insert: insert}
}

func NewCursorMove(position int) CursorMove {
	return CursorMove{Type: TypeCursorMove, Position: position}
}

// Decode parses one wire message. The tag is sniffed first so payload fields
// of other variants never leak into the result.
func Decode(data []byte) (Message, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var (
		msg Message
		err error
	)
	switch envelope.Type {
	case TypeJoinDocument:
		var m JoinDocument
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeLeaveDocument:
		var m LeaveDocument
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeTextChange:
		var m TextChange
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeCursorMove:
		var m CursorMove
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeDocumentState:
		var m DocumentState
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeUserJoined:
		var m UserJoined
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeUserLeft:
		var m UserLeft
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeTextUpdate:
		var m TextUpdate
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeCursorUpdate:
		var m CursorUpdate
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeError:
		var m Error
		err = json.Unmarshal(data, &m)
		msg = m
	default:
		return nil, ErrUnknownType
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", envelope.Type, err)
	}
	return msg, nil
}

// Encode serializes one wire message.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

package ws

import (
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"collabedit/internal/protocol"
	"collabedit/internal/store"
)

// upgrader accepts same-origin and local development origins.
var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "null" {
		return true
	}
	allowedPrefixes := []string{
		"http://localhost",
		"http://127.0.0.1",
		"https://localhost",
		"https://127.0.0.1",
	}
	for _, p := range allowedPrefixes {
		if strings.HasPrefix(origin, p) {
			return true
		}
	}
	return false
}}

// Manager upgrades HTTP requests to websocket connections and runs their
// read/write loops.
type Manager struct {
	hub      *Hub
	presence *Presence
	store    *store.DocumentStore

	mu     sync.Mutex
	joined int // total connections seen, drives color assignment
}

func NewManager(hub *Hub, presence *Presence, docs *store.DocumentStore) *Manager {
	return &Manager{hub: hub, presence: presence, store: docs}
}

func (m *Manager) nextColor() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	color := protocol.ColorForIndex(m.joined)
	m.joined++
	return color
}

// WebSocketConnect handles GET /ws. The caller's node identity comes from the
// X-Node-Id header or the node query parameter; authentication is out of
// scope.
func (m *Manager) WebSocketConnect(c *gin.Context) {
	nodeID := c.GetHeader("X-Node-Id")
	if nodeID == "" {
		nodeID = c.Query("node")
	}
	if nodeID == "" {
		c.String(http.StatusBadRequest, "missing node id")
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v (origin=%s)", err, c.Request.Header.Get("Origin"))
		return
	}
	defer ws.Close()

	conn := NewConn(ws, m.hub, m.presence, m.store, nodeID, m.nextColor())

	// Start the writer first so anything the read loop enqueues goes out
	// promptly; the read loop blocks until the connection closes.
	go conn.writeLoop()
	conn.readLoop()
}

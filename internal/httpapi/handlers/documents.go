package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"collabedit/internal/store"
)

// API serves the document store RPC: POST /api with a single-key body
// {"<Method>": <json-encoded payload string>}. Results are returned as
// JSON-encoded strings.
type API struct {
	store *store.DocumentStore
}

func NewAPI(docs *store.DocumentStore) *API {
	return &API{store: docs}
}

// Handle dispatches one RPC call.
func (a *API) Handle(c *gin.Context) {
	nodeID := c.GetHeader("X-Node-Id")
	if nodeID == "" {
		nodeID = c.Query("node")
	}
	if nodeID == "" {
		c.String(http.StatusBadRequest, "missing node id")
		return
	}

	var req map[string]string
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "invalid request: %v", err)
		return
	}

	for method, payload := range req {
		switch method {
		case "CreateDocument":
			a.createDocument(c, nodeID, payload)
		case "GetDocuments":
			a.getDocuments(c, nodeID)
		case "GetDocument":
			a.getDocument(c, nodeID, payload)
		case "SendInvite":
			a.sendInvite(c, nodeID, payload)
		case "GetInvites":
			a.getInvites(c, nodeID)
		default:
			c.String(http.StatusBadRequest, "unknown method: %s", method)
		}
		return
	}
	c.String(http.StatusBadRequest, "empty request")
}

func (a *API) createDocument(c *gin.Context, nodeID, payload string) {
	var body struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		c.String(http.StatusBadRequest, "invalid request: %v", err)
		return
	}
	doc := a.store.Create(nodeID, body.Title)
	respondJSON(c, doc)
}

func (a *API) getDocuments(c *gin.Context, nodeID string) {
	respondJSON(c, a.store.List(nodeID))
}

func (a *API) getDocument(c *gin.Context, nodeID, payload string) {
	var id string
	if err := json.Unmarshal([]byte(payload), &id); err != nil {
		c.String(http.StatusBadRequest, "invalid request: %v", err)
		return
	}
	doc, err := a.store.Get(id, nodeID)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	respondJSON(c, doc)
}

func (a *API) sendInvite(c *gin.Context, nodeID, payload string) {
	var body struct {
		DocumentID string `json:"document_id"`
		TargetNode string `json:"target_node"`
	}
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		c.String(http.StatusBadRequest, "invalid request: %v", err)
		return
	}
	if err := a.store.Invite(body.DocumentID, nodeID, body.TargetNode); err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, "Invite sent successfully")
}

func (a *API) getInvites(c *gin.Context, nodeID string) {
	respondJSON(c, a.store.PendingInvites(nodeID))
}

// respondJSON writes v as a JSON-encoded string, the RPC's result framing.
func respondJSON(c *gin.Context, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.String(http.StatusInternalServerError, "encode response: %v", err)
		return
	}
	c.JSON(http.StatusOK, string(data))
}

func respondStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.String(http.StatusNotFound, "%v", err)
	case errors.Is(err, store.ErrAccessDenied), errors.Is(err, store.ErrNotHost):
		c.String(http.StatusForbidden, "%v", err)
	default:
		c.String(http.StatusInternalServerError, "%v", err)
	}
}

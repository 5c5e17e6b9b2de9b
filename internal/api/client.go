package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"collabedit/internal/protocol"
)

// Client speaks the document store's single-endpoint RPC: POST {base}/api
// with body {"<Method>": <json-encoded payload string>}. Responses are
// JSON-encoded strings carrying the method's JSON result.
type Client struct {
	baseURL string
	nodeID  string
	http    *http.Client
}

func NewClient(baseURL, nodeID string) *Client {
	return &Client{baseURL: baseURL, nodeID: nodeID, http: http.DefaultClient}
}

func (c *Client) call(ctx context.Context, method, payload string) (string, error) {
	body, err := json.Marshal(map[string]string{method: payload})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Node-Id", c.nodeID)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("api call failed: %d - %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var result string
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("decode %s response: %w", method, err)
	}
	return result, nil
}

func (c *Client) FetchDocument(ctx context.Context, id string) (protocol.Document, error) {
	payload, err := json.Marshal(id)
	if err != nil {
		return protocol.Document{}, err
	}
	result, err := c.call(ctx, "GetDocument", string(payload))
	if err != nil {
		return protocol.Document{}, err
	}
	var doc protocol.Document
	if err := json.Unmarshal([]byte(result), &doc); err != nil {
		return protocol.Document{}, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

func (c *Client) CreateDocument(ctx context.Context, title string) (protocol.Document, error) {
	payload, err := json.Marshal(struct {
		Title string `json:"title"`
	}{Title: title})
	if err != nil {
		return protocol.Document{}, err
	}
	result, err := c.call(ctx, "CreateDocument", string(payload))
	if err != nil {
		return protocol.Document{}, err
	}
	var doc protocol.Document
	if err := json.Unmarshal([]byte(result), &doc); err != nil {
		return protocol.Document{}, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

func (c *Client) ListDocuments(ctx context.Context) ([]protocol.Document, error) {
	result, err := c.call(ctx, "GetDocuments", "")
	if err != nil {
		return nil, err
	}
	var docs []protocol.Document
	if err := json.Unmarshal([]byte(result), &docs); err != nil {
		return nil, fmt.Errorf("decode document list: %w", err)
	}
	return docs, nil
}

func (c *Client) SendInvite(ctx context.Context, documentID, target string) error {
	payload, err := json.Marshal(struct {
		DocumentID string `json:"document_id"`
		TargetNode string `json:"target_node"`
	}{DocumentID: documentID, TargetNode: target})
	if err != nil {
		return err
	}
	_, err = c.call(ctx, "SendInvite", string(payload))
	return err
}

func (c *Client) ListPendingInvites(ctx context.Context) ([]string, error) {
	result, err := c.call(ctx, "GetInvites", "")
	if err != nil {
		return nil, err
	}
	var invites []string
	if err := json.Unmarshal([]byte(result), &invites); err != nil {
		return nil, fmt.Errorf("decode invites: %w", err)
	}
	return invites, nil
}

// Package client provides a Go client for the digitgraph HTTP API.
//
// It covers viewer sessions (open, select, view, close), node browsing
// (list, neighbors, rendered images) and background task polling. The
// client handles HTTP communication, JSON (de)serialization and turns
// error responses into *APIError values.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Custom Errors ---

// APIError represents an error returned by the digitgraph API (status >= 400).
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// --- JSON Response Structs ---

// Neighbor is one thumbnail of a View.
type Neighbor struct {
	ID        string   `json:"id"`
	Top       float64  `json:"top"`
	Left      float64  `json:"left"`
	HasVector bool     `json:"has_vector"`
	Distance  *float64 `json:"distance,omitempty"`
	ImageURL  string   `json:"image_url,omitempty"`
}

// View is the state of a viewer session.
type View struct {
	SessionID      string     `json:"session_id"`
	Phase          string     `json:"phase"`
	Loading        bool       `json:"loading"`
	Generation     uint64     `json:"generation"`
	NodeID         string     `json:"node_id,omitempty"`
	HasNode        bool       `json:"has_node"`
	MainImageURL   string     `json:"main_image_url,omitempty"`
	TotalNeighbors int        `json:"total_neighbors"`
	DisplayedCount int        `json:"displayed_count"`
	Neighbors      []Neighbor `json:"neighbors"`
}

// Session is an open viewer session.
type Session struct {
	ID   string
	Init *Task // tracks the initial load and default selection

	client *Client
}

type sessionCreated struct {
	SessionID string `json:"session_id"`
	TaskID    string `json:"task_id"`
}

type nodeList struct {
	Nodes []string `json:"nodes"`
	Next  string   `json:"next,omitempty"`
}

type neighborList struct {
	NodeID    string   `json:"node_id"`
	Neighbors []string `json:"neighbors"`
}

// Task represents an asynchronous operation on the server.
type Task struct {
	ID              string `json:"id"`
	Kind            string `json:"kind"`
	Status          string `json:"status"`
	ProgressMessage string `json:"progress_message,omitempty"`
	Error           string `json:"error,omitempty"`

	client *Client // Reference to the client for polling.
}

// --- Client ---

// Client is the Go client for a digitgraph server.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// New creates a client for the server at host:port. An empty token sends no
// Authorization header.
func New(host string, port int, token string) *Client {
	return NewFromURL(fmt.Sprintf("http://%s:%d", host, port), token)
}

// NewFromURL creates a client for the server at baseURL.
func NewFromURL(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		authToken:  token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// do executes a request and returns the raw body of a successful response.
func (c *Client) do(method, endpoint string, payload any, accept string) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON payload: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connection error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil // For 204 responses (e.g., DELETE).
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		if json.Unmarshal(respBody, &errResp) == nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: errResp["error"]}
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	return respBody, nil
}

// jsonRequest executes a JSON API call and decodes the response into out,
// which may be nil.
func (c *Client) jsonRequest(method, endpoint string, payload, out any) error {
	body, err := c.do(method, endpoint, payload, "application/json")
	if err != nil {
		return err
	}
	if out == nil || body == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("invalid JSON response for %s %s: %w", method, endpoint, err)
	}
	return nil
}

// Refresh updates the task's status by querying the server.
func (t *Task) Refresh() error {
	if t.client == nil {
		return fmt.Errorf("client is not associated with the task")
	}
	updatedTask, err := t.client.GetTaskStatus(t.ID)
	if err != nil {
		return err
	}
	t.Status = updatedTask.Status
	t.ProgressMessage = updatedTask.ProgressMessage
	t.Error = updatedTask.Error
	return nil
}

// Wait blocks until the task is completed, checking its status at regular intervals.
func (t *Task) Wait(interval, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-timer.C:
			return fmt.Errorf("timeout exceeded while waiting for task %s", t.ID)
		case <-ticker.C:
			if err := t.Refresh(); err != nil {
				return err
			}
			switch t.Status {
			case "completed":
				return nil
			case "failed":
				return fmt.Errorf("task %s failed with error: %s", t.ID, t.Error)
			case "running", "started":
				// Continue waiting.
			default:
				return fmt.Errorf("unknown task status: %s", t.Status)
			}
		}
	}
}

// GetTaskStatus retrieves the status of a background task.
func (c *Client) GetTaskStatus(taskID string) (*Task, error) {
	var task Task
	if err := c.jsonRequest(http.MethodGet, "/api/tasks/"+url.PathEscape(taskID), nil, &task); err != nil {
		return nil, err
	}
	task.client = c
	return &task, nil
}

// --- Session Methods ---

// OpenSession starts a viewer session. The server loads data and selects the
// default node in the background; wait on Session.Init before selecting.
func (c *Client) OpenSession() (*Session, error) {
	var created sessionCreated
	if err := c.jsonRequest(http.MethodPost, "/api/sessions", nil, &created); err != nil {
		return nil, err
	}
	return &Session{
		ID:     created.SessionID,
		Init:   &Task{ID: created.TaskID, Status: "started", client: c},
		client: c,
	}, nil
}

// View returns the session's current view.
func (s *Session) View() (*View, error) {
	var v View
	if err := s.client.jsonRequest(http.MethodGet, s.path(""), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Select makes nodeID the focal node and returns the new view. Selecting a
// node without a vector fails with a 404 *APIError and leaves the view as it
// was.
func (s *Session) Select(nodeID string) (*View, error) {
	var v View
	payload := map[string]string{"node_id": nodeID}
	if err := s.client.jsonRequest(http.MethodPost, s.path("/select"), payload, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Image fetches a PNG referenced by a View (MainImageURL or a neighbor's
// ImageURL).
func (s *Session) Image(imageURL string) ([]byte, error) {
	return s.client.do(http.MethodGet, imageURL, nil, "image/png")
}

// Close ends the session on the server.
func (s *Session) Close() error {
	return s.client.jsonRequest(http.MethodDelete, s.path(""), nil, nil)
}

func (s *Session) path(suffix string) string {
	return "/api/sessions/" + url.PathEscape(s.ID) + suffix
}

// --- Node Methods ---

// ListNodes returns up to limit node ids after the given id, plus the cursor
// for the next page (empty on the last page).
func (c *Client) ListNodes(after string, limit int) ([]string, string, error) {
	q := url.Values{}
	if after != "" {
		q.Set("after", after)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	endpoint := "/api/nodes"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var page nodeList
	if err := c.jsonRequest(http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, "", err
	}
	return page.Nodes, page.Next, nil
}

// Neighbors returns the full neighbor list of a node.
func (c *Client) Neighbors(nodeID string) ([]string, error) {
	var resp neighborList
	endpoint := "/api/nodes/" + url.PathEscape(nodeID) + "/neighbors"
	if err := c.jsonRequest(http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Neighbors, nil
}

// NodeImage renders a node as a PNG enlarged by scale (0 uses the server
// default).
func (c *Client) NodeImage(nodeID string, scale int) ([]byte, error) {
	endpoint := "/api/nodes/" + url.PathEscape(nodeID) + "/image"
	if scale > 0 {
		endpoint += "?scale=" + strconv.Itoa(scale)
	}
	return c.do(http.MethodGet, endpoint, nil, "image/png")
}

// Health checks that the server is up.
func (c *Client) Health() error {
	return c.jsonRequest(http.MethodGet, "/healthz", nil, nil)
}

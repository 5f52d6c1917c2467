package ridersdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const roleHeader = "X-Rider-Role"

// Client is a minimal tech rider HTTP API client acting as one party.
type Client struct {
	BaseURL    string
	BasePath   string
	Role       string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client acting as role (BAND or ENGINEER).
func New(baseURL, role string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Role:     role,
		Timeout:  10 * time.Second,
	}
}

// As returns a copy of c acting as role.
func (c *Client) As(role string) *Client {
	out := *c
	out.Role = role
	return &out
}

type Specs struct {
	Make     string `json:"make,omitempty"`
	Model    string `json:"model,omitempty"`
	Quantity int    `json:"quantity,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// Event is one entry of an item's discussion log (partial).
type Event struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	Author         string         `json:"author"`
	Role           string         `json:"role"`
	Text           string         `json:"text"`
	Timestamp      string         `json:"timestamp"`
	WaitingFor     string         `json:"waiting_for,omitempty"`
	PendingUpdates map[string]any `json:"pending_updates,omitempty"`
}

// Item represents the API item model.
type Item struct {
	ID                      string  `json:"id"`
	Category                string  `json:"category"`
	Title                   string  `json:"title"`
	Description             string  `json:"description"`
	Specs                   Specs   `json:"specs"`
	Provider                string  `json:"provider"`
	Status                  string  `json:"status"`
	RequestedBy             string  `json:"requested_by,omitempty"`
	AssignedTo              string  `json:"assigned_to,omitempty"`
	CreatedBy               string  `json:"created_by"`
	PendingConfirmationFrom string  `json:"pending_confirmation_from,omitempty"`
	Comments                []Event `json:"comments"`
	CreatedAt               string  `json:"created_at"`
	UpdatedAt               string  `json:"updated_at"`
}

// View is an item as seen by the acting party (partial).
type View struct {
	Item              Item     `json:"item"`
	Role              string   `json:"role"`
	AgreedRoles       []string `json:"agreed_roles"`
	FullyAgreed       bool     `json:"fully_agreed"`
	CanAgree          bool     `json:"can_agree"`
	CanReopen         bool     `json:"can_reopen"`
	CanAcceptRevision bool     `json:"can_accept_revision"`
}

type Summary struct {
	Total      int    `json:"total"`
	Pending    int    `json:"pending"`
	Discussing int    `json:"discussing"`
	Agreed     int    `json:"agreed"`
	Reopened   int    `json:"reopened"`
	Rejected   int    `json:"rejected"`
	Progress   string `json:"progress"`
}

type Message struct {
	ID     int64  `json:"id"`
	TS     string `json:"ts"`
	Kind   string `json:"kind"`
	Role   string `json:"role"`
	Author string `json:"author"`
	Text   string `json:"text"`
	ItemID string `json:"item_id,omitempty"`
}

// NewItem holds the fields of an item to create.
type NewItem struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Provider    string `json:"provider,omitempty"`
	Specs       *Specs `json:"specs,omitempty"`
}

// Revision lists fields to change; nil fields are left out.
type Revision struct {
	Category    *string `json:"category,omitempty"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Provider    *string `json:"provider,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

type intentResult struct {
	Item    Item `json:"item"`
	Applied bool `json:"applied"`
}

func (c *Client) CreateItem(ctx context.Context, in NewItem) (Item, error) {
	var resp Item
	err := c.do(ctx, http.MethodPost, "items", in, &resp)
	return resp, err
}

// GetItem returns the item as seen by the client's role.
func (c *Client) GetItem(ctx context.Context, id string) (View, error) {
	var resp View
	err := c.do(ctx, http.MethodGet, itemPath(id, ""), nil, &resp)
	return resp, err
}

// ListItems lists the brief, optionally filtered by category and status.
func (c *Client) ListItems(ctx context.Context, category, status string) ([]Item, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	if status != "" {
		q.Set("status", status)
	}
	endpoint := "items"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Items []Item `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func (c *Client) ProposeRevision(ctx context.Context, id string, rev Revision) (Item, error) {
	var resp Item
	err := c.do(ctx, http.MethodPost, itemPath(id, "revisions"), rev, &resp)
	return resp, err
}

func (c *Client) UpdateProvider(ctx context.Context, id, provider string) (Item, error) {
	var resp Item
	err := c.do(ctx, http.MethodPut, itemPath(id, "provider"), map[string]any{"provider": provider}, &resp)
	return resp, err
}

// UpdateStatus requests a status. applied is false when the request was not
// allowed for the client's role.
func (c *Client) UpdateStatus(ctx context.Context, id, status string) (item Item, applied bool, err error) {
	var resp intentResult
	err = c.do(ctx, http.MethodPut, itemPath(id, "status"), map[string]any{"status": status}, &resp)
	return resp.Item, resp.Applied, err
}

func (c *Client) Reopen(ctx context.Context, id, message string) (Item, bool, error) {
	var resp intentResult
	err := c.do(ctx, http.MethodPost, itemPath(id, "reopen"), map[string]any{"message": message}, &resp)
	return resp.Item, resp.Applied, err
}

func (c *Client) Comment(ctx context.Context, id, message string) (Item, error) {
	var resp Item
	err := c.do(ctx, http.MethodPost, itemPath(id, "comments"), map[string]any{"message": message}, &resp)
	return resp, err
}

func (c *Client) Summary(ctx context.Context) (Summary, error) {
	var resp Summary
	err := c.do(ctx, http.MethodGet, "summary", nil, &resp)
	return resp, err
}

// PostMessage writes to the brief-wide chat.
func (c *Client) PostMessage(ctx context.Context, message string) (Message, error) {
	var resp Message
	err := c.do(ctx, http.MethodPost, "feed", map[string]any{"message": message}, &resp)
	return resp, err
}

// Feed returns feed rows oldest first. kind is ALL, CHAT or UPDATES.
func (c *Client) Feed(ctx context.Context, kind string, limit int) ([]Message, error) {
	q := url.Values{}
	if kind != "" {
		q.Set("kind", kind)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	endpoint := "feed"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Messages []Message `json:"messages"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Messages, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Role != "" {
		req.Header.Set(roleHeader, c.Role)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func itemPath(id, sub string) string {
	p := "items/" + url.PathEscape(id)
	if sub != "" {
		p += "/" + sub
	}
	return p
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if c.BasePath != "" {
		base += "/" + strings.Trim(c.BasePath, "/")
	}
	return base
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/terra-clan/bumpstory/internal/models"
)

// Client is a Go SDK for the bumpstory API
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithToken starts the client with an existing access token
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient creates a new bumpstory client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is returned when the server answers with an error envelope
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s - %s", e.StatusCode, e.Code, e.Message)
}

// Token returns the current access token
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// StoryView is a catalog story annotated for the caller
type StoryView struct {
	models.Story
	DurationCategory models.DurationCategory `json:"durationCategory"`
	Status           models.CompletionStatus `json:"status"`
}

// StoryPage is the result of ListStories
type StoryPage struct {
	Stories        []StoryView                `json:"stories"`
	Total          int                        `json:"total"`
	Filters        models.AdvancedFilterState `json:"filters"`
	ActiveFilters  int                        `json:"active_filters"`
	MatchingPreset *models.FilterPreset       `json:"matching_preset"`
}

// PathView is a learning path sequenced against the caller's progress
type PathView struct {
	Path     models.LearningPath       `json:"path"`
	Items    []models.LearningPathItem `json:"items"`
	Stats    models.ProgressStats      `json:"stats"`
	Complete bool                      `json:"complete"`
	Current  *models.LearningPathItem  `json:"current,omitempty"`
}

// StoryQuery holds catalog filters; empty fields mean "all".
// Completed and InProgress are only sent for guests.
type StoryQuery struct {
	Category   string
	Difficulty string
	Search     string
	Duration   string
	Status     string
	Trimester  string
	Completed  []int
	InProgress []int
}

func (q StoryQuery) values() url.Values {
	v := url.Values{}
	set := func(key, val string) {
		if val != "" {
			v.Set(key, val)
		}
	}
	set("category", q.Category)
	set("difficulty", q.Difficulty)
	set("q", q.Search)
	set("duration", q.Duration)
	set("status", q.Status)
	set("trimester", q.Trimester)
	set("completed", joinIDs(q.Completed))
	set("in_progress", joinIDs(q.InProgress))
	return v
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// Register creates an account and keeps its access token
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.call(ctx, http.MethodPost, "/api/v1/auth/register", req, &resp); err != nil {
		return nil, err
	}
	c.setToken(resp.AccessToken)
	return &resp, nil
}

// Login signs in and keeps the access token
func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	req := models.LoginRequest{Email: email, Password: password}
	if err := c.call(ctx, http.MethodPost, "/api/v1/auth/login", req, &resp); err != nil {
		return nil, err
	}
	c.setToken(resp.AccessToken)
	return &resp, nil
}

// Logout forgets the current token. revoked reports whether the server also
// revoked it; when false the token stays usable until it expires.
func (c *Client) Logout(ctx context.Context) (revoked bool, err error) {
	var resp models.LogoutResponse
	if err := c.call(ctx, http.MethodPost, "/api/v1/auth/logout", nil, &resp); err != nil {
		return false, err
	}
	c.setToken("")
	return resp.Revoked, nil
}

// ListStories retrieves catalog stories matching q
func (c *Client) ListStories(ctx context.Context, q StoryQuery) (*StoryPage, error) {
	path := "/api/v1/stories"
	if enc := q.values().Encode(); enc != "" {
		path += "?" + enc
	}
	var page StoryPage
	if err := c.call(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetStory retrieves a single story
func (c *Client) GetStory(ctx context.Context, id int) (*StoryView, error) {
	var story StoryView
	if err := c.call(ctx, http.MethodGet, "/api/v1/stories/"+strconv.Itoa(id), nil, &story); err != nil {
		return nil, err
	}
	return &story, nil
}

// GetPath retrieves a learning path with per-item progress
func (c *Client) GetPath(ctx context.Context, id string) (*PathView, error) {
	var path PathView
	if err := c.call(ctx, http.MethodGet, "/api/v1/paths/"+url.PathEscape(id), nil, &path); err != nil {
		return nil, err
	}
	return &path, nil
}

// ToggleCompletion flips a story's completion and returns the new state
func (c *Client) ToggleCompletion(ctx context.Context, storyID int) (bool, error) {
	var result struct {
		Completed bool `json:"completed"`
	}
	path := "/api/v1/me/progress/" + strconv.Itoa(storyID) + "/toggle"
	if err := c.call(ctx, http.MethodPost, path, nil, &result); err != nil {
		return false, err
	}
	return result.Completed, nil
}

// UpdateProgress records reading progress for a story
func (c *Client) UpdateProgress(ctx context.Context, storyID, percent int) error {
	path := "/api/v1/me/progress/" + strconv.Itoa(storyID)
	return c.call(ctx, http.MethodPut, path, models.UpdateProgressRequest{Percent: percent}, nil)
}

// Trimester computes pregnancy progress for a due date as of a given day
func (c *Client) Trimester(ctx context.Context, dueDate, asOf time.Time) (*models.TrimesterInfo, error) {
	v := url.Values{}
	v.Set("due_date", dueDate.Format("2006-01-02"))
	if !asOf.IsZero() {
		v.Set("date", asOf.Format("2006-01-02"))
	}
	var info models.TrimesterInfo
	if err := c.call(ctx, http.MethodGet, "/api/v1/trimester?"+v.Encode(), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// CreateJournalEntry adds a journal entry for the signed-in user
func (c *Client) CreateJournalEntry(ctx context.Context, req models.JournalRequest) (*models.JournalEntry, error) {
	var entry models.JournalEntry
	if err := c.call(ctx, http.MethodPost, "/api/v1/me/journal", req, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// StartKickSession opens a kick-counting session
func (c *Client) StartKickSession(ctx context.Context) (*models.KickSessionSummary, error) {
	var summary models.KickSessionSummary
	if err := c.call(ctx, http.MethodPost, "/api/v1/me/kicks", nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// RecordKick adds one kick to an active session
func (c *Client) RecordKick(ctx context.Context, sessionID string) (*models.KickSessionSummary, error) {
	var summary models.KickSessionSummary
	if err := c.call(ctx, http.MethodPost, "/api/v1/me/kicks/"+sessionID+"/kick", nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// FinishKickSession closes a session with an optional note
func (c *Client) FinishKickSession(ctx context.Context, sessionID, note string) (*models.KickSessionSummary, error) {
	var summary models.KickSessionSummary
	req := models.FinishKickSessionRequest{Note: note}
	if err := c.call(ctx, http.MethodPost, "/api/v1/me/kicks/"+sessionID+"/finish", req, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/health", nil, nil)
}

// call sends a request and unwraps the response envelope into out
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	status, respBody, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("failed to unmarshal response (HTTP %d): %w", status, err)
	}

	if !result.Success {
		apiErr := &APIError{StatusCode: status}
		if result.Error != nil {
			apiErr.Code = result.Error.Code
			apiErr.Message = result.Error.Message
		}
		return apiErr
	}

	if out != nil && len(result.Data) > 0 {
		if err := json.Unmarshal(result.Data, out); err != nil {
			return fmt.Errorf("failed to unmarshal data: %w", err)
		}
	}
	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

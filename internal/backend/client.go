// Package backend is the HTTP client for the coaching backend: plans, swaps,
// recommendations and session persistence.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/liftcoach/internal/models"
)

// TransientError is a failed backend call: the request could not be sent or
// the backend answered with a non-2xx status. Nothing is retried automatically.
type TransientError struct {
	Path   string
	Status int
	Body   string
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend: %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("backend: %s returned %d: %s", e.Path, e.Status, e.Body)
}

func (e *TransientError) Unwrap() error { return e.Err }

// NotFound reports whether the backend answered 404.
func (e *TransientError) NotFound() bool { return e.Status == http.StatusNotFound }

// Client calls the backend REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client targeting baseURL. A nil httpClient gets a 30s timeout default.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) send(ctx context.Context, method, path string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("backend: encode %s body: %w", path, err)
	}
	return c.do(ctx, method, path, data)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("backend: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransientError{Path: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Path: path, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransientError{Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}

// GetPlan returns the raw plan payload. Normalization is the caller's concern.
func (c *Client) GetPlan(ctx context.Context, planID int64) (json.RawMessage, error) {
	return c.get(ctx, fmt.Sprintf("/plans/%d", planID), nil)
}

// LastCompletedDay returns the day index of the user's most recent completed
// workout for the plan, or nil when there is none.
func (c *Client) LastCompletedDay(ctx context.Context, planID int64, userID int) (*int, error) {
	params := url.Values{}
	params.Set("user_id", strconv.Itoa(userID))

	body, err := c.get(ctx, fmt.Sprintf("/plans/%d/last-completed", planID), params)
	var te *TransientError
	if errors.As(err, &te) && te.NotFound() {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out struct {
		DayIndex *int `json:"day_index"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("backend: decode last completed: %w", err)
	}
	return out.DayIndex, nil
}

func (c *Client) SwapOptions(ctx context.Context, planID int64, dayIndex, sequence int) ([]models.SwapOption, error) {
	params := url.Values{}
	params.Set("day_index", strconv.Itoa(dayIndex))
	params.Set("sequence", strconv.Itoa(sequence))

	body, err := c.get(ctx, fmt.Sprintf("/plans/%d/swap-options", planID), params)
	if err != nil {
		return nil, err
	}
	var opts []models.SwapOption
	if err := json.Unmarshal(body, &opts); err != nil {
		return nil, fmt.Errorf("backend: decode swap options: %w", err)
	}
	return opts, nil
}

func (c *Client) ApplySwap(ctx context.Context, req models.SwapRequest) error {
	_, err := c.send(ctx, http.MethodPatch, fmt.Sprintf("/plans/%d/swap", req.PlanID), req)
	return err
}

// Recommendation returns the coaching target for one exercise. A null or
// empty body yields a nil recommendation.
func (c *Client) Recommendation(ctx context.Context, userID int, exerciseID int64) (*models.Recommendation, error) {
	params := url.Values{}
	params.Set("user_id", strconv.Itoa(userID))
	params.Set("exercise_id", strconv.FormatInt(exerciseID, 10))

	body, err := c.get(ctx, "/progression/recommendations", params)
	if err != nil {
		return nil, err
	}
	if trimmed := bytes.TrimSpace(body); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var rec models.Recommendation
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("backend: decode recommendation: %w", err)
	}
	return &rec, nil
}

// startResponse is the echoed session. The id has been sent both as a number and a string.
type startResponse struct {
	ID         json.RawMessage `json:"id"`
	TemplateID *int64          `json:"template_id"`
}

// StartSession opens a session. The returned session carries the backend id,
// or an empty ID when the backend assigned none.
func (c *Client) StartSession(ctx context.Context, req models.StartRequest) (*models.Session, error) {
	body, err := c.send(ctx, http.MethodPost, "/workouts/sessions", req)
	if err != nil {
		return nil, err
	}
	var out startResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("backend: decode started session: %w", err)
	}

	sess := &models.Session{
		ID:         rawID(out.ID),
		PlanID:     req.PlanID,
		DayIndex:   req.DayIndex,
		TemplateID: out.TemplateID,
	}
	if t, err := time.Parse(time.RFC3339, req.StartedAt); err == nil {
		sess.StartedAt = t
	}
	return sess, nil
}

func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// SaveSession persists a logged, partial or skipped session and returns its stored id.
func (c *Client) SaveSession(ctx context.Context, payload models.SessionPayload) (int64, error) {
	body, err := c.send(ctx, http.MethodPost, "/workouts/sessions", payload)
	if err != nil {
		return 0, err
	}
	var out struct {
		SessionID int64 `json:"session_id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("backend: decode saved session: %w", err)
	}
	return out.SessionID, nil
}

func (c *Client) ListSessions(ctx context.Context, userID int) ([]models.SessionRecord, error) {
	params := url.Values{}
	params.Set("user_id", strconv.Itoa(userID))

	body, err := c.get(ctx, "/workouts/sessions", params)
	if err != nil {
		return nil, err
	}
	var records []models.SessionRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("backend: decode sessions: %w", err)
	}
	return records, nil
}

// Package api is the REST client for the scanner backend. All
// persistence lives behind these endpoints; the monitoring core only
// ever holds fetched copies.
package api

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

	"github.com/scanmon/scanmon/internal/scanner"
)

const defaultTimeout = 15 * time.Second

// validModulations mirrors the backend's whitelist; writes carrying
// anything else are rejected before a request is issued.
var validModulations = map[string]struct{}{
	"AM": {}, "FM": {}, "USB": {}, "LSB": {}, "CW": {}, "NFM": {}, "WFM": {},
}

// StatusError reports a non-success HTTP response.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
}

// ValidationError reports a request rejected client-side, before any
// network traffic.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// FrequencyRequest is the payload for creating or updating a registry
// entry.
type FrequencyRequest struct {
	FrequencyHz  float64 `json:"frequency"`
	Modulation   string  `json:"modulation"`
	FriendlyName string  `json:"friendly_name"`
	Description  string  `json:"description"`
	Enabled      bool    `json:"enabled"`
	Priority     int     `json:"priority"`
	Group        string  `json:"group"`
	Tags         string  `json:"tags"`
}

// Validate applies the backend's input rules locally.
func (r *FrequencyRequest) Validate() error {
	if r.FrequencyHz <= 0 {
		return &ValidationError{Field: "frequency", Reason: "must be positive"}
	}
	if _, ok := validModulations[strings.ToUpper(r.Modulation)]; !ok {
		return &ValidationError{Field: "modulation", Reason: fmt.Sprintf("unsupported type %q", r.Modulation)}
	}
	if r.Priority < 0 || r.Priority > 100 {
		return &ValidationError{Field: "priority", Reason: "must be between 0 and 100"}
	}
	return nil
}

// RecordingUpdate is the PATCH payload for recording metadata. Nil
// fields are left untouched by the backend.
type RecordingUpdate struct {
	IsFavorite  *bool   `json:"is_favorite,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Client talks to a single backend instance. Overlapping calls to the
// same resource are allowed to race; callers apply whichever response
// lands last.
type Client struct {
	baseURL string
	http    *http.Client
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) func(*Client) {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a client for the given base URL, e.g.
// "http://localhost:8000".
func NewClient(baseURL string, options ...func(*Client)) *Client {
	c := Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// Frequencies fetches the whole frequency registry.
func (c *Client) Frequencies(ctx context.Context) ([]scanner.Frequency, error) {
	var out []scanner.Frequency
	if err := c.getJSON(ctx, "/api/v1/frequencies", &out); err != nil {
		return nil, fmt.Errorf("fetching frequencies: %w", err)
	}
	return out, nil
}

// Transmissions fetches up to limit transmission log records.
func (c *Client) Transmissions(ctx context.Context, limit int) ([]scanner.Transmission, error) {
	if limit <= 0 {
		limit = 100
	}

	var out []scanner.Transmission
	path := fmt.Sprintf("/api/v1/transmissions?limit=%d", limit)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("fetching transmissions: %w", err)
	}
	return out, nil
}

// Recordings fetches recording metadata.
func (c *Client) Recordings(ctx context.Context) ([]scanner.Recording, error) {
	var out []scanner.Recording
	if err := c.getJSON(ctx, "/api/v1/recordings", &out); err != nil {
		return nil, fmt.Errorf("fetching recordings: %w", err)
	}
	return out, nil
}

// RecordingStats fetches the recordings summary.
func (c *Client) RecordingStats(ctx context.Context) (*scanner.RecordingStats, error) {
	var out scanner.RecordingStats
	if err := c.getJSON(ctx, "/api/v1/recordings/stats/summary", &out); err != nil {
		return nil, fmt.Errorf("fetching recording stats: %w", err)
	}
	return &out, nil
}

// ScannerStatus polls the scanner state.
func (c *Client) ScannerStatus(ctx context.Context) (*scanner.Status, error) {
	var out scanner.Status
	if err := c.getJSON(ctx, "/api/v1/scanner/status", &out); err != nil {
		return nil, fmt.Errorf("fetching scanner status: %w", err)
	}
	return &out, nil
}

// AudioStatus polls the audio pipeline state.
func (c *Client) AudioStatus(ctx context.Context) (*scanner.AudioStatus, error) {
	var out scanner.AudioStatus
	if err := c.getJSON(ctx, "/api/v1/audio/status", &out); err != nil {
		return nil, fmt.Errorf("fetching audio status: %w", err)
	}
	return &out, nil
}

// StartScanner asks the backend to begin scanning.
func (c *Client) StartScanner(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/scanner/start", nil, nil)
}

// StopScanner asks the backend to stop scanning.
func (c *Client) StopScanner(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/scanner/stop", nil, nil)
}

// EnableAudio turns Zello audio forwarding on.
func (c *Client) EnableAudio(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/audio/enable", nil, nil)
}

// DisableAudio turns Zello audio forwarding off.
func (c *Client) DisableAudio(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/audio/disable", nil, nil)
}

// CreateFrequency adds a registry entry after local validation.
func (c *Client) CreateFrequency(ctx context.Context, req *FrequencyRequest) (*scanner.Frequency, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var out scanner.Frequency
	if err := c.do(ctx, http.MethodPost, "/api/v1/frequencies", req, &out); err != nil {
		return nil, fmt.Errorf("creating frequency: %w", err)
	}
	return &out, nil
}

// UpdateFrequency replaces a registry entry after local validation.
func (c *Client) UpdateFrequency(ctx context.Context, id int64, req *FrequencyRequest) (*scanner.Frequency, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var out scanner.Frequency
	path := fmt.Sprintf("/api/v1/frequencies/%d", id)
	if err := c.do(ctx, http.MethodPut, path, req, &out); err != nil {
		return nil, fmt.Errorf("updating frequency %d: %w", id, err)
	}
	return &out, nil
}

// DeleteFrequency removes a registry entry.
func (c *Client) DeleteFrequency(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/frequencies/%d", id), nil, nil)
}

// UpdateRecording patches recording metadata.
func (c *Client) UpdateRecording(ctx context.Context, id int64, update *RecordingUpdate) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/v1/recordings/%d", id), update, nil)
}

// DeleteRecording removes a recording and its file.
func (c *Client) DeleteRecording(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/recordings/%d", id), nil, nil)
}

// Cleanup asks the backend to prune data older than the given number of
// days. The backend accepts 1 to 365.
func (c *Client) Cleanup(ctx context.Context, days int) error {
	if days < 1 || days > 365 {
		return &ValidationError{Field: "days", Reason: "must be between 1 and 365"}
	}

	path := "/api/v1/maintenance/cleanup?" + url.Values{"days": {fmt.Sprint(days)}}.Encode()
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		p, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(p)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

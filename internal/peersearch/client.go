// Package peersearch adapts a slskd-style peer search/transfer daemon:
// an async search-handle contract plus a transfer queue (spec.md §4.2
// PeerSearch). Grounded on the search/poll/download loop of
// majql-spotiseek's worker and the per-transfer byte/track progress
// fields of IAmAnonUser-DeeMusic-V2's queue store.
package peersearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cesargomez89/crateflow/internal/httpclient"
	"github.com/cesargomez89/crateflow/internal/logger"
)

// State is the lifecycle of a search handle.
type State string

const (
	StateInProgress State = "InProgress"
	StateCompleted  State = "Completed"
	StateCancelled  State = "Cancelled"
)

// FileEntry describes one file offered by a peer in a search response
// or queued for transfer.
type FileEntry struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Extension string `json:"extension,omitempty"`
	BitRate  *int   `json:"bitRate,omitempty"`
	BitDepth *int   `json:"bitDepth,omitempty"`
	SampleRate *int `json:"sampleRate,omitempty"`
}

// Response is one peer's reply to a search.
type Response struct {
	Username    string      `json:"username"`
	Files       []FileEntry `json:"files"`
	HasSlot     *bool       `json:"hasFreeUploadSlot,omitempty"`
	UploadSpeed *float64    `json:"uploadSpeed,omitempty"`
}

// TransferState is one in-flight or finished peer transfer, keyed by
// (username, directory) as in spec.md §4.5 "progress tracking".
type TransferState struct {
	Username        string  `json:"username"`
	Directory       string  `json:"directory"`
	State           string  `json:"state"`
	BytesTransferred int64  `json:"bytesTransferred"`
	BytesTotal      int64   `json:"size"`
	FilesCompleted  int     `json:"filesCompleted"`
	FilesTotal      int     `json:"filesTotal"`
	AverageSpeed    float64 `json:"averageSpeed"`
}

type Client struct {
	baseURL string
	http    *httpclient.Client
	log     *logger.Logger
}

func New(baseURL string, httpClient *httpclient.Client, log *logger.Logger) *Client {
	return &Client{baseURL: baseURL, http: httpClient, log: log}
}

type searchRequest struct {
	SearchText       string `json:"searchText"`
	SearchTimeout    int    `json:"searchTimeout"`
	MinResponseCount int    `json:"minResponseCount,omitempty"`
}

type searchCreatedResponse struct {
	ID string `json:"id"`
}

// Search starts an async peer search and returns its handle. A
// failure here is propagated — unlike the other C2 clients, the
// Download Engine cannot proceed without a handle (spec.md §4.2).
func (c *Client) Search(ctx context.Context, query string, timeoutMs, minResponses int) (string, error) {
	body, err := json.Marshal(searchRequest{SearchText: query, SearchTimeout: timeoutMs, MinResponseCount: minResponses})
	if err != nil {
		return "", fmt.Errorf("encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v0/searches", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var created searchCreatedResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode search response: %w", err)
	}
	return created.ID, nil
}

type searchStateResponse struct {
	State string `json:"state"`
}

// PollState reports the current lifecycle state of a search handle.
func (c *Client) PollState(ctx context.Context, handle string) (State, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v0/searches/"+handle, nil)
	if err != nil {
		return "", fmt.Errorf("build poll request: %w", err)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("poll request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("poll returned status %d", resp.StatusCode)
	}

	var body searchStateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode poll response: %w", err)
	}
	switch State(body.State) {
	case StateInProgress, StateCompleted, StateCancelled:
		return State(body.State), nil
	default:
		return StateInProgress, nil
	}
}

// Responses returns every peer response collected so far for handle.
// Degrades to empty on failure: a transient read error here should not
// abort a search still in progress (spec.md §4.2 "clients are
// tolerant").
func (c *Client) Responses(ctx context.Context, handle string) []Response {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v0/searches/"+handle+"/responses", nil)
	if err != nil {
		c.log.Warn("build responses request failed", "handle", handle, "error", err)
		return nil
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		c.log.Warn("responses request failed", "handle", handle, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("responses returned non-200", "handle", handle, "status", resp.StatusCode)
		return nil
	}

	var out []Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.log.Warn("decode responses failed", "handle", handle, "error", err)
		return nil
	}
	return out
}

// Delete removes a completed or cancelled search handle.
func (c *Client) Delete(ctx context.Context, handle string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/v0/searches/"+handle, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("delete request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete returned status %d", resp.StatusCode)
	}
	return nil
}

// Enqueue hands files from username to the transfer queue, starting
// the actual peer-to-peer download (spec.md §4.2, §4.5 "queued").
func (c *Client) Enqueue(ctx context.Context, username string, files []FileEntry) error {
	body, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("encode enqueue request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v0/transfers/downloads/"+username, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build enqueue request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("enqueue request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("enqueue returned status %d", resp.StatusCode)
	}
	return nil
}

// Transfers returns the current per-(username, directory) transfer
// state for every in-flight or recently finished download, used by the
// Download Engine's progress-tracking pass (spec.md §4.5). Degrades to
// empty on failure — a stalled poll here is recovered on the next
// engine tick, not fatal.
func (c *Client) Transfers(ctx context.Context) []TransferState {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v0/transfers/downloads", nil)
	if err != nil {
		c.log.Warn("build transfers request failed", "error", err)
		return nil
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		c.log.Warn("transfers request failed", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("transfers returned non-200", "status", resp.StatusCode)
		return nil
	}

	var out []TransferState
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.log.Warn("decode transfers failed", "error", err)
		return nil
	}
	return out
}

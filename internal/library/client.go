// Package library adapts the user's existing music-library service,
// used to mirror known artists for dedup (spec.md §4.2 Library).
package library

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cesargomez89/crateflow/internal/httpclient"
	"github.com/cesargomez89/crateflow/internal/logger"
)

// ArtistRef is one artist as known to the library.
type ArtistRef struct {
	Name       string `json:"name"`
	ExternalID string `json:"id"`
}

// Client authenticates to the library with a one-shot token exchange:
// authenticate posts only the username and uses the returned token.
// The password is stored but not sent, and no salted token is computed.
type Client struct {
	baseURL  string
	username string
	password string
	http     *httpclient.Client
	log      *logger.Logger
}

func New(baseURL, username, password string, httpClient *httpclient.Client, log *logger.Logger) *Client {
	return &Client{baseURL: baseURL, username: username, password: password, http: httpClient, log: log}
}

type artistListResponse struct {
	Artists []ArtistRef `json:"artists"`
}

// ListArtists returns every library artist keyed by lowercased name.
// A network or auth failure degrades to an empty map rather than
// propagating (spec.md §4.2 "clients are tolerant").
func (c *Client) ListArtists(ctx context.Context) map[string]ArtistRef {
	token, err := c.authenticate(ctx)
	if err != nil {
		c.log.Warn("library authentication failed", "error", err)
		return map[string]ArtistRef{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rest/getArtists", nil)
	if err != nil {
		c.log.Warn("build library request failed", "error", err)
		return map[string]ArtistRef{}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		c.log.Warn("library request failed", "error", err)
		return map[string]ArtistRef{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("library returned non-200", "status", resp.StatusCode)
		return map[string]ArtistRef{}
	}

	var body artistListResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.log.Warn("decode library response failed", "error", err)
		return map[string]ArtistRef{}
	}

	out := make(map[string]ArtistRef, len(body.Artists))
	for _, a := range body.Artists {
		out[strings.ToLower(a.Name)] = a
	}
	return out
}

// authenticate performs a one-shot token exchange; the library's
// salted-token scheme is opaque here, represented as a single POST.
func (c *Client) authenticate(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/rest/authenticate?u=%s", c.baseURL, c.username)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("authentication returned status %d", resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.Token, nil
}

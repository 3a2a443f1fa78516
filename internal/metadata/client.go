// Package metadata adapts a MusicBrainz-style recording/release-group
// lookup service (spec.md §4.2 Metadata).
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/cesargomez89/crateflow/internal/httpclient"
	"github.com/cesargomez89/crateflow/internal/logger"
)

// Recording is the minimal artist/title pair resolved from an id.
type Recording struct {
	Artist string
	Title  string
}

// RecordingAlbum is a recording resolved up to its containing album.
type RecordingAlbum struct {
	Artist     string
	AlbumTitle string
	AlbumID    string
	TrackTitle string
	Year       *int
}

// ReleaseGroup is one search result from SearchReleaseGroups.
type ReleaseGroup struct {
	ID                string
	Title             string
	Type              string
	FirstReleaseDate  *string
}

type Client struct {
	baseURL string
	http    *httpclient.Client
	log     *logger.Logger
}

func New(baseURL string, httpClient *httpclient.Client, log *logger.Logger) *Client {
	return &Client{baseURL: baseURL, http: httpClient, log: log}
}

type recordingResponse struct {
	Title        string `json:"title"`
	ArtistCredit []struct {
		Name string `json:"name"`
	} `json:"artist-credit"`
	Releases []struct {
		ID           string `json:"id"`
		Title        string `json:"title"`
		Date         string `json:"date"`
		ReleaseGroup struct {
			PrimaryType string `json:"primary-type"`
		} `json:"release-group"`
	} `json:"releases"`
}

func (c *Client) get(ctx context.Context, path string, out any) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		c.log.Warn("build metadata request failed", "error", err)
		return false
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		c.log.Warn("metadata request failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("metadata returned non-200", "status", resp.StatusCode)
		return false
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.log.Warn("decode metadata response failed", "error", err)
		return false
	}
	return true
}

// ResolveRecording returns {artist, title} for id, or nil when unknown
// or on failure (spec.md §4.2).
func (c *Client) ResolveRecording(ctx context.Context, id string) *Recording {
	var body recordingResponse
	path := fmt.Sprintf("/ws/2/recording/%s?fmt=json&inc=artist-credits", url.PathEscape(id))
	if !c.get(ctx, path, &body) || len(body.ArtistCredit) == 0 {
		return nil
	}
	return &Recording{Artist: body.ArtistCredit[0].Name, Title: body.Title}
}

// ResolveRecordingToAlbum resolves id up to its containing album,
// preferring a release whose release-group type is "Album" over the
// first available release when several exist (spec.md §4.2).
func (c *Client) ResolveRecordingToAlbum(ctx context.Context, id string) *RecordingAlbum {
	var body recordingResponse
	path := fmt.Sprintf("/ws/2/recording/%s?fmt=json&inc=artist-credits+releases+release-groups", url.PathEscape(id))
	if !c.get(ctx, path, &body) || len(body.ArtistCredit) == 0 || len(body.Releases) == 0 {
		return nil
	}

	best := body.Releases[0]
	for _, r := range body.Releases {
		if r.ReleaseGroup.PrimaryType == "Album" {
			best = r
			break
		}
	}

	var year *int
	if len(best.Date) >= 4 {
		var y int
		if _, err := fmt.Sscanf(best.Date[:4], "%d", &y); err == nil {
			year = &y
		}
	}

	return &RecordingAlbum{
		Artist:     body.ArtistCredit[0].Name,
		AlbumTitle: best.Title,
		AlbumID:    best.ID,
		TrackTitle: body.Title,
		Year:       year,
	}
}

type releaseGroupSearchResponse struct {
	ReleaseGroups []struct {
		ID                string `json:"id"`
		Title             string `json:"title"`
		PrimaryType       string `json:"primary-type"`
		FirstReleaseDate  string `json:"first-release-date"`
	} `json:"release-groups"`
}

// SearchReleaseGroups returns up to limit release-groups by artist and
// type (e.g. "Album"), used by CatalogSimilarity to find albums for a
// newly discovered artist (spec.md §4.2, §4.7).
func (c *Client) SearchReleaseGroups(ctx context.Context, artist, releaseType string, limit int) []ReleaseGroup {
	query := fmt.Sprintf(`artist:"%s" AND primarytype:%s`, artist, releaseType)
	path := fmt.Sprintf("/ws/2/release-group?query=%s&limit=%d&fmt=json", url.QueryEscape(query), limit)

	var body releaseGroupSearchResponse
	if !c.get(ctx, path, &body) {
		return nil
	}

	out := make([]ReleaseGroup, 0, len(body.ReleaseGroups))
	for _, rg := range body.ReleaseGroups {
		var date *string
		if rg.FirstReleaseDate != "" {
			d := rg.FirstReleaseDate
			date = &d
		}
		out = append(out, ReleaseGroup{ID: rg.ID, Title: rg.Title, Type: rg.PrimaryType, FirstReleaseDate: date})
	}
	return out
}

// Package similarity adapts an artist-similarity lookup used by the
// catalog-discovery job (spec.md §4.2 Similarity).
package similarity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/cesargomez89/crateflow/internal/httpclient"
	"github.com/cesargomez89/crateflow/internal/logger"
)

// Match is one similar artist.
type Match struct {
	Name        string  `json:"name"`
	MatchScore  float64 `json:"match"`
	CanonicalID *string `json:"canonical_id,omitempty"`
}

type Client struct {
	baseURL string
	http    *httpclient.Client
	log     *logger.Logger
}

func New(baseURL string, httpClient *httpclient.Client, log *logger.Logger) *Client {
	return &Client{baseURL: baseURL, http: httpClient, log: log}
}

type similarResponse struct {
	Artists []struct {
		Name        string  `json:"name"`
		Score       float64 `json:"score"`
		CanonicalID *string `json:"mbid,omitempty"`
	} `json:"artists"`
}

// GetSimilar returns up to limit artists similar to artistName.
// Errors are logged, not propagated — the catalog-discovery job
// continues past whichever seed artist failed (spec.md §4.2).
func (c *Client) GetSimilar(ctx context.Context, artistName string, limit int) []Match {
	endpoint := fmt.Sprintf("%s/artist/%s/similar?limit=%d", c.baseURL, url.PathEscape(artistName), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.log.Warn("build similarity request failed", "artist", artistName, "error", err)
		return nil
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		c.log.Warn("similarity request failed", "artist", artistName, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("similarity returned non-200", "artist", artistName, "status", resp.StatusCode)
		return nil
	}

	var body similarResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.log.Warn("decode similarity response failed", "artist", artistName, "error", err)
		return nil
	}

	out := make([]Match, 0, len(body.Artists))
	for _, a := range body.Artists {
		out = append(out, Match{Name: a.Name, MatchScore: a.Score, CanonicalID: a.CanonicalID})
	}
	return out
}

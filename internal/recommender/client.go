// Package recommender adapts a ListenBrainz-style listening-history
// recommender (spec.md §4.2 Recommender).
package recommender

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cesargomez89/crateflow/internal/httpclient"
	"github.com/cesargomez89/crateflow/internal/logger"
)

// Recommendation is one candidate returned by fetchRecommendations.
type Recommendation struct {
	CanonicalID string   `json:"recording_mbid"`
	Score       *float64 `json:"score,omitempty"`
}

// Client is a stateless adapter; the user token is passed to each
// FetchRecommendations call rather than held here.
type Client struct {
	baseURL string
	http    *httpclient.Client
	log     *logger.Logger
}

func New(baseURL string, httpClient *httpclient.Client, log *logger.Logger) *Client {
	return &Client{baseURL: baseURL, http: httpClient, log: log}
}

type recommendationsResponse struct {
	Payload struct {
		MBIDs []struct {
			RecordingMBID string  `json:"recording_mbid"`
			Score         float64 `json:"score"`
		} `json:"mbids"`
	} `json:"payload"`
}

// FetchRecommendations returns up to count candidate recordings for
// user. A 204 response means "not enough history" and yields an empty
// list, never an error; any other failure also degrades to empty
// since the recommender is best-effort (spec.md §4.2).
func (c *Client) FetchRecommendations(ctx context.Context, user, token string, count int) []Recommendation {
	url := fmt.Sprintf("%s/1/cf/recommendation/user/%s/recording?count=%d", c.baseURL, user, count)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.log.Warn("build recommender request failed", "error", err)
		return nil
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		c.log.Warn("recommender request failed", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("recommender returned non-200", "status", resp.StatusCode)
		return nil
	}

	var body recommendationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.log.Warn("decode recommender response failed", "error", err)
		return nil
	}

	out := make([]Recommendation, 0, len(body.Payload.MBIDs))
	for _, m := range body.Payload.MBIDs {
		score := m.Score
		out = append(out, Recommendation{CanonicalID: m.RecordingMBID, Score: &score})
	}
	return out
}

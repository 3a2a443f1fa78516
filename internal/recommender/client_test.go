package recommender

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cesargomez89/crateflow/internal/httpclient"
	"github.com/cesargomez89/crateflow/internal/logger"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	hc := httpclient.NewClient(nil, 0)
	log := logger.New(logger.Config{Level: "error", Format: "text"})
	return New(srv.URL, hc, log)
}

func TestFetchRecommendations_ParsesPayload(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token abc" {
			t.Errorf("Authorization header = %q, want %q", got, "Token abc")
		}
		w.Write([]byte(`{"payload":{"mbids":[{"recording_mbid":"mbid-1","score":0.9}]}}`))
	}))

	got := c.FetchRecommendations(t.Context(), "alice", "abc", 25)
	if len(got) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(got))
	}
	if got[0].CanonicalID != "mbid-1" || *got[0].Score != 0.9 {
		t.Errorf("unexpected recommendation: %+v", got[0])
	}
}

func TestFetchRecommendations_NoContentYieldsEmptyNotError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	got := c.FetchRecommendations(t.Context(), "alice", "", 25)
	if got != nil {
		t.Errorf("expected nil recommendations on 204, got %v", got)
	}
}

func TestFetchRecommendations_ServerErrorYieldsEmpty(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	got := c.FetchRecommendations(t.Context(), "alice", "", 25)
	if got != nil {
		t.Errorf("expected nil recommendations on 500, got %v", got)
	}
}

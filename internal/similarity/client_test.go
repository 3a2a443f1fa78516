package similarity

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

func TestGetSimilar_ParsesArtists(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/artist/Pink Floyd/similar" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"artists":[{"name":"King Crimson","score":0.8,"mbid":"abc"}]}`))
	}))

	got := c.GetSimilar(t.Context(), "Pink Floyd", 10)
	if len(got) != 1 || got[0].Name != "King Crimson" || got[0].MatchScore != 0.8 {
		t.Fatalf("unexpected matches: %+v", got)
	}
	if got[0].CanonicalID == nil || *got[0].CanonicalID != "abc" {
		t.Errorf("expected canonical id abc, got %v", got[0].CanonicalID)
	}
}

func TestGetSimilar_NonOKYieldsEmpty(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	got := c.GetSimilar(t.Context(), "Pink Floyd", 10)
	if got != nil {
		t.Errorf("expected nil matches on non-200, got %v", got)
	}
}

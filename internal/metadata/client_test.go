package metadata

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

func TestResolveRecording_ReturnsArtistAndTitle(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title":"Money","artist-credit":[{"name":"Pink Floyd"}]}`))
	}))

	got := c.ResolveRecording(t.Context(), "mbid-1")
	if got == nil || got.Artist != "Pink Floyd" || got.Title != "Money" {
		t.Fatalf("unexpected recording: %+v", got)
	}
}

func TestResolveRecording_NotFoundYieldsNil(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	if got := c.ResolveRecording(t.Context(), "missing"); got != nil {
		t.Errorf("expected nil on 404, got %+v", got)
	}
}

func TestResolveRecordingToAlbum_PrefersAlbumTypeRelease(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"title":"Money",
			"artist-credit":[{"name":"Pink Floyd"}],
			"releases":[
				{"id":"single-1","title":"Money (Single)","date":"1973-05-01","release-group":{"primary-type":"Single"}},
				{"id":"album-1","title":"The Dark Side of the Moon","date":"1973-03-01","release-group":{"primary-type":"Album"}}
			]
		}`))
	}))

	got := c.ResolveRecordingToAlbum(t.Context(), "mbid-1")
	if got == nil {
		t.Fatal("expected a resolved album, got nil")
	}
	if got.AlbumID != "album-1" || got.AlbumTitle != "The Dark Side of the Moon" {
		t.Errorf("expected the Album-typed release to win, got %+v", got)
	}
	if got.Year == nil || *got.Year != 1973 {
		t.Errorf("expected year 1973, got %v", got.Year)
	}
}

func TestSearchReleaseGroups_ParsesResults(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"release-groups":[{"id":"rg-1","title":"Wish You Were Here","primary-type":"Album","first-release-date":"1975"}]}`))
	}))

	got := c.SearchReleaseGroups(t.Context(), "Pink Floyd", "Album", 5)
	if len(got) != 1 || got[0].ID != "rg-1" || got[0].Title != "Wish You Were Here" {
		t.Fatalf("unexpected release groups: %+v", got)
	}
}

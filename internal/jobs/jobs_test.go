package jobs

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/cesargomez89/crateflow/internal/config"
	"github.com/cesargomez89/crateflow/internal/httpclient"
	"github.com/cesargomez89/crateflow/internal/logger"
	"github.com/cesargomez89/crateflow/internal/store"
)

func setupTestDB(t *testing.T) *store.DB {
	t.Helper()
	path := t.TempDir() + "/test.db"
	db, err := store.NewSQLiteDB(path)
	if err != nil {
		t.Fatalf("NewSQLiteDB failed: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		os.Remove(path)
	})
	return db
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "text"})
}

func testHTTPClient() *httpclient.Client {
	return httpclient.NewClient(&http.Client{Timeout: 2 * time.Second}, time.Millisecond)
}

func testConfig() *config.Config {
	return &config.Config{
		Mode:              "album",
		FetchCount:        10,
		MinScore:          0,
		QueueApprovalMode: "manual",
		CatalogDiscovery: config.CatalogDiscoveryConfig{
			Enabled:          true,
			MinSimilarity:    0,
			MaxArtistsPerRun: 5,
			AlbumsPerArtist:  2,
		},
	}
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

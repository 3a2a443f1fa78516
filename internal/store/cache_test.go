package store

import (
	"context"
	"testing"
	"time"
)

func TestCache_SetGetRoundTrips(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.SetCache(ctx, "k1", []byte("hello"), time.Hour); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}

	got, err := db.GetCache("k1")
	if err != nil {
		t.Fatalf("GetCache failed: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("GetCache = %q, want %q", got, "hello")
	}
}

func TestCache_GetMissingKeyReturnsNil(t *testing.T) {
	db := newTestDB(t)

	got, err := db.GetCache("missing")
	if err != nil {
		t.Fatalf("GetCache failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing key, got %q", got)
	}
}

func TestCache_ExpiredEntryIsTreatedAsMiss(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.SetCache(ctx, "k1", []byte("stale"), -time.Hour); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}

	got, err := db.GetCache("k1")
	if err != nil {
		t.Fatalf("GetCache failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected expired entry to read as miss, got %q", got)
	}
}

func TestCache_SetOverwritesExistingKey(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.SetCache(ctx, "k1", []byte("first"), time.Hour); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}
	if err := db.SetCache(ctx, "k1", []byte("second"), time.Hour); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}

	got, err := db.GetCache("k1")
	if err != nil {
		t.Fatalf("GetCache failed: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("GetCache = %q, want %q", got, "second")
	}
}

func TestCache_ClearRemovesAllEntries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.SetCache(ctx, "k1", []byte("a"), time.Hour); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}
	if err := db.SetCache(ctx, "k2", []byte("b"), time.Hour); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}

	if err := db.ClearCache(ctx); err != nil {
		t.Fatalf("ClearCache failed: %v", err)
	}

	for _, key := range []string{"k1", "k2"} {
		got, err := db.GetCache(key)
		if err != nil {
			t.Fatalf("GetCache(%q) failed: %v", key, err)
		}
		if got != nil {
			t.Errorf("expected %q cleared, got %q", key, got)
		}
	}
}

func TestCache_NoTTLNeverExpires(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.SetCache(ctx, "k1", []byte("forever"), 0); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}

	got, err := db.GetCache("k1")
	if err != nil {
		t.Fatalf("GetCache failed: %v", err)
	}
	if string(got) != "forever" {
		t.Errorf("GetCache = %q, want %q", got, "forever")
	}
}

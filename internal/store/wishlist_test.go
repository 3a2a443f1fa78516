package store

import (
	"context"
	"testing"

	"github.com/cesargomez89/crateflow/internal/apperr"
	"github.com/cesargomez89/crateflow/internal/domain"
)

func TestAddWishlistItem_AssignsIDAndAddedAt(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	item := &domain.WishlistItem{Artist: "Portishead", Album: "Dummy", Type: domain.ItemTypeAlbum}
	if err := db.AddWishlistItem(ctx, item); err != nil {
		t.Fatalf("AddWishlistItem failed: %v", err)
	}
	if item.ID == "" {
		t.Fatal("expected AddWishlistItem to assign an id")
	}
	if item.AddedAt.IsZero() {
		t.Fatal("expected AddWishlistItem to stamp added_at")
	}

	fetched, err := db.GetWishlistItem(item.ID)
	if err != nil {
		t.Fatalf("GetWishlistItem failed: %v", err)
	}
	if fetched.Artist != "Portishead" {
		t.Fatalf("expected artist Portishead, got %q", fetched.Artist)
	}
}

func TestUpdateWishlistItem_PatchesOnlySetFields(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	item := &domain.WishlistItem{Artist: "Massive Attack", Album: "Mezzanine", Type: domain.ItemTypeAlbum}
	if err := db.AddWishlistItem(ctx, item); err != nil {
		t.Fatalf("AddWishlistItem failed: %v", err)
	}

	newAlbum := "Mezzanine (Deluxe)"
	if err := db.UpdateWishlistItem(ctx, item.ID, WishlistPatch{Album: &newAlbum}); err != nil {
		t.Fatalf("UpdateWishlistItem failed: %v", err)
	}

	fetched, err := db.GetWishlistItem(item.ID)
	if err != nil {
		t.Fatalf("GetWishlistItem failed: %v", err)
	}
	if fetched.Album != newAlbum {
		t.Fatalf("expected album to be patched, got %q", fetched.Album)
	}
	if fetched.Artist != "Massive Attack" {
		t.Fatalf("expected artist to be unchanged, got %q", fetched.Artist)
	}
}

func TestUpdateWishlistItem_UnknownIDReturnsNotFound(t *testing.T) {
	db := newTestDB(t)
	newArtist := "Nobody"
	err := db.UpdateWishlistItem(context.Background(), "missing-id", WishlistPatch{Artist: &newArtist})
	if apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestDeleteWishlistItem_RemovesRow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	item := &domain.WishlistItem{Artist: "Boards of Canada", Album: "Geogaddi", Type: domain.ItemTypeAlbum}
	if err := db.AddWishlistItem(ctx, item); err != nil {
		t.Fatalf("AddWishlistItem failed: %v", err)
	}

	if err := db.DeleteWishlistItem(ctx, item.ID); err != nil {
		t.Fatalf("DeleteWishlistItem failed: %v", err)
	}
	if _, err := db.GetWishlistItem(item.ID); err == nil {
		t.Fatal("expected GetWishlistItem to fail after delete")
	}
}

func TestDeleteWishlistItem_UnknownIDReturnsNotFound(t *testing.T) {
	db := newTestDB(t)
	err := db.DeleteWishlistItem(context.Background(), "missing-id")
	if apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestListUnprocessedWishlistItems_ExcludesProcessed(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := &domain.WishlistItem{Artist: "Aphex Twin", Album: "Selected Ambient Works", Type: domain.ItemTypeAlbum}
	b := &domain.WishlistItem{Artist: "Burial", Album: "Untrue", Type: domain.ItemTypeAlbum}
	if err := db.AddWishlistItem(ctx, a); err != nil {
		t.Fatalf("AddWishlistItem a failed: %v", err)
	}
	if err := db.AddWishlistItem(ctx, b); err != nil {
		t.Fatalf("AddWishlistItem b failed: %v", err)
	}
	if err := db.MarkWishlistProcessed(ctx, a.ID); err != nil {
		t.Fatalf("MarkWishlistProcessed failed: %v", err)
	}

	unprocessed, err := db.ListUnprocessedWishlistItems()
	if err != nil {
		t.Fatalf("ListUnprocessedWishlistItems failed: %v", err)
	}
	if len(unprocessed) != 1 || unprocessed[0].ID != b.ID {
		t.Fatalf("expected only %s unprocessed, got %+v", b.ID, unprocessed)
	}
}

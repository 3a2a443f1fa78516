// Package wishlist is the thin service layer over approved
// WishlistItems (spec.md §4.4 C4), mirroring navidrums'
// app.DownloadsService shape.
package wishlist

import (
	"context"
	"encoding/json"

	"github.com/cesargomez89/crateflow/internal/domain"
	"github.com/cesargomez89/crateflow/internal/logger"
	"github.com/cesargomez89/crateflow/internal/store"
)

type Service struct {
	Repo   *store.DB
	Logger *logger.Logger
}

func NewService(repo *store.DB, log *logger.Logger) *Service {
	return &Service{Repo: repo, Logger: log}
}

func (s *Service) Get(id string) (*domain.WishlistItem, error) {
	return s.Repo.GetWishlistItem(id)
}

func (s *Service) List() ([]*domain.WishlistItem, error) {
	return s.Repo.ListWishlistItems()
}

// Unprocessed returns wishlist items not yet assigned a DownloadTask,
// the candidate set driven by the DownloadDriver job (spec.md §4.7).
func (s *Service) Unprocessed() ([]*domain.WishlistItem, error) {
	return s.Repo.ListUnprocessedWishlistItems()
}

// Add inserts a manually-added wishlist item (spec.md §6 "add(item)").
func (s *Service) Add(ctx context.Context, item *domain.WishlistItem) error {
	return s.Repo.AddWishlistItem(ctx, item)
}

// Update applies a partial update to id (spec.md §6 "update(id, patch)").
func (s *Service) Update(ctx context.Context, id string, patch store.WishlistPatch) error {
	return s.Repo.UpdateWishlistItem(ctx, id, patch)
}

// Delete removes id (spec.md §6 "delete(id)").
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.Repo.DeleteWishlistItem(ctx, id)
}

// BulkDelete removes every id, collecting per-id errors rather than
// aborting the batch (spec.md §6 "bulkDelete").
func (s *Service) BulkDelete(ctx context.Context, ids []string) (int, []error) {
	var errs []error
	deleted := 0
	for _, id := range ids {
		if err := s.Repo.DeleteWishlistItem(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
	}
	return deleted, errs
}

// BulkRequeue clears processed_at for every id (spec.md §6 "bulkRequeue").
func (s *Service) BulkRequeue(ctx context.Context, ids []string) (int, []error) {
	var errs []error
	requeued := 0
	for _, id := range ids {
		if err := s.Repo.Requeue(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		requeued++
	}
	return requeued, errs
}

func (s *Service) Requeue(ctx context.Context, id string) error {
	return s.Repo.Requeue(ctx, id)
}

func (s *Service) MarkProcessed(ctx context.Context, id string) error {
	return s.Repo.MarkWishlistProcessed(ctx, id)
}

func (s *Service) Import(ctx context.Context, items []*domain.WishlistItem) ([]store.ImportResult, error) {
	return s.Repo.Import(ctx, items)
}

// Export returns every wishlist item as JSON (spec.md §4.4 "Export
// returns JSON").
func (s *Service) Export() ([]byte, error) {
	items, err := s.Repo.ListWishlistItems()
	if err != nil {
		return nil, err
	}
	return json.Marshal(items)
}

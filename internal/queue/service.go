// Package queue is the thin service layer over the discovery queue
// (spec.md §4.3 C3), mirroring navidrums' app.DownloadsService shape:
// a struct holding the repo and logger, one method per operation.
package queue

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cesargomez89/crateflow/internal/domain"
	"github.com/cesargomez89/crateflow/internal/library"
	"github.com/cesargomez89/crateflow/internal/logger"
	"github.com/cesargomez89/crateflow/internal/store"
)

// libraryArtistsCacheKey/TTL back the dedup check below. Shorter than
// C7's similarity/release-group TTLs (internal/jobs/catalog_similarity.go)
// since library membership changes on every import, not once a day.
const (
	libraryArtistsCacheKey = "library:artists"
	libraryArtistsCacheTTL = 10 * time.Minute
)

type Service struct {
	Repo   *store.DB
	Lib    *library.Client
	Logger *logger.Logger

	// DefaultHideInLibrary is the server-side default for getPending's
	// hide_in_library flag when the caller doesn't specify one
	// (spec.md §4.3, config.LibraryDuplicateConfig.HideInLibrary).
	DefaultHideInLibrary bool
}

func NewService(repo *store.DB, lib *library.Client, defaultHideInLibrary bool, log *logger.Logger) *Service {
	return &Service{Repo: repo, Lib: lib, DefaultHideInLibrary: defaultHideInLibrary, Logger: log}
}

// GetPending serves spec.md §4.3 getPending. hideInLibrary overrides
// DefaultHideInLibrary when non-nil (the caller explicitly passed
// ?hide_in_library=...).
func (s *Service) GetPending(ctx context.Context, params store.QueueListParams, hideInLibrary *bool) ([]*domain.QueueItem, int, error) {
	effective := s.DefaultHideInLibrary
	if hideInLibrary != nil {
		effective = *hideInLibrary
	}
	if effective {
		params.HideInLibrary = true
		params.InLibraryArtists = s.libraryArtistNames(ctx)
	}
	return s.Repo.GetPending(params)
}

func (s *Service) AddPending(ctx context.Context, item *domain.QueueItem) error {
	return s.Repo.AddPending(ctx, item)
}

func (s *Service) Approve(ctx context.Context, ids []int64) (int, error) {
	return s.Repo.Approve(ctx, ids)
}

func (s *Service) ApproveAll(ctx context.Context) (int, error) {
	return s.Repo.ApproveAll(ctx)
}

func (s *Service) Reject(ctx context.Context, ids []int64) (int, error) {
	return s.Repo.Reject(ctx, ids)
}

func (s *Service) FindPendingID(canonicalID string) (int64, bool, error) {
	return s.Repo.FindPendingID(canonicalID)
}

func (s *Service) IsPending(canonicalID string) (bool, error) {
	return s.Repo.IsPending(canonicalID)
}

func (s *Service) IsRejected(canonicalID string) (bool, error) {
	return s.Repo.IsRejected(canonicalID)
}

func (s *Service) WasProcessed(canonicalID string) (bool, error) {
	return s.Repo.WasProcessed(canonicalID)
}

func (s *Service) MarkProcessed(ctx context.Context, canonicalID string) error {
	return s.Repo.MarkProcessed(ctx, canonicalID)
}

// Stats serves spec.md §4.3 "stats() → {pending, approved, rejected,
// in_library}".
func (s *Service) Stats(ctx context.Context) (*store.QueueStats, error) {
	return s.Repo.Stats(s.libraryArtistNames(ctx))
}

// libraryArtistNames returns every library artist name, cached to
// spare the library client a round-trip on every queue request
// (spec.md §5 rate-limit discipline applies to every C2 client, not
// just the ones with explicit pacing).
func (s *Service) libraryArtistNames(ctx context.Context) []string {
	if s.Lib == nil {
		return nil
	}
	if cached, err := s.Repo.GetCache(libraryArtistsCacheKey); err == nil && cached != nil {
		var names []string
		if err := json.Unmarshal(cached, &names); err == nil {
			return names
		}
	}

	refs := s.Lib.ListArtists(ctx)
	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, strings.ToLower(name))
	}

	if data, err := json.Marshal(names); err == nil {
		_ = s.Repo.SetCache(ctx, libraryArtistsCacheKey, data, libraryArtistsCacheTTL)
	}
	return names
}

// Package domain holds the persistence-layer entities shared by every
// component: the queue of candidate recommendations, the approved
// wishlist, and the download tasks that acquire them (spec.md §3).
package domain

import "time"

// ItemType distinguishes album-level from track-level acquisitions.
type ItemType string

const (
	ItemTypeAlbum ItemType = "album"
	ItemTypeTrack ItemType = "track"
)

// QueueStatus is the lifecycle of a QueueItem.
type QueueStatus string

const (
	QueueStatusPending  QueueStatus = "pending"
	QueueStatusApproved QueueStatus = "approved"
	QueueStatusRejected QueueStatus = "rejected"
)

// QueueSource names where a recommendation candidate originated.
type QueueSource string

const (
	QueueSourceRecommender QueueSource = "recommender"
	QueueSourceCatalog     QueueSource = "catalog"
)

// QueueItem is a candidate recommendation awaiting approval or
// rejection (spec.md §3, §4.3).
type QueueItem struct {
	ID            int64       `json:"id" db:"id"`
	CanonicalID   string      `json:"canonical_id" db:"canonical_id"`
	Artist        string      `json:"artist" db:"artist"`
	Album         *string     `json:"album,omitempty" db:"album"`
	Title         *string     `json:"title,omitempty" db:"title"`
	Type          ItemType    `json:"type" db:"type"`
	Status        QueueStatus `json:"status" db:"status"`
	Score         *float64    `json:"score,omitempty" db:"score"`
	Source        QueueSource `json:"source" db:"source"`
	SimilarTo     StringSlice `json:"similar_to,omitempty" db:"similar_to"`
	SourceTrack   *string     `json:"source_track,omitempty" db:"source_track"`
	CoverURL      *string     `json:"cover_url,omitempty" db:"cover_url"`
	Year          *int        `json:"year,omitempty" db:"year"`
	AddedAt       time.Time   `json:"added_at" db:"added_at"`
	ProcessedAt   *time.Time  `json:"processed_at,omitempty" db:"processed_at"`
}

// ProcessedRecording is a dedup marker: a canonical_id already emitted
// by a discovery source, so it is never re-offered (spec.md §3).
type ProcessedRecording struct {
	CanonicalID string    `json:"canonical_id" db:"canonical_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// CatalogArtist mirrors one artist already present in the user's
// library, keyed by lowercased name (spec.md §3).
type CatalogArtist struct {
	NameLower    string    `json:"name_lower" db:"name_lower"`
	Name         string    `json:"name" db:"name"`
	ExternalID   string    `json:"external_id" db:"external_id"`
	LastSyncedAt time.Time `json:"last_synced_at" db:"last_synced_at"`
}

// DiscoveredArtist records the lowercased name of an artist already
// considered by the catalog-similarity job, preventing re-discovery
// (spec.md §3).
type DiscoveredArtist struct {
	NameLower   string    `json:"name_lower" db:"name_lower"`
	DiscoveredAt time.Time `json:"discovered_at" db:"discovered_at"`
}

// WishlistItem is an approved acquisition intent (spec.md §3, §4.4).
type WishlistItem struct {
	ID          string      `json:"id" db:"id"`
	Artist      string      `json:"artist" db:"artist"`
	Album       string      `json:"album" db:"album"`
	Type        ItemType    `json:"type" db:"type"`
	Year        *int        `json:"year,omitempty" db:"year"`
	CanonicalID *string     `json:"canonical_id,omitempty" db:"canonical_id"`
	Source      *QueueSource `json:"source,omitempty" db:"source"`
	CoverURL    *string     `json:"cover_url,omitempty" db:"cover_url"`
	AddedAt     time.Time   `json:"added_at" db:"added_at"`
	ProcessedAt *time.Time  `json:"processed_at,omitempty" db:"processed_at"`
}

// DownloadStatus is the Download Engine's FSM state (spec.md §4.5).
type DownloadStatus string

const (
	DownloadStatusPending           DownloadStatus = "pending"
	DownloadStatusSearching         DownloadStatus = "searching"
	DownloadStatusPendingSelection  DownloadStatus = "pending_selection"
	DownloadStatusDeferred          DownloadStatus = "deferred"
	DownloadStatusQueued            DownloadStatus = "queued"
	DownloadStatusDownloading       DownloadStatus = "downloading"
	DownloadStatusCompleted         DownloadStatus = "completed"
	DownloadStatusFailed            DownloadStatus = "failed"
)

// QualityTier classifies a candidate's audio quality (spec.md §4.5
// "Quality extraction").
type QualityTier string

const (
	QualityTierLossless QualityTier = "lossless"
	QualityTierHigh     QualityTier = "high"
	QualityTierStandard QualityTier = "standard"
	QualityTierLow      QualityTier = "low"
	QualityTierUnknown  QualityTier = "unknown"
)

// DownloadTask tracks the acquisition state of one WishlistItem
// (spec.md §3, §4.5).
type DownloadTask struct { //nolint:govet // field ordering prioritizes readability over memory alignment
	ID                 string         `json:"id" db:"id"`
	WishlistItemID     string         `json:"wishlist_item_id" db:"wishlist_item_id"`
	WishlistKey        string         `json:"wishlist_key" db:"wishlist_key"`
	Status             DownloadStatus `json:"status" db:"status"`
	SearchQuery        *string        `json:"search_query,omitempty" db:"search_query"`
	SearchResults       RawJSON        `json:"search_results,omitempty" db:"search_results"`
	SelectionExpiresAt *time.Time     `json:"selection_expires_at,omitempty" db:"selection_expires_at"`
	SkippedUsernames   StringSlice    `json:"skipped_usernames,omitempty" db:"skipped_usernames"`
	PeerUsername       *string        `json:"peer_username,omitempty" db:"peer_username"`
	PeerDirectory      *string        `json:"peer_directory,omitempty" db:"peer_directory"`
	FileCount          *int           `json:"file_count,omitempty" db:"file_count"`
	ExpectedTrackCount *int           `json:"expected_track_count,omitempty" db:"expected_track_count"`
	QualityTier        *QualityTier   `json:"quality_tier,omitempty" db:"quality_tier"`
	QualityFormat      *string        `json:"quality_format,omitempty" db:"quality_format"`
	QualityBitRate     *int           `json:"quality_bit_rate,omitempty" db:"quality_bit_rate"`
	QualityBitDepth    *int           `json:"quality_bit_depth,omitempty" db:"quality_bit_depth"`
	QualitySampleRate  *int           `json:"quality_sample_rate,omitempty" db:"quality_sample_rate"`
	DownloadPath       *string        `json:"download_path,omitempty" db:"download_path"`
	ErrorMessage       *string        `json:"error_message,omitempty" db:"error_message"`
	RetryCount         int            `json:"retry_count" db:"retry_count"`
	QueuedAt           time.Time      `json:"queued_at" db:"queued_at"`
	StartedAt          *time.Time     `json:"started_at,omitempty" db:"started_at"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
	OrganizedAt        *time.Time     `json:"organized_at,omitempty" db:"organized_at"`
}

// IsTerminal reports whether status can no longer transition without
// external intervention (used by the driver job to skip finished
// tasks).
func (s DownloadStatus) IsTerminal() bool {
	return s == DownloadStatusCompleted || s == DownloadStatusFailed
}

// TransferProgress is the aggregated per-task progress computed from
// peer transfer telemetry (spec.md §4.5 "Progress tracking"). It is
// derived, not persisted.
type TransferProgress struct {
	FilesCompleted         int
	FilesTotal             int
	BytesTransferred       int64
	BytesTotal             int64
	AverageSpeed           float64
	EstimatedTimeRemaining *time.Duration
}

// JobRunStatus is the bookkeeping state of one scheduled job
// (spec.md §4.6).
type JobRunStatus string

const (
	JobRunStatusIdle    JobRunStatus = "idle"
	JobRunStatusRunning JobRunStatus = "running"
)

// JobRun is the scheduler's persisted bookkeeping row for a named job:
// last/next run times, the reentrancy guard, and the cooperative abort
// flag (spec.md §4.6).
type JobRun struct {
	Name        string       `json:"name" db:"name"`
	CronExpr    string       `json:"cron_expr" db:"cron_expr"`
	Status      JobRunStatus `json:"status" db:"status"`
	Aborted     bool         `json:"aborted" db:"aborted"`
	LastRunAt   *time.Time   `json:"last_run_at,omitempty" db:"last_run_at"`
	LastError   *string      `json:"last_error,omitempty" db:"last_error"`
	NextRunAt   *time.Time   `json:"next_run_at,omitempty" db:"next_run_at"`
	RunCount    int64        `json:"run_count" db:"run_count"`
}

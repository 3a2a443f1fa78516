// Package config loads and validates the application configuration
// document described in spec.md §6: {debug, mode, fetch_count,
// min_score, listenbrainz, slskd, catalog_discovery,
// library_duplicate, library_organize, preview, ui}.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the structured configuration document. Fields are grouped
// into the sections named by spec.md §6; nesting maps to an
// underscore-joined env var name via envconfig (e.g.
// CRATEFLOW_SLSKD_HOST).
type Config struct {
	Debug bool `envconfig:"DEBUG" default:"false"`

	// Mode controls whether discovery operates on whole albums or
	// individual tracks.
	Mode string `envconfig:"MODE" default:"album"`

	FetchCount int     `envconfig:"FETCH_COUNT" default:"25"`
	MinScore   float64 `envconfig:"MIN_SCORE" default:"0.3"`

	// QueueApprovalMode controls whether RecommenderFetch/CatalogSimilarity
	// land candidates in the pending queue ("manual") or approve them
	// straight onto the wishlist ("auto") (spec.md §4.7).
	QueueApprovalMode string `envconfig:"QUEUE_APPROVAL_MODE" default:"manual"`

	Port   string `envconfig:"PORT" default:"8080"`
	DBPath string `envconfig:"DB_PATH" default:"crateflow.db"`

	DownloadsDir string `envconfig:"DOWNLOADS_DIR" default:"downloads"`
	IncomingDir  string `envconfig:"INCOMING_DIR" default:"incoming"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	Listenbrainz     ListenbrainzConfig
	Library          LibraryConfig
	Similarity       SimilarityConfig
	Metadata         MetadataConfig
	CoverArt         CoverArtConfig
	Slskd            SlskdConfig
	CatalogDiscovery CatalogDiscoveryConfig
	LibraryDuplicate LibraryDuplicateConfig
	LibraryOrganize  LibraryOrganizeConfig
	Preview          PreviewConfig
	UI               UIConfig
}

// LibraryConfig backs the Library client (§4.2), a Subsonic-style
// catalog (the teacher's ProviderURL/Username/Password).
type LibraryConfig struct {
	BaseURL  string `envconfig:"LIBRARY_BASE_URL" default:"http://127.0.0.1:4533"`
	Username string `envconfig:"LIBRARY_USERNAME"`
	Password string `envconfig:"LIBRARY_PASSWORD"`
}

// SimilarityConfig backs the Similarity client (§4.2), a Last.fm-style
// artist-similarity service.
type SimilarityConfig struct {
	BaseURL string `envconfig:"SIMILARITY_BASE_URL" default:"https://ws.audioscrobbler.com/2.0"`
}

// MetadataConfig backs the Metadata client (§4.2), grounded on the
// teacher's MusicBrainzURL.
type MetadataConfig struct {
	BaseURL string `envconfig:"METADATA_BASE_URL" default:"https://musicbrainz.org/ws/2"`
}

// CoverArtConfig backs the CoverArt client (§4.2), a deterministic URL
// builder against the Cover Art Archive.
type CoverArtConfig struct {
	BaseURL string `envconfig:"COVERART_BASE_URL" default:"https://coverartarchive.org"`
}

// ListenbrainzConfig backs the Recommender client (§4.2).
type ListenbrainzConfig struct {
	BaseURL string `envconfig:"LISTENBRAINZ_BASE_URL" default:"https://api.listenbrainz.org"`
	User    string `envconfig:"LISTENBRAINZ_USER"`
	Token   string `envconfig:"LISTENBRAINZ_TOKEN"`
}

// SlskdConfig backs the PeerSearch client (§4.2) and the Download
// Engine's selection defaults (§4.5).
type SlskdConfig struct {
	Host                 string        `envconfig:"SLSKD_HOST" default:"http://127.0.0.1:5030"`
	Username             string        `envconfig:"SLSKD_USERNAME"`
	Password             string        `envconfig:"SLSKD_PASSWORD"`
	SelectionMode        string        `envconfig:"SLSKD_SELECTION_MODE" default:"auto"`
	SelectionTimeout     time.Duration `envconfig:"SLSKD_SELECTION_TIMEOUT" default:"6h"`
	MinFileSizeMB        float64       `envconfig:"SLSKD_MIN_FILE_SIZE_MB" default:"0"`
	MaxFileSizeMB        float64       `envconfig:"SLSKD_MAX_FILE_SIZE_MB" default:"1024"`
	PreferredFormats     []string      `envconfig:"SLSKD_PREFERRED_FORMATS"`
	MinBitRate           int           `envconfig:"SLSKD_MIN_BIT_RATE" default:"0"`
	RejectLossless       bool          `envconfig:"SLSKD_REJECT_LOSSLESS" default:"false"`
	RejectLowQuality     bool          `envconfig:"SLSKD_REJECT_LOW_QUALITY" default:"false"`
	PenalizeExcess       bool          `envconfig:"SLSKD_PENALIZE_EXCESS" default:"true"`
	RequireComplete      bool          `envconfig:"SLSKD_REQUIRE_COMPLETE" default:"false"`
	MinCompletenessRatio float64       `envconfig:"SLSKD_MIN_COMPLETENESS_RATIO" default:"0.8"`
	CompletenessWeight   float64       `envconfig:"SLSKD_COMPLETENESS_WEIGHT" default:"200"`
	FileCountScoreCap    float64       `envconfig:"SLSKD_FILE_COUNT_SCORE_CAP" default:"200"`
	SimplifyOnRetry      bool          `envconfig:"SLSKD_SIMPLIFY_ON_RETRY" default:"true"`
	ExcludeTerms         []string      `envconfig:"SLSKD_EXCLUDE_TERMS"`
	PreferAlbumFolder    bool          `envconfig:"SLSKD_PREFER_ALBUM_FOLDER" default:"true"`
	RetryDelay           time.Duration `envconfig:"SLSKD_RETRY_DELAY" default:"15m"`
	MaxRetries           int           `envconfig:"SLSKD_MAX_RETRIES" default:"5"`
}

// CatalogDiscoveryConfig backs the CatalogSimilarity job (§4.7).
type CatalogDiscoveryConfig struct {
	Enabled          bool    `envconfig:"CATALOG_DISCOVERY_ENABLED" default:"true"`
	MinSimilarity    float64 `envconfig:"CATALOG_DISCOVERY_MIN_SIMILARITY" default:"0.3"`
	MaxArtistsPerRun int     `envconfig:"CATALOG_DISCOVERY_MAX_ARTISTS_PER_RUN" default:"5"`
	AlbumsPerArtist  int     `envconfig:"CATALOG_DISCOVERY_ALBUMS_PER_ARTIST" default:"3"`
}

// LibraryDuplicateConfig gates whether wishlist additions already
// present in the user's library are hidden from the pending queue.
type LibraryDuplicateConfig struct {
	HideInLibrary bool `envconfig:"LIBRARY_DUPLICATE_HIDE" default:"true"`
}

// LibraryOrganizeConfig names the opaque out-of-scope file-organization
// command invoked after a DownloadTask completes (spec.md §1).
type LibraryOrganizeConfig struct {
	Command string `envconfig:"LIBRARY_ORGANIZE_COMMAND"`
}

// PreviewConfig controls best-effort audio preview enrichment, which
// degrades silently on failure like all of C2 (spec.md §7).
type PreviewConfig struct {
	Enabled bool `envconfig:"PREVIEW_ENABLED" default:"false"`
}

// UIConfig is opaque passthrough for the (out of scope) browser UI.
type UIConfig struct {
	Theme string `envconfig:"UI_THEME" default:"dark"`
}

// Load reads configuration from CRATEFLOW_-prefixed environment
// variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("CRATEFLOW", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return &cfg, nil
}

// Validate aggregates every configuration problem into a single error,
// mirroring the teacher's multi-error style.
func (c *Config) Validate() error {
	var errs []string

	if c.Mode != "album" && c.Mode != "track" {
		errs = append(errs, fmt.Sprintf("MODE must be album or track, got: %s", c.Mode))
	}
	if c.FetchCount <= 0 {
		errs = append(errs, "FETCH_COUNT must be greater than 0")
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		errs = append(errs, "MIN_SCORE must be in [0,1]")
	}
	if c.QueueApprovalMode != "auto" && c.QueueApprovalMode != "manual" {
		errs = append(errs, fmt.Sprintf("QUEUE_APPROVAL_MODE must be auto or manual, got: %s", c.QueueApprovalMode))
	}
	if c.DBPath == "" {
		errs = append(errs, "DB_PATH cannot be empty")
	}
	if c.DownloadsDir == "" {
		errs = append(errs, "DOWNLOADS_DIR cannot be empty")
	}
	if c.IncomingDir == "" {
		errs = append(errs, "INCOMING_DIR cannot be empty")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}
	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.LogFormat] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be one of: text, json, got: %s", c.LogFormat))
	}

	if c.Slskd.Host == "" {
		errs = append(errs, "SLSKD_HOST cannot be empty")
	} else if _, err := url.Parse(c.Slskd.Host); err != nil {
		errs = append(errs, fmt.Sprintf("SLSKD_HOST is not a valid URL: %s", c.Slskd.Host))
	}
	if c.Slskd.SelectionMode != "auto" && c.Slskd.SelectionMode != "manual" {
		errs = append(errs, fmt.Sprintf("SLSKD_SELECTION_MODE must be auto or manual, got: %s", c.Slskd.SelectionMode))
	}
	if c.Slskd.MinFileSizeMB < 0 || c.Slskd.MaxFileSizeMB <= c.Slskd.MinFileSizeMB {
		errs = append(errs, "SLSKD_MAX_FILE_SIZE_MB must be greater than SLSKD_MIN_FILE_SIZE_MB")
	}
	if c.Slskd.MinCompletenessRatio < 0 || c.Slskd.MinCompletenessRatio > 1 {
		errs = append(errs, "SLSKD_MIN_COMPLETENESS_RATIO must be in [0,1]")
	}

	if c.CatalogDiscovery.Enabled {
		if c.CatalogDiscovery.MinSimilarity < 0 || c.CatalogDiscovery.MinSimilarity > 1 {
			errs = append(errs, "CATALOG_DISCOVERY_MIN_SIMILARITY must be in [0,1]")
		}
		if c.CatalogDiscovery.MaxArtistsPerRun <= 0 {
			errs = append(errs, "CATALOG_DISCOVERY_MAX_ARTISTS_PER_RUN must be greater than 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Redacted returns a representation of the configuration suitable for
// external reads, with secrets replaced (spec.md §6: "Secrets are
// redacted in any external read of configuration").
func (c *Config) Redacted() map[string]any {
	const redacted = "[REDACTED]"
	slskdPassword := c.Slskd.Password
	lbToken := c.Listenbrainz.Token
	libraryPassword := c.Library.Password
	if slskdPassword != "" {
		slskdPassword = redacted
	}
	if lbToken != "" {
		lbToken = redacted
	}
	if libraryPassword != "" {
		libraryPassword = redacted
	}
	return map[string]any{
		"debug":               c.Debug,
		"mode":                c.Mode,
		"fetch_count":         c.FetchCount,
		"min_score":           c.MinScore,
		"queue_approval_mode": c.QueueApprovalMode,
		"listenbrainz": map[string]any{
			"base_url": c.Listenbrainz.BaseURL,
			"user":     c.Listenbrainz.User,
			"token":    lbToken,
		},
		"library": map[string]any{
			"base_url": c.Library.BaseURL,
			"username": c.Library.Username,
			"password": libraryPassword,
		},
		"similarity": map[string]any{"base_url": c.Similarity.BaseURL},
		"metadata":   map[string]any{"base_url": c.Metadata.BaseURL},
		"coverart":   map[string]any{"base_url": c.CoverArt.BaseURL},
		"slskd": map[string]any{
			"host":           c.Slskd.Host,
			"username":       c.Slskd.Username,
			"password":       slskdPassword,
			"selection_mode": c.Slskd.SelectionMode,
		},
		"catalog_discovery": c.CatalogDiscovery,
		"library_duplicate": c.LibraryDuplicate,
		"library_organize":  map[string]any{"configured": c.LibraryOrganize.Command != ""},
		"preview":           c.Preview,
		"ui":                c.UI,
	}
}

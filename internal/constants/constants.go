// Package constants holds application-wide defaults to avoid magic
// numbers and strings scattered across the core.
package constants

import "time"

// Application defaults
const (
	DefaultPort         = "8080"
	DefaultDBPath       = "crateflow.db"
	DefaultDownloadsDir = "downloads"
	DefaultIncomingDir  = "incoming"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
)

// Write-token / store-busy timing (§4.1).
const (
	WriteTokenTimeout = 5 * time.Second
)

// Rate limiting (§5).
const (
	SimilarityMinInterval  = 1 * time.Second
	MetadataMinInterval    = 1 * time.Second
	CoverArtMinInterval    = 500 * time.Millisecond
	PeerSearchPollInterval = 1 * time.Second
	PeerSearchMaxWait      = 20 * time.Second
	PeerSearchTimeoutMs    = 15000
)

const (
	DefaultRetryCount = 3
	DefaultRetryBase  = 1 * time.Second
)

// Download-driver tick interval (§4.7).
const DefaultDriverPollInterval = 2 * time.Second

// Quality tiers (§4.5).
const (
	QualityLossless = "lossless"
	QualityHigh     = "high"
	QualityStandard = "standard"
	QualityLow      = "low"
	QualityUnknown  = "unknown"
)

// Scoring weights (§4.5 "Result scoring").
const (
	SlotAvailableScore  = 100.0
	QualityScoreCap     = 1000.0
	UploadSpeedDivisor  = 10000.0
	UploadSpeedScoreCap = 100.0
)

var QualityTierScore = map[string]float64{
	QualityLossless: 1000,
	QualityHigh:     700,
	QualityStandard: 400,
	QualityLow:      100,
	QualityUnknown:  0,
}

// Accepted audio file extensions (§4.5 "File filtering").
var AcceptedExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
	".aac":  true,
	".wma":  true,
	".alac": true,
}

// Lossless file formats (§4.5 "Quality extraction").
var LosslessFormats = map[string]bool{
	"flac": true,
	"wav":  true,
	"alac": true,
	"aiff": true,
}

const (
	DirPermissions  = 0o755
	FilePermissions = 0o644
)

// Characters rejected by the filesystem-path sanitizer.
const InvalidPathChars = "<>:\"/\\|?*"

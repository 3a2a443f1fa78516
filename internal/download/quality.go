package download

import (
	"path/filepath"
	"strings"

	"github.com/cesargomez89/crateflow/internal/constants"
	"github.com/cesargomez89/crateflow/internal/domain"
	"github.com/cesargomez89/crateflow/internal/peersearch"
)

// ExtractedQuality is the per-file quality reading the scoring and
// persistence layers both consume (spec.md §4.5 "Quality extraction").
type ExtractedQuality struct {
	Format     string
	BitRate    int
	BitDepth   int
	SampleRate int
	Tier       domain.QualityTier
}

// ExtractQuality classifies a peer file's audio quality from its
// extension and whatever bit-rate/bit-depth metadata the peer-search
// adapter reported.
func ExtractQuality(file peersearch.FileEntry) ExtractedQuality {
	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(file.Filename), "."))
	if file.Extension != "" {
		format = strings.ToLower(file.Extension)
	}

	q := ExtractedQuality{Format: format}
	if file.BitRate != nil {
		q.BitRate = *file.BitRate
	}
	if file.BitDepth != nil {
		q.BitDepth = *file.BitDepth
	}
	if file.SampleRate != nil {
		q.SampleRate = *file.SampleRate
	}

	q.Tier = classifyTier(format, q.BitRate, q.BitDepth)
	return q
}

// classifyTier implements spec.md §4.5's quality ladder: lossless
// formats (accepted when no bit depth is reported or it is ≥16), else
// bit-rate bands applied to any other format, else unknown.
func classifyTier(format string, bitRate, bitDepth int) domain.QualityTier {
	if constants.LosslessFormats[format] && (bitDepth == 0 || bitDepth >= 16) {
		return domain.QualityTierLossless
	}
	switch {
	case bitRate >= 256:
		return domain.QualityTierHigh
	case bitRate >= 128:
		return domain.QualityTierStandard
	case bitRate > 0:
		return domain.QualityTierLow
	default:
		return domain.QualityTierUnknown
	}
}

// QualityScore maps a tier to its [0,1000] score contribution.
func QualityScore(tier domain.QualityTier) float64 {
	return constants.QualityTierScore[string(tier)]
}

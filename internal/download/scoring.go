package download

import (
	"strings"

	"github.com/cesargomez89/crateflow/internal/config"
	"github.com/cesargomez89/crateflow/internal/constants"
	"github.com/cesargomez89/crateflow/internal/peersearch"
)

// ScoredResponse pairs a peer response with its computed score and the
// quality reading of its best file, ready for ranking.
type ScoredResponse struct {
	Response     peersearch.Response
	Score        float64
	Quality      ExtractedQuality
	MusicFiles   []peersearch.FileEntry
	HasSlot      bool
	UploadSpeed  float64
}

// FilterAndScore applies the file-filtering and scoring rules of
// spec.md §4.5 to every response, returning only those that pass,
// sorted best-first with ties broken on (slot, upload speed, file
// count).
func FilterAndScore(responses []peersearch.Response, expectedTrackCount int, cfg config.SlskdConfig) []ScoredResponse {
	scored := make([]ScoredResponse, 0, len(responses))
	for _, resp := range responses {
		files := filterFiles(resp.Files, cfg)
		if len(files) == 0 {
			continue
		}

		completeness := 1.0
		if expectedTrackCount > 0 {
			completeness = float64(len(files)) / float64(expectedTrackCount)
			if completeness > 1 {
				completeness = 1
			}
		}
		if cfg.RequireComplete && completeness < cfg.MinCompletenessRatio {
			continue
		}

		best := bestQuality(files)
		if cfg.RejectLossless && best.Tier == "lossless" {
			continue
		}
		if cfg.RejectLowQuality && (best.Tier == "low" || best.Tier == "unknown") {
			continue
		}

		hasSlot := resp.HasSlot != nil && *resp.HasSlot
		speed := 0.0
		if resp.UploadSpeed != nil {
			speed = *resp.UploadSpeed
		}

		score := computeScore(hasSlot, best, len(files), expectedTrackCount, completeness, speed, cfg)
		scored = append(scored, ScoredResponse{
			Response:    resp,
			Score:       score,
			Quality:     best,
			MusicFiles:  files,
			HasSlot:     hasSlot,
			UploadSpeed: speed,
		})
	}

	sortByScore(scored)
	return scored
}

func computeScore(hasSlot bool, q ExtractedQuality, fileCount, expected int, completeness, uploadSpeed float64, cfg config.SlskdConfig) float64 {
	score := 0.0
	if hasSlot {
		score += constants.SlotAvailableScore
	}
	score += QualityScore(q.Tier)
	score += fileCountScore(fileCount, expected, cfg)
	speedScore := uploadSpeed / constants.UploadSpeedDivisor
	if speedScore > constants.UploadSpeedScoreCap {
		speedScore = constants.UploadSpeedScoreCap
	}
	score += speedScore
	score += cfg.CompletenessWeight * completeness
	return score
}

// fileCountScore peaks at expected and decays linearly past it when
// penalize_excess is set.
func fileCountScore(fileCount, expected int, cfg config.SlskdConfig) float64 {
	if expected <= 0 {
		expected = fileCount
	}
	ratio := 1.0
	if expected > 0 {
		ratio = float64(fileCount) / float64(expected)
	}
	if ratio > 1 && cfg.PenalizeExcess {
		excess := ratio - 1
		ratio = 1 - excess
		if ratio < 0 {
			ratio = 0
		}
	} else if ratio > 1 {
		ratio = 1
	}
	return cfg.FileCountScoreCap * ratio
}

func filterFiles(files []peersearch.FileEntry, cfg config.SlskdConfig) []peersearch.FileEntry {
	out := make([]peersearch.FileEntry, 0, len(files))
	for _, f := range files {
		ext := strings.ToLower(strings.TrimPrefix(extOf(f.Filename), "."))
		if !constants.AcceptedExtensions["."+ext] {
			continue
		}
		sizeMB := float64(f.Size) / (1024 * 1024)
		if cfg.MinFileSizeMB > 0 && sizeMB < cfg.MinFileSizeMB {
			continue
		}
		if cfg.MaxFileSizeMB > 0 && sizeMB > cfg.MaxFileSizeMB {
			continue
		}
		if len(cfg.PreferredFormats) > 0 && !containsFold(cfg.PreferredFormats, ext) {
			continue
		}
		if f.BitRate != nil && cfg.MinBitRate > 0 && *f.BitRate < cfg.MinBitRate {
			continue
		}
		out = append(out, f)
	}
	return out
}

func bestQuality(files []peersearch.FileEntry) ExtractedQuality {
	var best ExtractedQuality
	for i, f := range files {
		q := ExtractQuality(f)
		if i == 0 || QualityScore(q.Tier) > QualityScore(best.Tier) {
			best = q
		}
	}
	return best
}

func sortByScore(scored []ScoredResponse) {
	for i := 1; i < len(scored); i++ {
		for j := i; j > 0 && less(scored[j-1], scored[j]); j-- {
			scored[j-1], scored[j] = scored[j], scored[j-1]
		}
	}
}

// less reports whether a ranks behind b (used to bubble the better
// candidate to the front): primary key score descending, ties broken
// on (slot, upload speed, file count) per spec.md §4.5.
func less(a, b ScoredResponse) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	if a.HasSlot != b.HasSlot {
		return !a.HasSlot
	}
	if a.UploadSpeed != b.UploadSpeed {
		return a.UploadSpeed < b.UploadSpeed
	}
	return len(a.MusicFiles) < len(b.MusicFiles)
}

func extOf(filename string) string {
	for i := len(filename) - 1; i >= 0; i-- {
		if filename[i] == '.' {
			return filename[i:]
		}
	}
	return ""
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

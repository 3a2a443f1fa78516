package download

import (
	"testing"

	"github.com/cesargomez89/crateflow/internal/domain"
	"github.com/cesargomez89/crateflow/internal/peersearch"
)

func intPtr(i int) *int { return &i }

func TestExtractQuality_FlacIsLossless(t *testing.T) {
	q := ExtractQuality(peersearch.FileEntry{Filename: "track.flac", BitDepth: intPtr(16)})
	if q.Tier != domain.QualityTierLossless {
		t.Errorf("expected lossless, got %s", q.Tier)
	}
}

func TestExtractQuality_FlacWithNoBitDepthStillLossless(t *testing.T) {
	q := ExtractQuality(peersearch.FileEntry{Filename: "track.flac"})
	if q.Tier != domain.QualityTierLossless {
		t.Errorf("expected lossless, got %s", q.Tier)
	}
}

func TestExtractQuality_Mp3HighBitrate(t *testing.T) {
	q := ExtractQuality(peersearch.FileEntry{Filename: "track.mp3", BitRate: intPtr(320)})
	if q.Tier != domain.QualityTierHigh {
		t.Errorf("expected high, got %s", q.Tier)
	}
}

func TestExtractQuality_Mp3StandardBitrate(t *testing.T) {
	q := ExtractQuality(peersearch.FileEntry{Filename: "track.mp3", BitRate: intPtr(192)})
	if q.Tier != domain.QualityTierStandard {
		t.Errorf("expected standard, got %s", q.Tier)
	}
}

func TestExtractQuality_Mp3LowBitrate(t *testing.T) {
	q := ExtractQuality(peersearch.FileEntry{Filename: "track.mp3", BitRate: intPtr(96)})
	if q.Tier != domain.QualityTierLow {
		t.Errorf("expected low, got %s", q.Tier)
	}
}

func TestExtractQuality_UnknownWithoutSignal(t *testing.T) {
	q := ExtractQuality(peersearch.FileEntry{Filename: "track.xyz"})
	if q.Tier != domain.QualityTierUnknown {
		t.Errorf("expected unknown, got %s", q.Tier)
	}
}

func TestQualityScore_Ordering(t *testing.T) {
	if QualityScore(domain.QualityTierLossless) <= QualityScore(domain.QualityTierHigh) {
		t.Error("expected lossless to score above high")
	}
	if QualityScore(domain.QualityTierLow) <= QualityScore(domain.QualityTierUnknown) {
		t.Error("expected low to score above unknown")
	}
}

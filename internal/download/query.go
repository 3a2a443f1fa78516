// Package download implements the Download Engine (C5): the FSM
// driver, result scoring, quality extraction, interactive selection,
// progress tracking, and path resolution of spec.md §4.5. Structurally
// grounded on internal/downloader/worker.go's
// prepare/execute/post-process/finalize pipeline, generalized from a
// single linear download into the 8-state machine.
package download

import (
	"regexp"
	"strings"
)

var (
	parenthesizedRe = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	featRe          = regexp.MustCompile(`(?i)\s+(feat\.?|featuring|ft\.?)\s+.*$`)
)

// BuildAlbumQuery renders the album search template, optionally
// simplified for a retry (spec.md §4.5 "Search query construction").
func BuildAlbumQuery(artist, album string, simplify bool, excludeTerms []string) string {
	if simplify {
		artist = simplifyTerm(artist)
		album = simplifyTerm(album)
	}
	query := artist + " - " + album
	return appendExcludeTerms(query, excludeTerms)
}

// BuildTrackQuery renders the track search template.
func BuildTrackQuery(artist, title string, simplify bool, excludeTerms []string) string {
	if simplify {
		artist = simplifyTerm(artist)
		title = simplifyTerm(title)
	}
	query := artist + " - " + title
	return appendExcludeTerms(query, excludeTerms)
}

// simplifyTerm strips parenthesized/bracketed disambiguators and
// trailing feature lists, used when simplify_on_retry is set.
func simplifyTerm(s string) string {
	s = featRe.ReplaceAllString(s, "")
	s = parenthesizedRe.ReplaceAllString(s, "")
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}

func appendExcludeTerms(query string, excludeTerms []string) string {
	for _, term := range excludeTerms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		query += " -" + term
	}
	return query
}

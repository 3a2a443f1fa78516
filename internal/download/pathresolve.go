package download

import (
	"path/filepath"
	"strings"

	"github.com/cesargomez89/crateflow/internal/storage"
)

// sanitizeDirectory applies storage.Sanitize to each path segment of
// dir independently, since Sanitize alone strips the "/" separators
// along with the rest of constants.InvalidPathChars (the teacher's
// navidrums/internal/app/playlist.go applies Sanitize the same way,
// one path segment at a time, when composing a multi-segment library
// path from untrusted title/artist/album strings).
func sanitizeDirectory(dir string) string {
	segments := strings.Split(dir, "/")
	for i, s := range segments {
		segments[i] = storage.Sanitize(s)
	}
	return strings.Join(segments, "/")
}

// ResolvePath implements spec.md §4.5 "Path resolution": probe, in
// order, the explicit download path, <username>/<dir rel>,
// <username>/<dir leaf>, <dir rel>, <dir leaf>; the first candidate
// existing under downloadsRoot wins. exists is injected so the FSM
// driver and its tests can avoid a real filesystem.
func ResolvePath(downloadsRoot, explicitPath, username, directory string, exists func(string) bool) (string, bool) {
	dirRel := normalizeDirectory(directory)
	dirLeaf := filepath.Base(dirRel)

	candidates := []string{}
	if explicitPath != "" {
		candidates = append(candidates, explicitPath)
	}
	if username != "" && dirRel != "" {
		candidates = append(candidates, filepath.Join(username, dirRel))
	}
	if username != "" && dirLeaf != "" {
		candidates = append(candidates, filepath.Join(username, dirLeaf))
	}
	if dirRel != "" {
		candidates = append(candidates, dirRel)
	}
	if dirLeaf != "" {
		candidates = append(candidates, dirLeaf)
	}

	for _, c := range candidates {
		safe, err := storage.SafeRelativePath(c)
		if err != nil {
			continue
		}
		full := filepath.Join(downloadsRoot, safe)
		if exists(full) {
			return safe, true
		}
	}
	return "", false
}

// Package storage wraps filesystem operations used by the Download
// Engine's path resolution (spec.md §4.5): a safe-relative-path
// sanitizer plus the directory/file helpers the engine needs once a
// transfer lands on disk. Adapted from navidrums' identically-named
// package, which used the same helpers for its final library tree.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cesargomez89/crateflow/internal/constants"
)

func Sanitize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if strings.ContainsRune(constants.InvalidPathChars, r) {
			return -1
		}
		return r
	}, s)

	return strings.TrimRight(mapped, ". ")
}

// SafeRelativePath rejects absolute paths and parent-directory
// references, returning the cleaned relative path otherwise (spec.md
// §4.5 "all candidates pass through a safe-relative-path sanitizer").
func SafeRelativePath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty path")
	}
	normalized := strings.ReplaceAll(p, "\\", "/")
	cleaned := filepath.ToSlash(filepath.Clean(normalized))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("unsafe path: %s", p)
	}
	return cleaned, nil
}

func EnsureDir(path string) error {
	return os.MkdirAll(path, constants.DirPermissions)
}

func RemoveFile(path string) error {
	return os.Remove(path)
}

func DeleteFolderIfEmpty(dirPath string) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(entries) == 0 {
		return os.Remove(dirPath)
	}
	return nil
}

func IsNotExist(err error) bool {
	return os.IsNotExist(err)
}

package store

import (
	"errors"
	"strings"

	"github.com/cesargomez89/crateflow/internal/apperr"
)

// classifyWriteErr maps every flavor of "store busy" — write-token
// timeout, SQLite's native BUSY/LOCKED codes, and the generic
// "database is locked" message — onto a single retryable
// apperr.StoreBusy kind (spec.md §4.1). Anything else passes through
// wrapped as Internal.
func classifyWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) == apperr.StoreBusy {
		return err
	}
	if isBusyErr(err) {
		return apperr.Busy(err)
	}
	return apperr.Internalf(err, "write transaction failed")
}

func isBusyErr(err error) bool {
	var busy *apperr.Error
	if errors.As(err, &busy) && busy.Kind == apperr.StoreBusy {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "sqlite_locked") ||
		strings.Contains(msg, "busy")
}

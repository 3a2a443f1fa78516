package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cesargomez89/crateflow/internal/domain"
)

func (h *Handler) listByStatus(w http.ResponseWriter, r *http.Request, statuses ...domain.DownloadStatus) {
	q := r.URL.Query()
	limit := atoiOr(q.Get("limit"), 50)
	offset := atoiOr(q.Get("offset"), 0)

	tasks, total, err := h.Downloads.Repo.ListDownloadTasksPage(statuses, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"items": tasks, "total": total})
}

// DownloadsActive serves spec.md §6 "getActive(limit, offset)".
func (h *Handler) DownloadsActive(w http.ResponseWriter, r *http.Request) {
	h.listByStatus(w, r,
		domain.DownloadStatusPending,
		domain.DownloadStatusSearching,
		domain.DownloadStatusPendingSelection,
		domain.DownloadStatusDownloading,
		domain.DownloadStatusDeferred,
	)
}

// DownloadsCompleted serves spec.md §6 "getCompleted(limit, offset)".
func (h *Handler) DownloadsCompleted(w http.ResponseWriter, r *http.Request) {
	h.listByStatus(w, r, domain.DownloadStatusCompleted)
}

// DownloadsFailed serves spec.md §6 "getFailed(limit, offset)".
func (h *Handler) DownloadsFailed(w http.ResponseWriter, r *http.Request) {
	h.listByStatus(w, r, domain.DownloadStatusFailed)
}

// DownloadsStats serves spec.md §6 "stats()", combining persisted
// counts with live transfer bandwidth.
func (h *Handler) DownloadsStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Downloads.Stats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// DownloadsRetry serves spec.md §6 "retry(ids[])": re-arms failed
// tasks for a fresh attempt, collecting per-id errors.
func (h *Handler) DownloadsRetry(w http.ResponseWriter, r *http.Request) {
	var req bulkIDsRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	var errs []error
	retried := 0
	for _, id := range req.IDs {
		if err := h.Downloads.Retry(r.Context(), id); err != nil {
			errs = append(errs, err)
			continue
		}
		retried++
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"retried": retried, "errors": errStrings(errs)})
}

// DownloadsDelete serves spec.md §6 "delete(ids[])".
func (h *Handler) DownloadsDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkIDsRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	var errs []error
	deleted := 0
	for _, id := range req.IDs {
		if err := h.Downloads.Delete(r.Context(), id); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted, "errors": errStrings(errs)})
}

// DownloadsSearchResults exposes a pending_selection task's cached,
// scored candidates for the interactive selection flow.
func (h *Handler) DownloadsSearchResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	task, err := h.Downloads.Repo.GetDownloadTask(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, task)
}

type selectRequest struct {
	Username  string `json:"username"`
	Directory string `json:"directory,omitempty"`
}

// DownloadsSelect serves spec.md §6 "select(taskId, candidateId)".
func (h *Handler) DownloadsSelect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req selectRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.Downloads.Select(r.Context(), id, req.Username, req.Directory); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type skipRequest struct {
	Username string `json:"username"`
}

// DownloadsSkip serves spec.md §6 "skip(taskId, candidateId)".
func (h *Handler) DownloadsSkip(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req skipRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.Downloads.Skip(r.Context(), id, req.Username); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type retrySearchRequest struct {
	Query string `json:"query,omitempty"`
}

// DownloadsRetrySearch serves spec.md §6 "retrySearch(taskId, query?)".
func (h *Handler) DownloadsRetrySearch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req retrySearchRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.Downloads.RetrySearch(r.Context(), id, req.Query); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package httpapi

import (
	"net/http"
	"strconv"

	"github.com/cesargomez89/crateflow/internal/domain"
	"github.com/cesargomez89/crateflow/internal/store"
)

// QueuePending serves spec.md §6 "getPending(..., hide_in_library)":
// filter by source, sort/order, paginate, and optionally hide items
// whose artist is already in the library.
func (h *Handler) QueuePending(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := store.QueueListParams{
		Sort:   q.Get("sort"),
		Order:  q.Get("order"),
		Limit:  atoiOr(q.Get("limit"), 50),
		Offset: atoiOr(q.Get("offset"), 0),
	}
	if source := q.Get("source"); source != "" {
		s := domain.QueueSource(source)
		params.Source = &s
	}

	var hideInLibrary *bool
	if raw := q.Get("hide_in_library"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid hide_in_library: " + err.Error()})
			return
		}
		hideInLibrary = &v
	}

	items, total, err := h.Queue.GetPending(r.Context(), params, hideInLibrary)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

// QueueStats serves spec.md §6 queue "stats()".
func (h *Handler) QueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Queue.Stats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

type idsRequest struct {
	IDs []int64 `json:"ids"`
	All bool    `json:"all,omitempty"`
}

// QueueApprove serves spec.md §6 "approve({ids[], all?})".
func (h *Handler) QueueApprove(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	var (
		affected int
		err      error
	)
	if req.All {
		affected, err = h.Queue.ApproveAll(r.Context())
	} else {
		affected, err = h.Queue.Approve(r.Context(), req.IDs)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"approved": affected})
}

// QueueReject serves spec.md §6 "reject({ids[]})".
func (h *Handler) QueueReject(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	affected, err := h.Queue.Reject(r.Context(), req.IDs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"rejected": affected})
}

func atoiOr(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

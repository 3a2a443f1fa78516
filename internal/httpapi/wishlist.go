package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cesargomez89/crateflow/internal/domain"
	"github.com/cesargomez89/crateflow/internal/store"
)

// WishlistList serves spec.md §6 "list()".
func (h *Handler) WishlistList(w http.ResponseWriter, r *http.Request) {
	items, err := h.Wishlist.List()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, items)
}

// WishlistAdd serves spec.md §6 "add(item)".
func (h *Handler) WishlistAdd(w http.ResponseWriter, r *http.Request) {
	var item domain.WishlistItem
	if !h.decodeJSON(w, r, &item) {
		return
	}
	if err := h.Wishlist.Add(r.Context(), &item); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, &item)
}

// WishlistUpdate serves spec.md §6 "update(id, patch)".
func (h *Handler) WishlistUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch store.WishlistPatch
	if !h.decodeJSON(w, r, &patch) {
		return
	}
	if err := h.Wishlist.Update(r.Context(), id, patch); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WishlistDelete serves spec.md §6 "delete(id)".
func (h *Handler) WishlistDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Wishlist.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bulkIDsRequest struct {
	IDs []string `json:"ids"`
}

// WishlistBulkDelete serves spec.md §6 "bulkDelete". Per-id failures are
// reported alongside the success count rather than aborting the batch.
func (h *Handler) WishlistBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkIDsRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	deleted, errs := h.Wishlist.BulkDelete(r.Context(), req.IDs)
	h.writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted, "errors": errStrings(errs)})
}

// WishlistBulkRequeue serves spec.md §6 "bulkRequeue".
func (h *Handler) WishlistBulkRequeue(w http.ResponseWriter, r *http.Request) {
	var req bulkIDsRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	requeued, errs := h.Wishlist.BulkRequeue(r.Context(), req.IDs)
	h.writeJSON(w, http.StatusOK, map[string]any{"requeued": requeued, "errors": errStrings(errs)})
}

// WishlistExport serves spec.md §4.4 "Export returns JSON".
func (h *Handler) WishlistExport(w http.ResponseWriter, r *http.Request) {
	data, err := h.Wishlist.Export()
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="wishlist.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// WishlistImport serves spec.md §4.4 import, accepting the same JSON
// array shape Export produces.
func (h *Handler) WishlistImport(w http.ResponseWriter, r *http.Request) {
	var items []*domain.WishlistItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	results, err := h.Wishlist.Import(r.Context(), items)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, results)
}

func errStrings(errs []error) []string {
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}

// Package httpapi is the JSON-REST façade over C3-C6 (spec.md §6
// External Interfaces), mirroring the teacher's Handler struct +
// RegisterRoutes(r chi.Router) shape (internal/http/handler.go) but
// returning JSON instead of rendered HTML/HTMX fragments: the browser
// UI and any authentication layer are explicitly out of scope.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cesargomez89/crateflow/internal/apperr"
	"github.com/cesargomez89/crateflow/internal/download"
	"github.com/cesargomez89/crateflow/internal/logger"
	"github.com/cesargomez89/crateflow/internal/queue"
	"github.com/cesargomez89/crateflow/internal/scheduler"
	"github.com/cesargomez89/crateflow/internal/wishlist"
)

type Handler struct {
	Queue     *queue.Service
	Wishlist  *wishlist.Service
	Downloads *download.Engine
	Scheduler *scheduler.Scheduler
	Logger    *logger.Logger
}

func NewHandler(q *queue.Service, wl *wishlist.Service, dl *download.Engine, sched *scheduler.Scheduler, log *logger.Logger) *Handler {
	return &Handler{
		Queue:     q,
		Wishlist:  wl,
		Downloads: dl,
		Scheduler: sched,
		Logger:    log.WithComponent("httpapi"),
	}
}

// Router builds the chi router serving every route in RegisterRoutes,
// with the same ambient logging/recovery middleware the teacher
// installs in cmd/server/main.go.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/scheduler", func(r chi.Router) {
		r.Get("/status", h.SchedulerStatus)
		r.Post("/jobs/{name}/trigger", h.SchedulerTrigger)
		r.Post("/jobs/{name}/cancel", h.SchedulerCancel)
	})

	r.Route("/api/queue", func(r chi.Router) {
		r.Get("/pending", h.QueuePending)
		r.Get("/stats", h.QueueStats)
		r.Post("/approve", h.QueueApprove)
		r.Post("/reject", h.QueueReject)
	})

	r.Route("/api/wishlist", func(r chi.Router) {
		r.Get("/", h.WishlistList)
		r.Post("/", h.WishlistAdd)
		r.Get("/export", h.WishlistExport)
		r.Post("/import", h.WishlistImport)
		r.Post("/bulk-delete", h.WishlistBulkDelete)
		r.Post("/bulk-requeue", h.WishlistBulkRequeue)
		r.Patch("/{id}", h.WishlistUpdate)
		r.Delete("/{id}", h.WishlistDelete)
	})

	r.Route("/api/downloads", func(r chi.Router) {
		r.Get("/active", h.DownloadsActive)
		r.Get("/completed", h.DownloadsCompleted)
		r.Get("/failed", h.DownloadsFailed)
		r.Get("/stats", h.DownloadsStats)
		r.Post("/retry", h.DownloadsRetry)
		r.Post("/delete", h.DownloadsDelete)
		r.Get("/{id}/search-results", h.DownloadsSearchResults)
		r.Post("/{id}/select", h.DownloadsSelect)
		r.Post("/{id}/skip", h.DownloadsSkip)
		r.Post("/{id}/retry-search", h.DownloadsRetrySearch)
	})
}

// writeJSON encodes v as the response body. Logged, not surfaced to
// the client: the header and status are already committed by the time
// Encode can fail.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("failed to encode response", "error", err)
	}
}

// writeError maps err's apperr.Kind to an HTTP status and writes a
// {"error": message} body.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(apperr.KindOf(err))
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

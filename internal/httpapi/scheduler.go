package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cesargomez89/crateflow/internal/scheduler"
)

const defaultCancelTimeout = 10 * time.Second

// SchedulerStatus serves spec.md §6 "status()".
func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.Scheduler.Status()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, statuses)
}

// SchedulerTrigger serves spec.md §6 "trigger(name)".
func (h *Handler) SchedulerTrigger(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	result := h.Scheduler.Trigger(r.Context(), name)
	status := http.StatusOK
	if result == scheduler.Unknown {
		status = http.StatusNotFound
	}
	h.writeJSON(w, status, map[string]string{"result": string(result)})
}

// SchedulerCancel serves spec.md §6 "cancel(name)". An optional
// ?timeout=<duration> overrides the default wait for cooperative exit.
func (h *Handler) SchedulerCancel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	timeout := defaultCancelTimeout
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			timeout = parsed
		}
	}

	result := h.Scheduler.Cancel(r.Context(), name, timeout)
	status := http.StatusOK
	if result == scheduler.UnknownJob {
		status = http.StatusNotFound
	}
	h.writeJSON(w, status, map[string]string{"result": string(result)})
}

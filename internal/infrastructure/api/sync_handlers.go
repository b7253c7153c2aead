package api

import (
	"context"
	"net/http"

	"store-sync-engine/internal/application"
	"store-sync-engine/internal/domain"

	"github.com/go-chi/chi/v5"
)

// triggerSync runs one (domain, direction) for a store and returns its log.
// The run is detached from the request so a dropped connection does not cancel it.
func (h *Handler) triggerSync(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeId")
	d, ok := domain.ParseSyncDomain(chi.URLParam(r, "domain"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown sync domain")
		return
	}
	dir, ok := domain.ParseDirection(chi.URLParam(r, "direction"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown sync direction")
		return
	}

	log, err := h.runner.Run(context.WithoutCancel(r.Context()), application.RunRequest{
		StoreID:   storeID,
		Domain:    d,
		Direction: dir,
		Trigger:   domain.TriggerManual,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, log)
}

func (h *Handler) latestLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.stores.LatestLogs(r.Context(), chi.URLParam(r, "storeId"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (h *Handler) getLog(w http.ResponseWriter, r *http.Request) {
	log, err := h.stores.GetLog(r.Context(), chi.URLParam(r, "storeId"), chi.URLParam(r, "logId"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, log)
}

// schedulerTick is called by an external cron
func (h *Handler) schedulerTick(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.ticker.RunDue(context.WithoutCancel(r.Context()), h.now())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if summaries == nil {
		summaries = []application.RunSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": summaries})
}

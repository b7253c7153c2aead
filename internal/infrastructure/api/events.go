package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/infrastructure/pubsub"

	"github.com/google/uuid"
)

// streamEvents sends finalized runs as Server-Sent Events. Query parameters
// store_id and status (repeatable) narrow the stream.
func (h *Handler) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	filter := &pubsub.RunEventFilter{StoreID: r.URL.Query().Get("store_id")}
	for _, s := range r.URL.Query()["status"] {
		filter.Statuses = append(filter.Statuses, domain.SyncStatus(s))
	}

	ctx := r.Context()
	channel := h.events.Subscribe(ctx, filter)
	clientID := uuid.New().String()
	logger := h.logger.With().Str("clientId", clientID).Logger()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	writeEvent(w, "connected", map[string]any{"client_id": clientID})
	flusher.Flush()
	logger.Info().Msg("Run event client connected")

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Run event client disconnected")
			return
		case <-channel.Done:
			return
		case event, ok := <-channel.Events:
			if !ok {
				return
			}
			writeEvent(w, "run_finished", event)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}

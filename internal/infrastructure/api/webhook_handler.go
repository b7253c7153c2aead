package api

import (
	"net/http"

	"store-sync-engine/internal/application"

	"github.com/go-chi/chi/v5"
)

// receiveWebhook hands the raw delivery to the webhook service. The body is read
// there so the signature is checked against the exact bytes sent.
func (h *Handler) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	resp := h.webhooks.Receive(r.Context(), application.WebhookDelivery{
		Platform: chi.URLParam(r, "platform"),
		StoreID:  chi.URLParam(r, "storeId"),
		Header:   r.Header,
		Body:     r.Body,
	})
	writeJSON(w, resp.StatusCode, resp.Body)
}

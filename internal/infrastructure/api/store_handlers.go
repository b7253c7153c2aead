package api

import (
	"encoding/json"
	"net/http"

	"store-sync-engine/internal/application"
	"store-sync-engine/internal/domain"

	"github.com/go-chi/chi/v5"
)

// maxAdminBody bounds admin request bodies
const maxAdminBody = 64 << 10

// storeRequest is the editable part of a store
type storeRequest struct {
	Name         string              `json:"name"`
	PlatformType domain.PlatformType `json:"platform_type"`
	BaseURL      string              `json:"base_url"`
	BranchID     string              `json:"branch_id"`
	IsActive     bool                `json:"is_active"`
	SyncSettings domain.SyncSettings `json:"sync_settings"`
}

type credentialsRequest struct {
	APIKey        string `json:"api_key"`
	APISecret     string `json:"api_secret"`
	AccessToken   string `json:"access_token"`
	WebhookSecret string `json:"webhook_secret"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAdminBody)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// saveStore creates a store (POST) or replaces one (PUT)
func (h *Handler) saveStore(w http.ResponseWriter, r *http.Request) {
	var req storeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	store := &domain.Store{
		ID:           chi.URLParam(r, "storeId"),
		Name:         req.Name,
		PlatformType: req.PlatformType,
		BaseURL:      req.BaseURL,
		BranchID:     req.BranchID,
		IsActive:     req.IsActive,
		SyncSettings: req.SyncSettings,
	}

	status := http.StatusCreated
	if store.ID != "" {
		status = http.StatusOK
	}
	saved, err := h.stores.SaveStore(r.Context(), store)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, status, saved)
}

// saveCredentials stores the credentials of a store. Secrets are redacted in the response.
func (h *Handler) saveCredentials(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	integration, err := h.stores.SaveCredentials(r.Context(), chi.URLParam(r, "storeId"), application.CredentialsInput{
		APIKey:        req.APIKey,
		APISecret:     req.APISecret,
		AccessToken:   req.AccessToken,
		WebhookSecret: req.WebhookSecret,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, integration)
}

func (h *Handler) testConnection(w http.ResponseWriter, r *http.Request) {
	out, err := h.stores.TestConnection(r.Context(), chi.URLParam(r, "storeId"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) registerWebhooks(w http.ResponseWriter, r *http.Request) {
	results, err := h.stores.RegisterWebhooks(r.Context(), chi.URLParam(r, "storeId"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

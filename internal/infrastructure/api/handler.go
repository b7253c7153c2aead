// Package api exposes the sync engine over HTTP: inbound platform webhooks, manual
// sync triggers, the scheduler tick and the admin endpoints.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"store-sync-engine/internal/application"
	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/infrastructure/pubsub"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// SyncRunner starts one orchestrated run
type SyncRunner interface {
	Run(ctx context.Context, req application.RunRequest) (*domain.SyncLog, error)
}

// TickRunner runs every due sync
type TickRunner interface {
	RunDue(ctx context.Context, now time.Time) ([]application.RunSummary, error)
}

// WebhookReceiver handles an inbound webhook delivery
type WebhookReceiver interface {
	Receive(ctx context.Context, d application.WebhookDelivery) application.WebhookResponse
}

// StoreAdmin manages store configuration
type StoreAdmin interface {
	SaveStore(ctx context.Context, store *domain.Store) (*domain.Store, error)
	SaveCredentials(ctx context.Context, storeID string, input application.CredentialsInput) (*domain.StoreIntegration, error)
	TestConnection(ctx context.Context, storeID string) (domain.Outcome, error)
	RegisterWebhooks(ctx context.Context, storeID string) ([]domain.ItemOutcome, error)
	LatestLogs(ctx context.Context, storeID string) ([]*domain.SyncLog, error)
	GetLog(ctx context.Context, storeID, logID string) (*domain.SyncLog, error)
}

// RunEvents streams finalized runs
type RunEvents interface {
	Subscribe(ctx context.Context, filter *pubsub.RunEventFilter) *pubsub.RunEventChannel
}

// Handler serves the HTTP surface of the engine
type Handler struct {
	runner     SyncRunner
	ticker     TickRunner
	webhooks   WebhookReceiver
	stores     StoreAdmin
	events     RunEvents
	metrics    http.Handler
	adminToken string
	logger     zerolog.Logger
	heartbeat  time.Duration
	now        func() time.Time
}

// NewHandler creates a new API handler. metrics may be nil. An empty adminToken
// leaves the admin routes unauthenticated.
func NewHandler(
	runner SyncRunner,
	ticker TickRunner,
	webhooks WebhookReceiver,
	stores StoreAdmin,
	events RunEvents,
	metrics http.Handler,
	adminToken string,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		runner:     runner,
		ticker:     ticker,
		webhooks:   webhooks,
		stores:     stores,
		events:     events,
		metrics:    metrics,
		adminToken: adminToken,
		logger:     logger,
		heartbeat:  30 * time.Second,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Register mounts every route on r
func (h *Handler) Register(r chi.Router) {
	// Public routes
	r.Get("/health", h.health)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}

	// Webhooks authenticate with their signature
	r.Post("/api/v1/webhooks/{platform}/{storeId}", h.receiveWebhook)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAdminToken)

		r.Post("/api/v1/stores", h.saveStore)
		r.Route("/api/v1/stores/{storeId}", func(r chi.Router) {
			r.Put("/", h.saveStore)
			r.Put("/credentials", h.saveCredentials)
			r.Post("/sync/{domain}/{direction}", h.triggerSync)
			r.Get("/sync-logs/latest", h.latestLogs)
			r.Get("/sync-logs/{logId}", h.getLog)
			r.Post("/test-connection", h.testConnection)
			r.Post("/webhooks/register", h.registerWebhooks)
		})
		r.Post("/api/v1/scheduler/tick", h.schedulerTick)
		r.Get("/api/v1/events", h.streamEvents)
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireAdminToken checks the bearer token of admin requests
func (h *Handler) requireAdminToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.adminToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
			h.logger.Warn().Str("path", r.URL.Path).Str("security", "admin_token").Msg("Rejected admin request")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps an application error onto a status code. Messages of
// unexpected errors are logged, never returned.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrStoreNotFound),
		errors.Is(err, domain.ErrSyncLogNotFound),
		errors.Is(err, domain.ErrIntegrationNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrRunInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrStoreInactive),
		errors.Is(err, domain.ErrDomainDisabled),
		errors.Is(err, domain.ErrMissingCredentials):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrUnsupportedSync),
		errors.Is(err, domain.ErrUnsupportedPlatform),
		errors.Is(err, domain.ErrInvalidStore):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

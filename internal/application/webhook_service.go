package application

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"store-sync-engine/internal/config"
	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/ports"

	"github.com/rs/zerolog"
)

// Webhook results, also used as metric labels
const (
	WebhookApplied      = "applied"
	WebhookDuplicate    = "duplicate"
	WebhookPing         = "ping"
	WebhookIgnored      = "ignored"
	WebhookNotFound     = "not_found"
	WebhookTooLarge     = "too_large"
	WebhookUnauthorized = "unauthorized"
	WebhookInvalid      = "invalid"
	WebhookFailed       = "failed"
)

// WebhookDelivery is one inbound webhook request
type WebhookDelivery struct {
	Platform string
	StoreID  string
	Header   http.Header
	Body     io.Reader
}

// WebhookResponse is what the HTTP layer writes back to the platform
type WebhookResponse struct {
	StatusCode int
	Result     string
	Body       map[string]any
}

// Applier applies a single verified record
type Applier interface {
	ApplyOne(ctx context.Context, store *domain.Store, event *domain.WebhookEvent) error
}

// WebhookService authenticates, deduplicates and applies inbound webhooks
type WebhookService struct {
	stores       ports.StoreRepository
	integrations ports.IntegrationRepository
	codecs       map[domain.PlatformType]ports.WebhookCodec
	deduper      ports.Deduper
	applier      Applier
	metrics      ports.SyncMetrics
	cfg          config.WebhookConfig
	logger       zerolog.Logger
	now          func() time.Time
}

// NewWebhookService creates a new webhook service. metrics is optional.
func NewWebhookService(
	stores ports.StoreRepository,
	integrations ports.IntegrationRepository,
	codecs map[domain.PlatformType]ports.WebhookCodec,
	deduper ports.Deduper,
	applier Applier,
	metrics ports.SyncMetrics,
	cfg config.WebhookConfig,
	logger zerolog.Logger,
) *WebhookService {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = 72 * time.Hour
	}
	return &WebhookService{
		stores:       stores,
		integrations: integrations,
		codecs:       codecs,
		deduper:      deduper,
		applier:      applier,
		metrics:      metrics,
		cfg:          cfg,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Receive handles one delivery end to end. Nothing is mutated unless the signature
// verifies; a failed apply leaves the event id unremembered so the platform retry
// is processed again.
func (s *WebhookService) Receive(ctx context.Context, d WebhookDelivery) WebhookResponse {
	platform := domain.PlatformType(d.Platform)
	logger := s.logger.With().Str("platform", d.Platform).Str("storeId", d.StoreID).Logger()

	codec, ok := s.codecs[platform.Wire()]
	if !ok {
		// Unknown path values never become metric labels
		return s.respond("unknown", WebhookNotFound)
	}
	store, err := s.stores.Get(ctx, d.StoreID)
	if err != nil {
		if !errors.Is(err, domain.ErrStoreNotFound) {
			logger.Error().Err(err).Msg("Failed to load store for webhook")
			return s.respond(platform, WebhookFailed)
		}
		return s.respond(platform, WebhookNotFound)
	}
	if store.PlatformType.Wire() != platform.Wire() {
		logger.Warn().Msg("Webhook platform does not match store")
		return s.respond(platform, WebhookNotFound)
	}

	body, err := io.ReadAll(io.LimitReader(d.Body, s.cfg.MaxBodyBytes+1))
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read webhook body")
		return s.respond(platform, WebhookInvalid)
	}
	if int64(len(body)) > s.cfg.MaxBodyBytes {
		logger.Warn().Int64("maxBytes", s.cfg.MaxBodyBytes).Msg("Webhook body too large")
		return s.respond(platform, WebhookTooLarge)
	}

	if pd, ok := codec.(ports.PingDetector); ok && pd.IsPing(d.Header, body) {
		logger.Info().Msg("Webhook ping received")
		return s.respond(platform, WebhookPing)
	}

	integration, err := s.integrations.GetByStoreID(ctx, store.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrIntegrationNotFound) {
			logger.Error().Err(err).Msg("Failed to load store integration for webhook")
			return s.respond(platform, WebhookFailed)
		}
		logger.Warn().Msg("Webhook for store without integration")
		return s.respond(platform, WebhookUnauthorized)
	}
	if err := codec.Verify(d.Header, body, webhookSecret(store, integration)); err != nil {
		logger.Warn().Str("security", "webhook_signature").Msg("Rejected webhook with invalid signature")
		return s.respond(platform, WebhookUnauthorized)
	}

	event, err := codec.Decode(d.Header, body)
	if err != nil {
		if domain.KindOf(err) == domain.KindMapping {
			logger.Warn().Err(err).Msg("Undecodable webhook payload")
			return s.respond(platform, WebhookInvalid)
		}
		logger.Info().Err(err).Msg("Webhook topic not handled")
		return s.respond(platform, WebhookIgnored)
	}
	if event.Ping {
		logger.Info().Msg("Webhook ping received")
		return s.respond(platform, WebhookPing)
	}
	event.StoreID = store.ID
	event.ReceivedAt = s.now()
	logger = logger.With().Str("eventId", event.ID).Str("topic", event.Topic).Logger()

	if !store.IsActive || !store.SyncSettings.Enabled(event.Domain) {
		logger.Info().Msg("Webhook for inactive store or disabled domain ignored")
		return s.respond(platform, WebhookIgnored)
	}

	seen, err := s.deduper.Seen(ctx, store.ID, event.ID)
	if err != nil {
		// Treated as unseen
		logger.Warn().Err(err).Msg("Failed to check webhook event id")
	}
	if seen {
		logger.Info().Msg("Duplicate webhook delivery")
		return s.respond(platform, WebhookDuplicate)
	}

	if err := s.applier.ApplyOne(ctx, store, event); err != nil {
		if domain.KindOf(err) == domain.KindMapping {
			logger.Warn().Err(err).Msg("Webhook record could not be mapped")
			return s.respond(platform, WebhookInvalid)
		}
		logger.Error().Err(err).Msg("Failed to apply webhook")
		return s.respond(platform, WebhookFailed)
	}

	if err := s.deduper.Remember(ctx, store.ID, event.ID, s.cfg.DedupeTTL); err != nil {
		logger.Warn().Err(err).Msg("Failed to remember webhook event id")
	}
	logger.Info().Str("externalId", event.ExternalID).Str("action", string(event.Action)).Msg("Webhook processed")
	return s.respond(platform, WebhookApplied)
}

func (s *WebhookService) respond(platform domain.PlatformType, result string) WebhookResponse {
	s.metrics.WebhookHandled(platform.Wire(), result)

	resp := WebhookResponse{StatusCode: http.StatusOK, Result: result}
	switch result {
	case WebhookApplied, WebhookPing:
		resp.Body = map[string]any{"ok": true}
	case WebhookDuplicate:
		resp.Body = map[string]any{"ok": true, "duplicate": true}
	case WebhookIgnored:
		resp.Body = map[string]any{"ok": true, "ignored": true}
	case WebhookNotFound:
		resp.StatusCode = http.StatusNotFound
		resp.Body = map[string]any{"error": "not found"}
	case WebhookTooLarge:
		resp.StatusCode = http.StatusRequestEntityTooLarge
		resp.Body = map[string]any{"error": "payload too large"}
	case WebhookUnauthorized:
		resp.StatusCode = http.StatusUnauthorized
		resp.Body = map[string]any{"error": "unauthorized"}
	case WebhookInvalid:
		resp.StatusCode = http.StatusUnprocessableEntity
		resp.Body = map[string]any{"error": "invalid payload"}
	default:
		resp.StatusCode = http.StatusInternalServerError
		resp.Body = map[string]any{"error": "internal error"}
	}
	return resp
}

// webhookSecret returns the signing secret of a store. Shopify apps sign with the
// app secret when no dedicated webhook secret is configured.
func webhookSecret(store *domain.Store, integration *domain.StoreIntegration) domain.Secret {
	if integration.WebhookSecret.IsZero() && store.PlatformType == domain.PlatformShopify {
		return integration.APISecret
	}
	return integration.WebhookSecret
}

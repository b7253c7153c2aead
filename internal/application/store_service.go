package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CallbackURLFunc returns the public webhook URL of a store
type CallbackURLFunc func(platform, storeID string) string

// StoreService handles store configuration and connection management
type StoreService struct {
	stores       ports.StoreRepository
	integrations ports.IntegrationRepository
	logs         ports.SyncLogRepository
	factory      ports.PlatformFactory
	codecs       map[domain.PlatformType]ports.WebhookCodec
	callbackURL  CallbackURLFunc
	logger       zerolog.Logger
}

// NewStoreService creates a new store service
func NewStoreService(
	stores ports.StoreRepository,
	integrations ports.IntegrationRepository,
	logs ports.SyncLogRepository,
	factory ports.PlatformFactory,
	codecs map[domain.PlatformType]ports.WebhookCodec,
	callbackURL CallbackURLFunc,
	logger zerolog.Logger,
) *StoreService {
	return &StoreService{
		stores:       stores,
		integrations: integrations,
		logs:         logs,
		factory:      factory,
		codecs:       codecs,
		callbackURL:  callbackURL,
		logger:       logger,
	}
}

// SaveStore validates and stores a store configuration. A missing id is generated.
func (s *StoreService) SaveStore(ctx context.Context, store *domain.Store) (*domain.Store, error) {
	if !store.PlatformType.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedPlatform, store.PlatformType)
	}
	u, err := url.Parse(store.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return nil, fmt.Errorf("%w: base url %q", domain.ErrInvalidStore, store.BaseURL)
	}
	store.BaseURL = strings.TrimRight(store.BaseURL, "/")
	if store.BranchID == "" {
		return nil, fmt.Errorf("%w: branch is required", domain.ErrInvalidStore)
	}
	if store.ID == "" {
		store.ID = uuid.New().String()
	}

	if err := s.stores.Save(ctx, store); err != nil {
		return nil, fmt.Errorf("failed to save store: %w", err)
	}
	s.logger.Info().Str("storeId", store.ID).Str("platform", string(store.PlatformType)).Msg("Store configuration saved")
	return store, nil
}

// CredentialsInput represents the credentials submitted for a store
type CredentialsInput struct {
	APIKey        string
	APISecret     string
	AccessToken   string
	WebhookSecret string
}

// SaveCredentials stores the credentials of a store. Platforms that accept a secret at
// webhook registration get a generated one when none is given.
func (s *StoreService) SaveCredentials(ctx context.Context, storeID string, input CredentialsInput) (*domain.StoreIntegration, error) {
	store, err := s.stores.Get(ctx, storeID)
	if err != nil {
		return nil, err
	}

	integration := &domain.StoreIntegration{
		StoreID:       store.ID,
		APIKey:        domain.Secret(input.APIKey),
		APISecret:     domain.Secret(input.APISecret),
		AccessToken:   domain.Secret(input.AccessToken),
		WebhookSecret: domain.Secret(input.WebhookSecret),
		UpdatedAt:     time.Now().UTC(),
	}
	if integration.WebhookSecret.IsZero() && store.PlatformType != domain.PlatformShopify {
		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			return nil, fmt.Errorf("failed to generate webhook secret: %w", err)
		}
		integration.WebhookSecret = domain.Secret(hex.EncodeToString(secretBytes))
	}

	// The factory rejects credential sets the platform cannot authenticate with
	if _, err := s.factory.ForStore(store, integration); err != nil {
		return nil, err
	}

	existing, err := s.integrations.GetByStoreID(ctx, store.ID)
	switch {
	case err == nil:
		integration.CreatedAt = existing.CreatedAt
	case errors.Is(err, domain.ErrIntegrationNotFound):
		integration.CreatedAt = integration.UpdatedAt
	default:
		return nil, fmt.Errorf("failed to check existing integration: %w", err)
	}

	if err := s.integrations.Save(ctx, integration); err != nil {
		return nil, fmt.Errorf("failed to save store integration: %w", err)
	}
	s.logger.Info().Str("storeId", store.ID).Msg("Store credentials saved")
	return integration, nil
}

// TestConnection checks that the store answers with the saved credentials
func (s *StoreService) TestConnection(ctx context.Context, storeID string) (domain.Outcome, error) {
	store, client, err := s.client(ctx, storeID)
	if err != nil {
		return domain.Outcome{}, err
	}
	out := client.TestConnection(ctx)
	s.logger.Info().
		Str("storeId", store.ID).
		Bool("ok", out.OK).
		Int("statusCode", out.StatusCode).
		Msg("Store connection tested")
	return out, nil
}

// RegisterWebhooks subscribes the store to the topics of its enabled domains
func (s *StoreService) RegisterWebhooks(ctx context.Context, storeID string) ([]domain.ItemOutcome, error) {
	store, client, err := s.client(ctx, storeID)
	if err != nil {
		return nil, err
	}
	codec, ok := s.codecs[store.PlatformType.Wire()]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedPlatform, store.PlatformType)
	}

	var enabled []domain.SyncDomain
	for _, d := range []domain.SyncDomain{domain.DomainProducts, domain.DomainInventory, domain.DomainOrders, domain.DomainCustomers} {
		if store.SyncSettings.Enabled(d) {
			enabled = append(enabled, d)
		}
	}
	topics := codec.Topics(enabled)
	if len(topics) == 0 {
		return []domain.ItemOutcome{}, nil
	}

	results := client.RegisterWebhooks(ctx, topics, s.callbackURL(string(store.PlatformType), store.ID))
	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
		}
	}
	s.logger.Info().
		Str("storeId", store.ID).
		Int("topics", len(topics)).
		Int("failed", failed).
		Msg("Webhooks registered")
	return results, nil
}

// LatestLogs returns the most recent log of every (domain, direction) pair that has run
func (s *StoreService) LatestLogs(ctx context.Context, storeID string) ([]*domain.SyncLog, error) {
	if _, err := s.stores.Get(ctx, storeID); err != nil {
		return nil, err
	}
	logs := []*domain.SyncLog{}
	for _, d := range []domain.SyncDomain{domain.DomainProducts, domain.DomainInventory, domain.DomainOrders, domain.DomainCustomers} {
		for _, dir := range []domain.Direction{domain.DirectionPull, domain.DirectionPush} {
			log, err := s.logs.Latest(ctx, storeID, d, dir)
			if err != nil {
				return nil, fmt.Errorf("failed to get latest sync log: %w", err)
			}
			if log != nil {
				logs = append(logs, log)
			}
		}
	}
	return logs, nil
}

// GetLog returns one sync log of the store
func (s *StoreService) GetLog(ctx context.Context, storeID, logID string) (*domain.SyncLog, error) {
	log, err := s.logs.Get(ctx, logID)
	if err != nil {
		return nil, err
	}
	if log.StoreID != storeID {
		return nil, domain.ErrSyncLogNotFound
	}
	return log, nil
}

func (s *StoreService) client(ctx context.Context, storeID string) (*domain.Store, ports.PlatformClient, error) {
	store, err := s.stores.Get(ctx, storeID)
	if err != nil {
		return nil, nil, err
	}
	integration, err := s.integrations.GetByStoreID(ctx, store.ID)
	if err != nil {
		return nil, nil, err
	}
	client, err := s.factory.ForStore(store, integration)
	if err != nil {
		return nil, nil, err
	}
	return store, client, nil
}

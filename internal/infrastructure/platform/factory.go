// Package platform resolves the storefront client and webhook codec of a store
package platform

import (
	"fmt"

	"store-sync-engine/internal/config"
	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/infrastructure/platform/laravel"
	"store-sync-engine/internal/infrastructure/platform/shopify"
	"store-sync-engine/internal/infrastructure/platform/transport"
	"store-sync-engine/internal/infrastructure/platform/woocommerce"
	"store-sync-engine/internal/ports"

	"github.com/rs/zerolog"
)

// Factory builds one client per store run. Each client gets its own transport, so
// pacing and the page guard apply per store.
type Factory struct {
	opts           transport.Options
	shopifyVersion string
	logger         zerolog.Logger
}

var _ ports.PlatformFactory = (*Factory)(nil)

// NewFactory creates a new platform factory
func NewFactory(opts transport.Options, shopifyVersion string, logger zerolog.Logger) *Factory {
	return &Factory{
		opts:           opts,
		shopifyVersion: shopifyVersion,
		logger:         logger,
	}
}

// OptionsFromConfig maps the sync configuration onto transport options
func OptionsFromConfig(cfg config.SyncConfig, observer transport.Observer) transport.Options {
	opts := transport.DefaultOptions()
	opts.Timeout = cfg.HTTPTimeout
	opts.MaxAttempts = cfg.RetryAttempts
	opts.RatePerSecond = cfg.RatePerSecond
	opts.Burst = max(1, int(cfg.RatePerSecond))
	opts.MaxPages = cfg.MaxPages
	opts.PageSize = cfg.PageSize
	opts.Observer = observer
	return opts
}

// ForStore implements ports.PlatformFactory
func (f *Factory) ForStore(store *domain.Store, integration *domain.StoreIntegration) (ports.PlatformClient, error) {
	if store == nil {
		return nil, fmt.Errorf("failed to create platform client: store is nil")
	}
	platform := store.PlatformType.Wire()
	logger := f.logger.With().Str("storeId", store.ID).Logger()
	tr := transport.New(platform, f.opts, logger)

	var (
		client ports.PlatformClient
		err    error
	)
	switch platform {
	case domain.PlatformShopify:
		client, err = shopify.NewClient(store.BaseURL, f.shopifyVersion, integration, tr, logger)
	case domain.PlatformWooCommerce:
		client, err = woocommerce.NewClient(store.BaseURL, integration, tr, logger)
	case domain.PlatformLaravel:
		client, err = laravel.NewClient(store.BaseURL, integration, tr, logger)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedPlatform, store.PlatformType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", platform, err)
	}
	return client, nil
}

// Codecs returns the webhook codec of every supported platform
func Codecs() map[domain.PlatformType]ports.WebhookCodec {
	codecs := map[domain.PlatformType]ports.WebhookCodec{}
	for _, c := range []ports.WebhookCodec{shopify.WebhookCodec{}, woocommerce.WebhookCodec{}, laravel.WebhookCodec{}} {
		codecs[c.Platform()] = c
	}
	return codecs
}

package application

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"store-sync-engine/internal/config"
	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/infrastructure/platform"
	"store-sync-engine/internal/infrastructure/platform/signature"
	"store-sync-engine/internal/infrastructure/repository/memory"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const laravelProductBody = `{"event":"product.updated","event_id":"e-1","data":{"id":4,"sku":"LV-4","name":"Lamp","price":"20.00","stock":2}}`

type recordingMetrics struct {
	mu      sync.Mutex
	results map[string]int
}

func (m *recordingMetrics) RunFinished(domain.PlatformType, *domain.SyncLog, time.Duration) {}

func (m *recordingMetrics) WebhookHandled(_ domain.PlatformType, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.results == nil {
		m.results = map[string]int{}
	}
	m.results[result]++
}

// countingApplier wraps an Applier and can be told to fail
type countingApplier struct {
	inner Applier
	calls int
	err   error
}

func (a *countingApplier) ApplyOne(ctx context.Context, store *domain.Store, event *domain.WebhookEvent) error {
	a.calls++
	if a.err != nil {
		return a.err
	}
	return a.inner.ApplyOne(ctx, store, event)
}

type webhookFixture struct {
	*fixture
	deduper *memory.Deduper
	applier *countingApplier
	metrics *recordingMetrics
	service *WebhookService
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	f := &webhookFixture{
		fixture: newFixture(t),
		deduper: memory.NewDeduper(),
		metrics: &recordingMetrics{},
	}
	f.applier = &countingApplier{inner: f.orchestrator}
	f.service = NewWebhookService(f.stores, f.integrations, platform.Codecs(), f.deduper, f.applier, f.metrics,
		config.WebhookConfig{DedupeTTL: time.Hour, MaxBodyBytes: 4096}, zerolog.Nop())

	ctx := context.Background()
	woo := testStore("woo-1")
	woo.PlatformType = domain.PlatformWooCommerce
	require.NoError(t, f.stores.Save(ctx, woo))
	require.NoError(t, f.integrations.Save(ctx, &domain.StoreIntegration{StoreID: "woo-1", APIKey: "ck", APISecret: "cs", WebhookSecret: "woo-secret"}))

	shop := testStore("shop-1")
	shop.PlatformType = domain.PlatformShopify
	require.NoError(t, f.stores.Save(ctx, shop))
	require.NoError(t, f.integrations.Save(ctx, &domain.StoreIntegration{StoreID: "shop-1", AccessToken: "shpat", APISecret: "app-secret"}))
	return f
}

func laravelDelivery(body, secret string) WebhookDelivery {
	return WebhookDelivery{
		Platform: "laravel",
		StoreID:  "store-1",
		Header:   http.Header{"X-Webhook-Signature": {signature.Hex([]byte(body), secret)}},
		Body:     strings.NewReader(body),
	}
}

func TestWebhookService_AppliesVerifiedDelivery(t *testing.T) {
	f := newWebhookFixture(t)

	resp := f.service.Receive(context.Background(), laravelDelivery(laravelProductBody, "whsec"))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, WebhookApplied, resp.Result)
	assert.Equal(t, 1, f.products.Len())
	link, err := f.productLinks.GetByExternalID(context.Background(), "store-1", "4")
	require.NoError(t, err)
	assert.NotNil(t, link)
}

func TestWebhookService_RejectsBadSignatureWithoutMutations(t *testing.T) {
	f := newWebhookFixture(t)

	for _, d := range []WebhookDelivery{
		laravelDelivery(laravelProductBody, "wrong-secret"),
		{Platform: "laravel", StoreID: "store-1", Header: http.Header{}, Body: strings.NewReader(laravelProductBody)},
	} {
		resp := f.service.Receive(context.Background(), d)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, map[string]any{"error": "unauthorized"}, resp.Body)
	}

	assert.Equal(t, 0, f.applier.calls)
	assert.Equal(t, 0, f.products.Len())
	assert.Equal(t, 2, f.metrics.results[WebhookUnauthorized])
	seen, err := f.deduper.Seen(context.Background(), "store-1", "e-1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestWebhookService_DuplicateDeliveryIsAppliedOnce(t *testing.T) {
	f := newWebhookFixture(t)

	first := f.service.Receive(context.Background(), laravelDelivery(laravelProductBody, "whsec"))
	second := f.service.Receive(context.Background(), laravelDelivery(laravelProductBody, "whsec"))

	assert.Equal(t, WebhookApplied, first.Result)
	assert.Equal(t, http.StatusOK, second.StatusCode)
	assert.Equal(t, WebhookDuplicate, second.Result)
	assert.Equal(t, true, second.Body["duplicate"])
	assert.Equal(t, 1, f.applier.calls)
}

func TestWebhookService_FailedApplyIsRetried(t *testing.T) {
	f := newWebhookFixture(t)
	f.applier.err = errors.New("database unavailable")

	resp := f.service.Receive(context.Background(), laravelDelivery(laravelProductBody, "whsec"))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	f.applier.err = nil
	resp = f.service.Receive(context.Background(), laravelDelivery(laravelProductBody, "whsec"))
	assert.Equal(t, WebhookApplied, resp.Result)
	assert.Equal(t, 2, f.applier.calls)
}

func TestWebhookService_MappingErrors(t *testing.T) {
	f := newWebhookFixture(t)

	noSKU := `{"event":"product.updated","event_id":"e-2","data":{"id":5,"name":"No sku"}}`
	resp := f.service.Receive(context.Background(), laravelDelivery(noSKU, "whsec"))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	malformed := `{"event":`
	resp = f.service.Receive(context.Background(), laravelDelivery(malformed, "whsec"))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	unknownTopic := `{"event":"invoice.paid","data":{"id":1}}`
	resp = f.service.Receive(context.Background(), laravelDelivery(unknownTopic, "whsec"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, WebhookIgnored, resp.Result)
}

func TestWebhookService_NotFound(t *testing.T) {
	f := newWebhookFixture(t)
	body := laravelProductBody

	tests := []struct {
		name     string
		platform string
		storeID  string
	}{
		{"unknown store", "laravel", "missing"},
		{"platform mismatch", "woocommerce", "store-1"},
		{"unknown platform", "magento", "store-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := laravelDelivery(body, "whsec")
			d.Platform, d.StoreID = tt.platform, tt.storeID
			resp := f.service.Receive(context.Background(), d)
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		})
	}
	assert.Equal(t, 0, f.applier.calls)
}

func TestWebhookService_CustomStoresUseLaravelPath(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	custom := testStore("custom-1")
	custom.PlatformType = domain.PlatformCustom
	require.NoError(t, f.stores.Save(ctx, custom))
	require.NoError(t, f.integrations.Save(ctx, &domain.StoreIntegration{StoreID: "custom-1", APIKey: "k", WebhookSecret: "whsec"}))

	d := laravelDelivery(laravelProductBody, "whsec")
	d.StoreID = "custom-1"
	resp := f.service.Receive(ctx, d)
	assert.Equal(t, WebhookApplied, resp.Result)

	d = laravelDelivery(laravelProductBody, "whsec")
	d.Platform, d.StoreID = "custom", "custom-1"
	resp = f.service.Receive(ctx, d)
	assert.Equal(t, WebhookDuplicate, resp.Result)
}

func TestWebhookService_BodyLimit(t *testing.T) {
	f := newWebhookFixture(t)
	body := `{"event":"product.updated","data":{"id":4,"name":"` + strings.Repeat("x", 5000) + `"}}`

	resp := f.service.Receive(context.Background(), laravelDelivery(body, "whsec"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, 0, f.applier.calls)
}

func TestWebhookService_WooCommercePing(t *testing.T) {
	f := newWebhookFixture(t)
	body := "webhook_id=12"

	// WooCommerce sends the ping unsigned
	resp := f.service.Receive(context.Background(), WebhookDelivery{
		Platform: "woocommerce",
		StoreID:  "woo-1",
		Header:   http.Header{},
		Body:     strings.NewReader(body),
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, WebhookPing, resp.Result)
	assert.Equal(t, 0, f.applier.calls)
}

func TestWebhookService_WooCommerceTopicNeedsSignature(t *testing.T) {
	f := newWebhookFixture(t)
	body := `{"id":15,"name":"Mug","sku":"MUG"}`

	header := http.Header{}
	header.Set("X-WC-Webhook-Topic", "product.updated")
	resp := f.service.Receive(context.Background(), WebhookDelivery{
		Platform: "woocommerce",
		StoreID:  "woo-1",
		Header:   header,
		Body:     strings.NewReader(body),
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, f.applier.calls)

	header.Set("X-WC-Webhook-Signature", signature.Base64([]byte(body), "woo-secret"))
	header.Set("X-WC-Webhook-Delivery-ID", "d-1")
	resp = f.service.Receive(context.Background(), WebhookDelivery{
		Platform: "woocommerce",
		StoreID:  "woo-1",
		Header:   header,
		Body:     strings.NewReader(body),
	})
	assert.Equal(t, WebhookApplied, resp.Result)
	assert.Equal(t, 1, f.applier.calls)
}

func TestWebhookService_ShopifyFallsBackToAppSecret(t *testing.T) {
	f := newWebhookFixture(t)
	body := `{"id":632910392,"title":"IPod","variants":[{"sku":"IPOD","price":"199.00","inventory_quantity":3}]}`

	resp := f.service.Receive(context.Background(), WebhookDelivery{
		Platform: "shopify",
		StoreID:  "shop-1",
		Header: http.Header{
			"X-Shopify-Hmac-Sha256": {signature.Base64([]byte(body), "app-secret")},
			"X-Shopify-Topic":       {"products/update"},
			"X-Shopify-Webhook-Id":  {"wh-1"},
		},
		Body: strings.NewReader(body),
	})

	assert.Equal(t, WebhookApplied, resp.Result)
	link, err := f.productLinks.GetByExternalID(context.Background(), "shop-1", "632910392")
	require.NoError(t, err)
	assert.NotNil(t, link)
}

func TestWebhookService_DisabledDomainIsIgnored(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	store := testStore("store-1")
	store.SyncSettings.SyncProducts = false
	require.NoError(t, f.stores.Save(ctx, store))

	resp := f.service.Receive(ctx, laravelDelivery(laravelProductBody, "whsec"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, WebhookIgnored, resp.Result)
	assert.Equal(t, 0, f.applier.calls)
}

package application

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"store-sync-engine/internal/config"
	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/infrastructure/platform"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wooCatalog serves a fixed product list through the WooCommerce products endpoint
type wooCatalog struct {
	mu    sync.Mutex
	total int
	pages []int
}

func (c *wooCatalog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/wp-json/wc/v3/products" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	c.mu.Lock()
	c.pages = append(c.pages, page)
	c.mu.Unlock()

	w.Header().Set("X-WP-TotalPages", strconv.Itoa((c.total+perPage-1)/perPage))
	out := []map[string]any{}
	for i := (page-1)*perPage + 1; i <= min(page*perPage, c.total); i++ {
		out = append(out, map[string]any{
			"id":             i,
			"name":           fmt.Sprintf("Product %d", i),
			"sku":            fmt.Sprintf("WC-%03d", i),
			"regular_price":  "12.00",
			"stock_quantity": i % 7,
		})
	}
	json.NewEncoder(w).Encode(out)
}

func TestPullProducts_WooCommerce250Products(t *testing.T) {
	catalog := &wooCatalog{total: 250}
	server := httptest.NewServer(catalog)
	defer server.Close()

	f := newFixture(t)
	ctx := context.Background()
	store := testStore("woo-250")
	store.PlatformType = domain.PlatformWooCommerce
	store.BaseURL = server.URL
	require.NoError(t, f.stores.Save(ctx, store))
	require.NoError(t, f.integrations.Save(ctx, &domain.StoreIntegration{StoreID: "woo-250", APIKey: "ck", APISecret: "cs"}))

	opts := platform.OptionsFromConfig(config.SyncConfig{
		HTTPTimeout:   5 * time.Second,
		MaxPages:      10,
		PageSize:      100,
		RetryAttempts: 1,
		RatePerSecond: 1000,
	}, nil)
	orchestrator := NewSyncOrchestrator(f.repositories(), platform.NewFactory(opts, "2024-10", zerolog.Nop()), f.locker, nil, nil,
		SyncOptions{RecordWorkers: 8, MaxLogErrors: 10}, zerolog.Nop())

	for run := 1; run <= 2; run++ {
		log, err := orchestrator.PullProducts(ctx, "woo-250", domain.TriggerManual)
		require.NoError(t, err)
		assert.Equal(t, domain.SyncStatusCompleted, log.Status, "run %d", run)
		assert.Equal(t, 250, log.RecordsSuccess)
		assert.Equal(t, 0, log.RecordsFailed)
		assert.Equal(t, 3, log.PagesFetched)

		links, err := f.productLinks.Count(ctx, "woo-250")
		require.NoError(t, err)
		assert.Equal(t, 250, links)
		assert.Equal(t, 250, f.products.Len())
	}
	assert.Equal(t, []int{1, 2, 3, 1, 2, 3}, catalog.pages)
}

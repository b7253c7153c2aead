package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"store-sync-engine/internal/application"
	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/infrastructure/pubsub"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	mu   sync.Mutex
	reqs []application.RunRequest
	err  error
}

func (s *stubRunner) Run(_ context.Context, req application.RunRequest) (*domain.SyncLog, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	log := domain.NewSyncLog("log-1", req.StoreID, req.Domain, req.Direction, req.Trigger, time.Now())
	log.RecordsSuccess = 3
	_ = log.Finalize(domain.SyncStatusCompleted, "", time.Now())
	return log, nil
}

type stubTicker struct {
	summaries []application.RunSummary
	at        time.Time
}

func (s *stubTicker) RunDue(_ context.Context, now time.Time) ([]application.RunSummary, error) {
	s.at = now
	return s.summaries, nil
}

type stubReceiver struct {
	delivery application.WebhookDelivery
	body     string
}

func (s *stubReceiver) Receive(_ context.Context, d application.WebhookDelivery) application.WebhookResponse {
	s.delivery = d
	b, _ := io.ReadAll(d.Body)
	s.body = string(b)
	return application.WebhookResponse{StatusCode: http.StatusUnauthorized, Result: application.WebhookUnauthorized, Body: map[string]any{"error": "unauthorized"}}
}

type stubStores struct {
	saved *domain.Store
	err   error
}

func (s *stubStores) SaveStore(_ context.Context, store *domain.Store) (*domain.Store, error) {
	if s.err != nil {
		return nil, s.err
	}
	if store.ID == "" {
		store.ID = "generated"
	}
	s.saved = store
	return store, nil
}

func (s *stubStores) SaveCredentials(_ context.Context, storeID string, in application.CredentialsInput) (*domain.StoreIntegration, error) {
	return &domain.StoreIntegration{StoreID: storeID, AccessToken: domain.Secret(in.AccessToken), WebhookSecret: "generated-secret"}, nil
}

func (s *stubStores) TestConnection(_ context.Context, storeID string) (domain.Outcome, error) {
	if storeID == "missing" {
		return domain.Outcome{}, domain.ErrStoreNotFound
	}
	return domain.Succeeded(200), nil
}

func (s *stubStores) RegisterWebhooks(context.Context, string) ([]domain.ItemOutcome, error) {
	return []domain.ItemOutcome{{ExternalID: "product.updated", Outcome: domain.Succeeded(201)}}, nil
}

func (s *stubStores) LatestLogs(context.Context, string) ([]*domain.SyncLog, error) {
	return []*domain.SyncLog{}, nil
}

func (s *stubStores) GetLog(_ context.Context, storeID, logID string) (*domain.SyncLog, error) {
	return nil, domain.ErrSyncLogNotFound
}

type testAPI struct {
	runner   *stubRunner
	ticker   *stubTicker
	webhooks *stubReceiver
	stores   *stubStores
	events   *pubsub.RunPubSub
	handler  *Handler
	router   chi.Router
}

func newTestAPI(adminToken string) *testAPI {
	a := &testAPI{
		runner:   &stubRunner{},
		ticker:   &stubTicker{},
		webhooks: &stubReceiver{},
		stores:   &stubStores{},
		events:   pubsub.NewRunPubSub(zerolog.Nop()),
	}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "sync_runs_total 1\n") })
	a.handler = NewHandler(a.runner, a.ticker, a.webhooks, a.stores, a.events, metrics, adminToken, zerolog.Nop())
	a.router = chi.NewRouter()
	a.handler.Register(a.router)
	return a
}

func (a *testAPI) do(method, path, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	a := newTestAPI("")

	rec := a.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = a.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sync_runs_total")
}

func TestTriggerSync(t *testing.T) {
	a := newTestAPI("")

	rec := a.do(http.MethodPost, "/api/v1/stores/store-1/sync/products/pull", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var log domain.SyncLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &log))
	assert.Equal(t, "log-1", log.ID)
	assert.Equal(t, 3, log.RecordsSuccess)
	assert.Equal(t, domain.SyncStatusCompleted, log.Status)
	require.Len(t, a.runner.reqs, 1)
	assert.Equal(t, application.RunRequest{StoreID: "store-1", Domain: domain.DomainProducts, Direction: domain.DirectionPull, Trigger: domain.TriggerManual}, a.runner.reqs[0])
}

func TestTriggerSync_ErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		path string
		err  error
		want int
	}{
		{"unknown domain", "/api/v1/stores/s/sync/invoices/pull", nil, http.StatusBadRequest},
		{"unknown direction", "/api/v1/stores/s/sync/products/sideways", nil, http.StatusBadRequest},
		{"store not found", "/api/v1/stores/s/sync/products/pull", domain.ErrStoreNotFound, http.StatusNotFound},
		{"run in progress", "/api/v1/stores/s/sync/products/pull", domain.ErrRunInProgress, http.StatusConflict},
		{"inactive", "/api/v1/stores/s/sync/orders/pull", domain.ErrStoreInactive, http.StatusUnprocessableEntity},
		{"disabled", "/api/v1/stores/s/sync/orders/push", fmt.Errorf("wrapped: %w", domain.ErrDomainDisabled), http.StatusUnprocessableEntity},
		{"unsupported pair", "/api/v1/stores/s/sync/inventory/pull", domain.ErrUnsupportedSync, http.StatusBadRequest},
		{"unexpected", "/api/v1/stores/s/sync/products/pull", errors.New("mongo: connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAPI("")
			a.runner.err = tt.err

			rec := a.do(http.MethodPost, tt.path, "", nil)
			assert.Equal(t, tt.want, rec.Code)
			assert.NotContains(t, rec.Body.String(), "mongo")
		})
	}
}

func TestAdminToken(t *testing.T) {
	a := newTestAPI("s3cret")

	rec := a.do(http.MethodPost, "/api/v1/stores/store-1/sync/products/pull", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = a.do(http.MethodPost, "/api/v1/stores/store-1/sync/products/pull", "", http.Header{"Authorization": {"Bearer wrong"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, a.runner.reqs)

	rec = a.do(http.MethodPost, "/api/v1/stores/store-1/sync/products/pull", "", http.Header{"Authorization": {"Bearer s3cret"}})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Public and signature-authenticated routes need no token
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, "/api/v1/webhooks/laravel/store-1", "{}", nil).Code)
	assert.Equal(t, "store-1", a.webhooks.delivery.StoreID)
}

func TestReceiveWebhook(t *testing.T) {
	a := newTestAPI("")
	body := `{"event":"product.updated","data":{"id":1}}`

	rec := a.do(http.MethodPost, "/api/v1/webhooks/woocommerce/woo-1", body, http.Header{"X-Wc-Webhook-Signature": {"abc"}})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
	assert.Equal(t, "woocommerce", a.webhooks.delivery.Platform)
	assert.Equal(t, "woo-1", a.webhooks.delivery.StoreID)
	assert.Equal(t, "abc", a.webhooks.delivery.Header.Get("X-WC-Webhook-Signature"))
	assert.Equal(t, body, a.webhooks.body)
}

func TestSaveStore(t *testing.T) {
	a := newTestAPI("")
	body := `{"name":"Shop","platform_type":"shopify","base_url":"https://a.myshopify.com","branch_id":"b1","is_active":true,"sync_settings":{"sync_products":true}}`

	rec := a.do(http.MethodPost, "/api/v1/stores", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "generated", a.stores.saved.ID)
	assert.True(t, a.stores.saved.SyncSettings.SyncProducts)

	rec = a.do(http.MethodPut, "/api/v1/stores/store-9", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "store-9", a.stores.saved.ID)

	rec = a.do(http.MethodPost, "/api/v1/stores", `{"name":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	a.stores.err = fmt.Errorf("%w: branch is required", domain.ErrInvalidStore)
	rec = a.do(http.MethodPost, "/api/v1/stores", body, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveCredentials_RedactsSecrets(t *testing.T) {
	a := newTestAPI("")

	rec := a.do(http.MethodPut, "/api/v1/stores/store-1/credentials", `{"access_token":"shpat_live"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "shpat_live")
	assert.NotContains(t, rec.Body.String(), "generated-secret")
}

func TestStoreAdminRoutes(t *testing.T) {
	a := newTestAPI("")

	rec := a.do(http.MethodPost, "/api/v1/stores/store-1/test-connection", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"status_code":200}`, rec.Body.String())

	rec = a.do(http.MethodPost, "/api/v1/stores/missing/test-connection", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodPost, "/api/v1/stores/store-1/webhooks/register", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "product.updated")

	rec = a.do(http.MethodGet, "/api/v1/stores/store-1/sync-logs/latest", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"logs":[]}`, rec.Body.String())

	rec = a.do(http.MethodGet, "/api/v1/stores/store-1/sync-logs/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSchedulerTick(t *testing.T) {
	a := newTestAPI("")

	rec := a.do(http.MethodPost, "/api/v1/scheduler/tick", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"runs":[]}`, rec.Body.String())
	assert.False(t, a.ticker.at.IsZero())

	a.ticker.summaries = []application.RunSummary{{StoreID: "a", Domain: domain.DomainOrders, Direction: domain.DirectionPull, Skipped: true}}
	rec = a.do(http.MethodPost, "/api/v1/scheduler/tick", "", nil)
	assert.JSONEq(t, `{"runs":[{"store_id":"a","domain":"orders","direction":"pull","skipped":true}]}`, rec.Body.String())
}

func TestStreamEvents(t *testing.T) {
	a := newTestAPI("")
	server := httptest.NewServer(a.router)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/v1/events?store_id=store-1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	next := func() (string, string) {
		var event, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case line == "" && event != "":
				return event, data
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			}
		}
	}

	event, _ := next()
	require.Equal(t, "connected", event)

	other := domain.NewSyncLog("log-0", "store-2", domain.DomainProducts, domain.DirectionPull, domain.TriggerManual, time.Now())
	a.events.RunFinished(ctx, &domain.Store{ID: "store-2"}, other)
	log := domain.NewSyncLog("log-1", "store-1", domain.DomainProducts, domain.DirectionPull, domain.TriggerManual, time.Now())
	_ = log.Finalize(domain.SyncStatusCompleted, "", time.Now())
	a.events.RunFinished(ctx, &domain.Store{ID: "store-1", Name: "Main", PlatformType: domain.PlatformShopify}, log)

	event, data := next()
	assert.Equal(t, "run_finished", event)
	var got pubsub.RunEvent
	require.NoError(t, json.Unmarshal([]byte(data), &got))
	assert.Equal(t, "store-1", got.StoreID)
	assert.Equal(t, "log-1", got.Log.ID)
	assert.Equal(t, domain.SyncStatusCompleted, got.Status)
}

package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"store-sync-engine/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	return Options{
		Timeout:        time.Second,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		RatePerSecond:  1000,
		Burst:          100,
		MaxPages:       10,
		PageSize:       100,
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	statuses []int
	ops      []string
}

func (o *recordingObserver) ObserveRequest(_ domain.PlatformType, op string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, status)
	o.ops = append(o.ops, op)
}

func get(url string) func(ctx context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		return NewJSONRequest(ctx, http.MethodGet, url, nil)
	}
}

func TestTransport_Do_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	obs := &recordingObserver{}
	opts := testOptions()
	opts.Observer = obs
	tr := New(domain.PlatformWooCommerce, opts, zerolog.Nop())

	resp, err := tr.Do(context.Background(), "list products", get(server.URL))
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(resp.Body))
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, []int{502, 502, 200}, obs.statuses)
	assert.Equal(t, "list products", obs.ops[0])
}

func TestTransport_Do_GivesUpAfterMaxAttempts(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"secret":"do-not-leak"}`))
	}))
	defer server.Close()

	tr := New(domain.PlatformWooCommerce, testOptions(), zerolog.Nop())
	_, err := tr.Do(context.Background(), "get product", get(server.URL))

	var pe *domain.PlatformError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, domain.KindRemote, pe.Kind)
	assert.Equal(t, 503, pe.StatusCode)
	assert.NotContains(t, pe.Error(), "do-not-leak")
	assert.Equal(t, int32(3), hits.Load())
}

func TestTransport_Do_DoesNotRetryClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   domain.ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, domain.KindAuth},
		{"forbidden", http.StatusForbidden, domain.KindAuth},
		{"not found", http.StatusNotFound, domain.KindNotFound},
		{"rate limited", http.StatusTooManyRequests, domain.KindRateLimit},
		{"validation", http.StatusUnprocessableEntity, domain.KindRemote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			tr := New(domain.PlatformLaravel, testOptions(), zerolog.Nop())
			_, err := tr.Do(context.Background(), "op", get(server.URL))

			assert.Equal(t, tt.kind, domain.KindOf(err))
			assert.Equal(t, int32(1), hits.Load())
		})
	}
}

func TestTransport_Do_TimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	opts := testOptions()
	opts.Timeout = 20 * time.Millisecond
	opts.MaxAttempts = 2
	tr := New(domain.PlatformWooCommerce, opts, zerolog.Nop())

	_, err := tr.Do(context.Background(), "list products", get(server.URL))
	assert.Equal(t, domain.KindNetwork, domain.KindOf(err))
}

func TestTransport_Do_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := New(domain.PlatformWooCommerce, testOptions(), zerolog.Nop())
	_, err := tr.Do(ctx, "list products", get(server.URL))
	assert.Equal(t, domain.KindCancelled, domain.KindOf(err))
}

func TestTransport_Retry_ClassifiesFromRecordedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tr := New(domain.PlatformShopify, testOptions(), zerolog.Nop())
	calls := 0
	err := tr.Retry(context.Background(), "get shop", func(ctx context.Context) error {
		calls++
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
		resp, err := tr.HTTPClient().Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		// A library would wrap this in its own error type
		return errors.New("library error")
	})

	assert.Equal(t, domain.KindAuth, domain.KindOf(err))
	assert.Equal(t, 1, calls)
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, domain.KindAuth, ClassifyStatus("op", 401).Kind)
	assert.Equal(t, domain.KindRateLimit, ClassifyStatus("op", 429).Kind)
	assert.Equal(t, domain.KindRemote, ClassifyStatus("op", 500).Kind)
	assert.Equal(t, "request rejected", ClassifyStatus("op", 400).Message)
}

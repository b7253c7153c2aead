package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"store-sync-engine/internal/domain"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// maxResponseSize is the maximum allowed response size from a platform API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Observer receives one call per outbound HTTP request
type Observer interface {
	ObserveRequest(platform domain.PlatformType, op string, status int, elapsed time.Duration)
}

// Options bounds the resources used against one store
type Options struct {
	Timeout        time.Duration // Per request
	MaxAttempts    int           // Including the first try
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	RatePerSecond  float64
	Burst          int
	MaxPages       int
	PageSize       int
	// Base is the underlying round tripper; nil uses http.DefaultTransport
	Base     http.RoundTripper
	Observer Observer
}

// DefaultOptions returns the production defaults
func DefaultOptions() Options {
	return Options{
		Timeout:        30 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		RatePerSecond:  2,
		Burst:          2,
		MaxPages:       500,
		PageSize:       100,
	}
}

// Transport is the outbound HTTP path shared by every platform client. It paces
// requests per store, applies a per-request timeout, retries network failures and
// 5xx responses with exponential backoff and jitter, caps response bodies and turns
// the final failure into a sanitized domain.PlatformError.
type Transport struct {
	platform domain.PlatformType
	opts     Options
	limiter  *rate.Limiter
	client   *http.Client
	logger   zerolog.Logger
}

// New creates a transport for one store
func New(platform domain.PlatformType, opts Options, logger zerolog.Logger) *Transport {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = def.InitialBackoff
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = opts.InitialBackoff
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = def.RatePerSecond
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	if opts.MaxPages < 1 {
		opts.MaxPages = def.MaxPages
	}
	if opts.PageSize < 1 {
		opts.PageSize = def.PageSize
	}
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}

	t := &Transport{
		platform: platform,
		opts:     opts,
		limiter:  rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		logger:   logger.With().Str("platform", string(platform)).Logger(),
	}
	t.client = &http.Client{Transport: &pacedRoundTripper{t: t, base: base}}
	return t
}

// HTTPClient returns a client whose requests are paced and observed. It does not
// retry; wrap calls in Retry for that.
func (t *Transport) HTTPClient() *http.Client {
	return t.client
}

// MaxPages is the pagination guard for one run
func (t *Transport) MaxPages() int {
	return t.opts.MaxPages
}

// PageSize is the number of records requested per page
func (t *Transport) PageSize() int {
	return t.opts.PageSize
}

// Response is a fully read 2xx response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Do sends the request produced by build, which is called again for each attempt.
// Only 2xx responses are returned; anything else is a *domain.PlatformError.
func (t *Transport) Do(ctx context.Context, op string, build func(ctx context.Context) (*http.Request, error)) (*Response, error) {
	var out *Response
	err := t.Retry(ctx, op, func(ctx context.Context) error {
		req, err := build(ctx)
		if err != nil {
			return domain.NewPlatformError(domain.KindRemote, op, 0, "failed to build request")
		}

		resp, err := t.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return err
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return ClassifyStatus(op, resp.StatusCode)
		}

		out = &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Retry runs fn with a per-attempt timeout until it succeeds, fails permanently or
// runs out of attempts. Errors that are not already a *domain.PlatformError are
// classified from the last HTTP status seen during the attempt.
func (t *Transport) Retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.opts.InitialBackoff
	b.MaxInterval = t.opts.MaxBackoff
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(t.opts.MaxAttempts-1)), ctx)

	attempt := 0
	operation := func() error {
		attempt++
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}

		rec := &statusRecorder{}
		attemptCtx, cancel := context.WithTimeout(withRecorder(withOp(ctx, op), rec), t.opts.Timeout)
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}

		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		pe := classify(op, err, rec.get())
		if retryable(pe) {
			return pe
		}
		return backoff.Permanent(pe)
	}

	notify := func(err error, wait time.Duration) {
		t.logger.Warn().
			Str("op", op).
			Int("attempt", attempt).
			Dur("retryIn", wait).
			Str("reason", err.Error()).
			Msg("Platform request failed, retrying")
	}

	err := backoff.RetryNotify(operation, policy, notify)
	if err == nil {
		return nil
	}

	var pe *domain.PlatformError
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.Canceled) {
		return domain.NewPlatformError(domain.KindCancelled, op, 0, "cancelled")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewPlatformError(domain.KindNetwork, op, 0, "request timed out")
	}
	return domain.NewPlatformError(domain.KindNetwork, op, 0, "connection failed")
}

// ClassifyStatus maps a non-2xx HTTP status to a sanitized platform error
func ClassifyStatus(op string, status int) *domain.PlatformError {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.NewPlatformError(domain.KindAuth, op, status, "authentication rejected")
	case status == http.StatusNotFound:
		return domain.NewPlatformError(domain.KindNotFound, op, status, "not found")
	case status == http.StatusTooManyRequests:
		return domain.NewPlatformError(domain.KindRateLimit, op, status, "rate limited")
	case status >= 500:
		return domain.NewPlatformError(domain.KindRemote, op, status, "platform unavailable")
	default:
		return domain.NewPlatformError(domain.KindRemote, op, status, "request rejected")
	}
}

// classify turns an attempt error into a PlatformError using the last status seen
func classify(op string, err error, status int) *domain.PlatformError {
	var pe *domain.PlatformError
	if errors.As(err, &pe) {
		return pe
	}
	switch {
	case status >= 300:
		return ClassifyStatus(op, status)
	case status >= 200:
		// A response arrived but could not be decoded
		return domain.NewPlatformError(domain.KindRemote, op, status, "unexpected response format")
	case errors.Is(err, context.DeadlineExceeded):
		return domain.NewPlatformError(domain.KindNetwork, op, 0, "request timed out")
	default:
		return domain.NewPlatformError(domain.KindNetwork, op, 0, "connection failed")
	}
}

func retryable(pe *domain.PlatformError) bool {
	switch pe.Kind {
	case domain.KindNetwork:
		return true
	case domain.KindRemote:
		return pe.StatusCode >= 500
	}
	return false
}

// pacedRoundTripper waits on the store's limiter, records the response status for
// classify and reports the request to the observer
type pacedRoundTripper struct {
	t    *Transport
	base http.RoundTripper
}

func (p *pacedRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if err := p.t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	resp, err := p.base.RoundTrip(req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	if rec := recorderFrom(ctx); rec != nil {
		rec.set(status)
	}
	if p.t.opts.Observer != nil {
		p.t.opts.Observer.ObserveRequest(p.t.platform, opFrom(ctx), status, time.Since(start))
	}
	return resp, err
}

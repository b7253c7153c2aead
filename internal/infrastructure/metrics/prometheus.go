// Package metrics exposes sync engine metrics to Prometheus
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/infrastructure/platform/transport"
	"store-sync-engine/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "store_sync"

// Collector owns the engine's metrics and the registry they live in
type Collector struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	recordsTotal     *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	webhooksTotal    *prometheus.CounterVec
	requestsTotal    *prometheus.CounterVec
	requestDurations *prometheus.HistogramVec
}

var (
	_ ports.SyncMetrics  = (*Collector)(nil)
	_ transport.Observer = (*Collector)(nil)
)

// NewCollector creates a new collector registered on its own registry
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Finalized sync runs by final status.",
			},
			[]string{"platform", "domain", "direction", "status"},
		),
		recordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_total",
				Help:      "Records processed by sync runs.",
			},
			[]string{"platform", "domain", "direction", "outcome"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of sync runs.",
				Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 300, 900, 1800},
			},
			[]string{"platform", "domain", "direction"},
		),
		webhooksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhooks_total",
				Help:      "Inbound webhook deliveries by result.",
			},
			[]string{"platform", "result"},
		),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "platform_requests_total",
				Help:      "Outbound platform requests by status class.",
			},
			[]string{"platform", "op", "status"},
		),
		requestDurations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "platform_request_duration_seconds",
				Help:      "Latency of outbound platform requests.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"platform"},
		),
	}
	c.registry.MustRegister(
		c.runsTotal,
		c.recordsTotal,
		c.runDuration,
		c.webhooksTotal,
		c.requestsTotal,
		c.requestDurations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// RunFinished implements ports.SyncMetrics
func (c *Collector) RunFinished(platform domain.PlatformType, log *domain.SyncLog, elapsed time.Duration) {
	p, d, dir := string(platform), string(log.Domain), string(log.Direction)
	c.runsTotal.WithLabelValues(p, d, dir, string(log.Status)).Inc()
	c.recordsTotal.WithLabelValues(p, d, dir, "success").Add(float64(log.RecordsSuccess))
	c.recordsTotal.WithLabelValues(p, d, dir, "failed").Add(float64(log.RecordsFailed))
	c.runDuration.WithLabelValues(p, d, dir).Observe(elapsed.Seconds())
}

// WebhookHandled implements ports.SyncMetrics
func (c *Collector) WebhookHandled(platform domain.PlatformType, result string) {
	c.webhooksTotal.WithLabelValues(string(platform), result).Inc()
}

// ObserveRequest implements transport.Observer
func (c *Collector) ObserveRequest(platform domain.PlatformType, op string, status int, elapsed time.Duration) {
	c.requestsTotal.WithLabelValues(string(platform), op, statusClass(status)).Inc()
	c.requestDurations.WithLabelValues(string(platform)).Observe(elapsed.Seconds())
}

// Handler returns the HTTP handler serving the registry
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}

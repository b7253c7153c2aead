package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the runtime configuration read from the environment
type Config struct {
	Port          string
	AppURL        string
	MongoURI      string
	MongoDatabase string
	RedisURL      string // Empty selects the in-process run lock
	EncryptionKey string
	AdminToken    string // Empty leaves the admin API unauthenticated

	Sync    SyncConfig
	Webhook WebhookConfig

	ShopifyAPIVersion string
}

// SyncConfig bounds the resources a run may use
type SyncConfig struct {
	HTTPTimeout     time.Duration
	MaxPages        int
	PageSize        int
	RetryAttempts   int
	RatePerSecond   float64
	RecordWorkers   int
	StoreWorkers    int
	LockTTL         time.Duration
	DefaultInterval time.Duration
	MaxLogErrors    int
}

// WebhookConfig configures inbound webhook handling
type WebhookConfig struct {
	DedupeTTL    time.Duration
	MaxBodyBytes int64
}

// Load reads configuration from environment variables, applying defaults
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		AppURL:            strings.TrimRight(getEnv("APP_URL", "http://localhost:8080"), "/"),
		MongoURI:          getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase:     getEnv("MONGODB_DATABASE", "store_sync"),
		RedisURL:          os.Getenv("REDIS_URL"),
		EncryptionKey:     os.Getenv("ENCRYPTION_KEY"),
		AdminToken:        os.Getenv("ADMIN_API_TOKEN"),
		ShopifyAPIVersion: getEnv("SHOPIFY_API_VERSION", "2024-10"),
		Webhook: WebhookConfig{
			MaxBodyBytes: 1 << 20,
		},
	}

	var err error
	p := &parser{}
	cfg.Sync.HTTPTimeout = p.durationVal("SYNC_HTTP_TIMEOUT", 30*time.Second)
	cfg.Sync.MaxPages = p.intVal("SYNC_MAX_PAGES", 500)
	cfg.Sync.PageSize = p.intVal("SYNC_PAGE_SIZE", 100)
	cfg.Sync.RetryAttempts = p.intVal("SYNC_RETRY_ATTEMPTS", 3)
	cfg.Sync.RatePerSecond = p.floatVal("SYNC_RATE_PER_SECOND", 2)
	cfg.Sync.RecordWorkers = p.intVal("SYNC_RECORD_WORKERS", 4)
	cfg.Sync.StoreWorkers = p.intVal("SYNC_STORE_WORKERS", 4)
	cfg.Sync.LockTTL = p.durationVal("SYNC_LOCK_TTL", 30*time.Minute)
	cfg.Sync.DefaultInterval = time.Duration(p.intVal("SYNC_DEFAULT_INTERVAL", 60)) * time.Minute
	cfg.Sync.MaxLogErrors = p.intVal("SYNC_MAX_LOG_ERRORS", 100)
	cfg.Webhook.DedupeTTL = p.durationVal("WEBHOOK_DEDUPE_TTL", 72*time.Hour)
	if p.err != nil {
		return nil, p.err
	}

	if err = cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY environment variable is required")
	}
	if c.Sync.MaxPages < 1 {
		return fmt.Errorf("SYNC_MAX_PAGES must be at least 1")
	}
	if c.Sync.PageSize < 1 || c.Sync.PageSize > 250 {
		return fmt.Errorf("SYNC_PAGE_SIZE must be between 1 and 250")
	}
	if c.Sync.RetryAttempts < 1 {
		return fmt.Errorf("SYNC_RETRY_ATTEMPTS must be at least 1")
	}
	if c.Sync.RecordWorkers < 1 || c.Sync.StoreWorkers < 1 {
		return fmt.Errorf("SYNC_RECORD_WORKERS and SYNC_STORE_WORKERS must be at least 1")
	}
	if c.Sync.RatePerSecond <= 0 {
		return fmt.Errorf("SYNC_RATE_PER_SECOND must be positive")
	}
	return nil
}

// WebhookCallbackURL returns the public URL a platform should deliver webhooks for a store to
func (c *Config) WebhookCallbackURL(platform, storeID string) string {
	return fmt.Sprintf("%s/api/v1/webhooks/%s/%s", c.AppURL, platform, storeID)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// parser keeps the first conversion error so Load can report it once
type parser struct {
	err error
}

func (p *parser) intVal(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return n
}

func (p *parser) floatVal(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return f
}

func (p *parser) durationVal(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return d
}

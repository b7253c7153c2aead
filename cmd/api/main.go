package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"store-sync-engine/internal/application"
	"store-sync-engine/internal/config"
	"store-sync-engine/internal/infrastructure/api"
	"store-sync-engine/internal/infrastructure/encryption"
	"store-sync-engine/internal/infrastructure/lock"
	"store-sync-engine/internal/infrastructure/metrics"
	"store-sync-engine/internal/infrastructure/platform"
	"store-sync-engine/internal/infrastructure/pubsub"
	"store-sync-engine/internal/infrastructure/repository"
	"store-sync-engine/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("⚠️  Warning: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to MongoDB
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.MongoDatabase)
	if err := repository.EnsureIndexes(ctx, db); err != nil {
		logger.Fatal().Err(err).Msg("Failed to create MongoDB indexes")
	}

	encryptionService, err := encryption.NewService(cfg.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}

	// Initialize repositories
	stores := repository.NewMongoStoreRepository(db)
	integrations := repository.NewMongoIntegrationRepository(db, encryptionService)
	syncLogs := repository.NewMongoSyncLogRepository(db)
	repos := application.Repositories{
		Stores:        stores,
		Integrations:  integrations,
		Logs:          syncLogs,
		Orders:        repository.NewMongoStoreOrderRepository(db),
		Products:      repository.NewMongoProductRepository(db),
		ProductLinks:  repository.NewMongoProductLinkRepository(db),
		Customers:     repository.NewMongoCustomerRepository(db),
		CustomerLinks: repository.NewMongoCustomerLinkRepository(db),
	}
	settings := repository.NewMongoSettingsRepository(db, cfg.Sync.DefaultInterval, logger)
	deduper := repository.NewMongoWebhookEventRepository(db)

	locker := newRunLocker(ctx, cfg, logger)

	// Outbound platform access
	collector := metrics.NewCollector()
	factory := platform.NewFactory(platform.OptionsFromConfig(cfg.Sync, collector), cfg.ShopifyAPIVersion, logger)
	codecs := platform.Codecs()

	// Run outcomes feed the admin UI stream
	runPubSub := pubsub.NewRunPubSub(logger)

	// Initialize application services
	orchestrator := application.NewSyncOrchestrator(
		repos,
		factory,
		locker,
		runPubSub,
		collector,
		application.SyncOptionsFromConfig(cfg.Sync),
		logger,
	)

	webhookService := application.NewWebhookService(
		stores,
		integrations,
		codecs,
		deduper,
		orchestrator,
		collector,
		cfg.Webhook,
		logger,
	)

	scheduler := application.NewScheduler(
		stores,
		orchestrator,
		settings,
		cfg.Sync.StoreWorkers,
		logger,
	)

	storeService := application.NewStoreService(
		stores,
		integrations,
		syncLogs,
		factory,
		codecs,
		cfg.WebhookCallbackURL,
		logger,
	)

	handler := api.NewHandler(
		orchestrator,
		scheduler,
		webhookService,
		storeService,
		runPubSub,
		collector.Handler(),
		cfg.AdminToken,
		logger,
	)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	handler.Register(r)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Failed to shut down server")
		}
	}()

	logger.Info().Str("port", cfg.Port).Str("appUrl", cfg.AppURL).Msg("Starting API server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Failed to start server")
	}
	logger.Info().Msg("Server stopped")
}

// newRunLocker uses Redis when configured so runs are exclusive across replicas
func newRunLocker(ctx context.Context, cfg *config.Config, logger zerolog.Logger) ports.RunLocker {
	if cfg.RedisURL == "" {
		logger.Warn().Msg("REDIS_URL not set, using in-process run lock")
		return lock.NewMemoryLocker()
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid REDIS_URL")
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	return lock.NewRedisLocker(rdb, "", logger)
}

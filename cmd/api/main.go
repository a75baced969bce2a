package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/leadforge/internal/config"
	"github.com/xavierca1/leadforge/internal/entity"
	"github.com/xavierca1/leadforge/internal/infra/cache"
	"github.com/xavierca1/leadforge/internal/infra/database"
	"github.com/xavierca1/leadforge/internal/infra/http/handlers"
	"github.com/xavierca1/leadforge/internal/infra/http/middleware"
	"github.com/xavierca1/leadforge/internal/infra/integration/emailprediction"
	"github.com/xavierca1/leadforge/internal/infra/integration/openai"
	"github.com/xavierca1/leadforge/internal/infra/queue"
	"github.com/xavierca1/leadforge/internal/logger"
	"github.com/xavierca1/leadforge/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Environment)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := database.NewDBConnection(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if cfg.DBMigrateOnStartup {
		if err := database.Migrate(context.Background(), db); err != nil {
			log.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	rabbitMQ, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		log.Fatal("failed to connect to rabbitmq", zap.Error(err))
	}
	defer rabbitMQ.Close()

	// event dedupe fails open and task status is unavailable without redis
	var deduper usecase.EventDeduper
	var taskStore usecase.TaskStore
	var redisPinger handlers.RedisPinger
	rdb, err := cache.NewRedisClient(context.Background(), cfg.RedisURL)
	if err != nil {
		log.Warn("redis unavailable, tracking events will not be deduplicated", zap.Error(err))
	} else {
		defer rdb.Close()
		deduper = cache.NewEventDeduper(rdb, cfg.DedupeTTL)
		taskStore = cache.NewTaskStore(rdb, cfg.TaskResultTTL)
		redisPinger = rdb
	}

	// 1. Repositories
	leadRepo := database.NewLeadRepository(db)
	projectRepo := database.NewProjectRepository(db)
	templateRepo := database.NewTemplateRepository(db)
	campaignRepo := database.NewCampaignRepository(db)

	// 2. Adapters
	producer := queue.NewProducer(rabbitMQ.Ch)
	signer := usecase.NewSigner(cfg.TrackingSecret, cfg.PublicBaseURL)
	metrics := middleware.Domain{}
	tracker := usecase.NewTaskTracker(taskStore, log)

	var resolver entity.EmailResolver = emailprediction.NewPredictor()
	if cfg.PredictionURL != "" {
		resolver = emailprediction.NewClient(cfg.PredictionURL, cfg.MLAPIKey, cfg.AdapterTimeout, middleware.RecordIntegrationError)
	}

	var generator entity.TemplateGenerator
	if cfg.OpenAIKey != "" {
		generator = openai.NewClient(cfg.OpenAIURL, cfg.OpenAIKey, cfg.OpenAIModel,
			cfg.GenerationTimeout, middleware.RecordIntegrationError)
	} else {
		log.Warn("OPENAI_API_KEY not set, template generation disabled")
	}

	// 3. UseCases
	leadUC := usecase.NewLeadUseCase(leadRepo, projectRepo, producer, log)
	projectUC := usecase.NewProjectUseCase(projectRepo, leadRepo, campaignRepo, producer, log)
	projectUC.Tracker = tracker
	templateUC := usecase.NewTemplateUseCase(templateRepo, projectRepo, leadRepo, generator, cfg.GenerationTimeout, log)
	// sending happens on the worker; the API only moves campaigns through their lifecycle
	campaignUC := usecase.NewCampaignUseCase(campaignRepo, templateRepo, projectRepo, leadRepo,
		nil, producer, signer, cfg.SendTimeout, metrics, log)
	trackingUC := usecase.NewTrackingUseCase(campaignRepo, deduper, metrics, log)
	ingestUC := usecase.NewIngestUseCase(leadRepo, projectRepo, nil, usecase.RetryPolicy{}, metrics, log)
	analyticsUC := usecase.NewAnalyticsUseCase(projectRepo, leadRepo, campaignRepo, templateRepo)
	// ad-hoc prediction only; scoring stays on the worker
	predictUC := usecase.NewEnrichLeadUseCase(leadRepo, resolver, nil,
		usecase.RetryPolicy{Timeout: cfg.AdapterTimeout}, metrics, log)

	// 4. Handlers
	limiter := handlers.NewRateLimiter(cfg.TrackingRateLimit, time.Minute)
	defer limiter.Stop()

	router := &handlers.Router{
		Health:      handlers.NewHealthHandler(db, rabbitMQ.Conn, redisPinger),
		Leads:       handlers.NewLeadHandler(leadUC, log),
		Projects:    handlers.NewProjectHandler(projectUC, log),
		Templates:   handlers.NewTemplateHandler(templateUC, log),
		Campaigns:   handlers.NewCampaignHandler(campaignUC, log),
		Tracking:    handlers.NewTrackingHandler(trackingUC, signer, log),
		Scraper:     handlers.NewScraperHandler(ingestUC, log),
		Analytics:   handlers.NewAnalyticsHandler(analyticsUC, log),
		Tasks:       handlers.NewTaskHandler(tracker, log),
		Predict:     handlers.NewPredictionHandler(predictUC, log),
		Auth:        middleware.NewAuthenticator(cfg.JWTSecret),
		TrackingRPS: limiter,
	}

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: router.Handler(handlers.RouterConfig{
			CORSOrigins:        cfg.CORSOrigins,
			ScraperCallbackKey: cfg.ScraperCallbackKey,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("api listening", zap.String("addr", srv.Addr), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down api")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xavierca1/leadforge/internal/config"
	"github.com/xavierca1/leadforge/internal/entity"
	"github.com/xavierca1/leadforge/internal/infra/cache"
	"github.com/xavierca1/leadforge/internal/infra/database"
	"github.com/xavierca1/leadforge/internal/infra/http/handlers"
	"github.com/xavierca1/leadforge/internal/infra/http/middleware"
	"github.com/xavierca1/leadforge/internal/infra/integration/emailprediction"
	"github.com/xavierca1/leadforge/internal/infra/integration/scoring"
	"github.com/xavierca1/leadforge/internal/infra/integration/scraper"
	"github.com/xavierca1/leadforge/internal/infra/mail"
	"github.com/xavierca1/leadforge/internal/infra/queue"
	"github.com/xavierca1/leadforge/internal/infra/worker"
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
	log = log.With(zap.String("component", "worker"))

	db, err := database.NewDBConnection(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	rabbitMQ, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		log.Fatal("failed to connect to rabbitmq", zap.Error(err))
	}
	defer rabbitMQ.Close()

	var taskStore usecase.TaskStore
	rdb, err := cache.NewRedisClient(context.Background(), cfg.RedisURL)
	if err != nil {
		log.Warn("redis unavailable, task outcomes will not be recorded", zap.Error(err))
	} else {
		defer rdb.Close()
		taskStore = cache.NewTaskStore(rdb, cfg.TaskResultTTL)
	}

	// 1. Repositories
	leadRepo := database.NewLeadRepository(db)
	projectRepo := database.NewProjectRepository(db)
	templateRepo := database.NewTemplateRepository(db)
	campaignRepo := database.NewCampaignRepository(db)

	// 2. Adapters; the built-in heuristics stand in for unset ML services
	var scorer entity.ScoringAdapter = scoring.NewHeuristic()
	if cfg.ScoringURL != "" {
		scorer = scoring.NewClient(cfg.ScoringURL, cfg.MLAPIKey, cfg.AdapterTimeout, middleware.RecordIntegrationError)
	}
	var resolver entity.EmailResolver = emailprediction.NewPredictor()
	if cfg.PredictionURL != "" {
		resolver = emailprediction.NewClient(cfg.PredictionURL, cfg.MLAPIKey, cfg.AdapterTimeout, middleware.RecordIntegrationError)
	}
	scrapeClient := scraper.NewClient(cfg.ScraperURL, strings.TrimRight(cfg.PublicBaseURL, "/")+"/scraper/callback",
		cfg.AdapterTimeout, middleware.RecordIntegrationError)
	mailSender := mail.NewEmailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	producer := queue.NewProducer(rabbitMQ.Ch)
	signer := usecase.NewSigner(cfg.TrackingSecret, cfg.PublicBaseURL)
	metrics := middleware.Domain{}
	retry := usecase.RetryPolicy{
		Timeout:         cfg.AdapterTimeout,
		MaxRetries:      cfg.AdapterMaxRetries,
		InitialInterval: cfg.AdapterRetryBackoff,
	}

	// 3. UseCases
	enrichUC := usecase.NewEnrichLeadUseCase(leadRepo, resolver, scorer, retry, metrics, log)
	campaignUC := usecase.NewCampaignUseCase(campaignRepo, templateRepo, projectRepo, leadRepo,
		mailSender, producer, signer, cfg.SendTimeout, metrics, log)
	ingestUC := usecase.NewIngestUseCase(leadRepo, projectRepo, scrapeClient, retry, metrics, log)
	ingestUC.Tracker = usecase.NewTaskTracker(taskStore, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Consumers
	w := queue.NewWorker(rabbitMQ.Conn, cfg.WorkerPrefetch, cfg.WorkerConcurrency, log)
	w.OnOutcome = func(route queue.Route, outcome string) {
		middleware.RecordTask(route.Queue, outcome)
	}

	consumers := map[queue.Route]queue.Handler{
		queue.EnrichRoute: queue.JSONHandler(func(ctx context.Context, t queue.EnrichTask) error {
			_, err := enrichUC.Execute(ctx, t.LeadID)
			return err
		}),
		queue.CampaignRoute: queue.JSONHandler(func(ctx context.Context, t queue.CampaignTask) error {
			return campaignUC.Process(ctx, t.CampaignID)
		}),
		queue.ScrapeRoute: queue.JSONHandler(func(ctx context.Context, t queue.ScrapeTask) error {
			_, err := ingestUC.ExecuteScrape(ctx, t)
			return err
		}),
		queue.ImportRoute: queue.JSONHandler(func(ctx context.Context, t queue.ImportTask) error {
			_, err := ingestUC.ExecuteImport(ctx, t)
			return err
		}),
	}

	var wg sync.WaitGroup
	for _, route := range queue.Routes {
		wg.Add(1)
		go func(route queue.Route, handler queue.Handler) {
			defer wg.Done()
			if err := w.Consume(ctx, route, handler); err != nil {
				log.Error("consumer stopped", zap.String("queue", route.Queue), zap.Error(err))
				stop()
			}
		}(route, consumers[route])
	}

	// 5. Background jobs
	scheduler := worker.NewCampaignScheduler(campaignUC, cfg.SchedulerSpec, log)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal("failed to start campaign scheduler", zap.Error(err))
	}

	reaper := worker.NewEnrichmentReaper(leadRepo, cfg.EnrichmentStaleAfter, cfg.ReaperInterval, log)
	sweeper := worker.NewCampaignSweeper(campaignUC, cfg.CampaignStallAfter, cfg.ReaperInterval, log)
	wg.Add(2)
	go func() {
		defer wg.Done()
		reaper.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		sweeper.Start(ctx)
	}()

	// 6. Probes
	r := chi.NewRouter()
	r.Get("/health", handlers.NewHealthHandler(db, rabbitMQ.Conn, nil).Handle)
	r.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ":" + cfg.WorkerHTTPPort, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("worker probes listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("probe server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down worker")

	scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)

	wg.Wait()
	log.Info("worker stopped")
}

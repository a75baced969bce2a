package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xavierca1/leadforge/internal/infra/http/middleware"
)

type RouterConfig struct {
	CORSOrigins        []string
	ScraperCallbackKey string
}

type Router struct {
	Health    *HealthHandler
	Leads     *LeadHandler
	Projects  *ProjectHandler
	Templates *TemplateHandler
	Campaigns *CampaignHandler
	Tracking  *TrackingHandler
	Scraper   *ScraperHandler
	Analytics *AnalyticsHandler
	Tasks     *TaskHandler
	Predict   *PredictionHandler

	Auth        *middleware.Authenticator
	TrackingRPS *RateLimiter
}

func (rt *Router) Handler(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", rt.Health.Handle)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/tracking", func(r chi.Router) {
		r.Use(rt.TrackingRPS.Middleware)
		r.Post("/events", rt.Tracking.Event)
		r.Get("/open/{campaignID}/{leadID}.gif", rt.Tracking.Pixel)
	})

	r.With(middleware.APIKey(cfg.ScraperCallbackKey)).Post("/scraper/callback", rt.Scraper.Callback)

	r.Group(func(r chi.Router) {
		r.Use(rt.Auth.Middleware)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", rt.Projects.List)
			r.Post("/", rt.Projects.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", rt.Projects.Get)
				r.Put("/", rt.Projects.Update)
				r.Delete("/", rt.Projects.Delete)
				r.Get("/stats", rt.Projects.Stats)
				r.Post("/scrape", rt.Projects.Scrape)
				r.Post("/import", rt.Projects.Import)
			})
		})

		r.Route("/leads", func(r chi.Router) {
			r.Get("/", rt.Leads.List)
			r.Post("/", rt.Leads.Create)
			r.Post("/search", rt.Leads.Search)
			r.Post("/enrich", rt.Leads.BatchEnrich)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", rt.Leads.Get)
				r.Put("/", rt.Leads.Update)
				r.Delete("/", rt.Leads.Delete)
				r.Post("/enrich", rt.Leads.Enrich)
			})
		})

		r.Route("/emails/templates", func(r chi.Router) {
			r.Get("/", rt.Templates.List)
			r.Post("/", rt.Templates.Create)
			r.Post("/generate", rt.Templates.Generate)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", rt.Templates.Get)
				r.Put("/", rt.Templates.Update)
				r.Delete("/", rt.Templates.Delete)
			})
		})

		r.Route("/emails/campaigns", func(r chi.Router) {
			r.Get("/", rt.Campaigns.List)
			r.Post("/", rt.Campaigns.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", rt.Campaigns.Get)
				r.Put("/", rt.Campaigns.Update)
				r.Delete("/", rt.Campaigns.Delete)
				r.Post("/schedule", rt.Campaigns.Schedule)
				r.Post("/start", rt.Campaigns.Start)
				r.Post("/pause", rt.Campaigns.Pause)
				r.Post("/resume", rt.Campaigns.Resume)
				r.Get("/recipients", rt.Campaigns.Recipients)
			})
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/dashboard", rt.Analytics.Dashboard)
			r.Get("/leads/quality", rt.Analytics.LeadQuality)
			r.Get("/campaigns/performance", rt.Analytics.CampaignPerformance)
		})

		r.Get("/tasks/{id}", rt.Tasks.Get)
		r.Post("/ai/predict-email", rt.Predict.PredictEmail)
	})

	return r
}

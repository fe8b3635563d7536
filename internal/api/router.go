package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/railagent/railagent/internal/api/handler"
	"github.com/railagent/railagent/internal/api/middleware"
	"github.com/railagent/railagent/internal/api/spec"
	"github.com/railagent/railagent/internal/config"
	"github.com/railagent/railagent/internal/service"
	"github.com/railagent/railagent/internal/webhook"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

type Router struct {
	cfg        *config.Config
	logger     *zap.Logger
	db         *pgxpool.Pool
	redis      redis.Cmdable
	svc        *service.TransferService
	dispatcher *webhook.Dispatcher
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *pgxpool.Pool,
	redisClient redis.Cmdable,
	svc *service.TransferService,
	dispatcher *webhook.Dispatcher,
) *Router {
	return &Router{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		redis:      redisClient,
		svc:        svc,
		dispatcher: dispatcher,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	intentHandler := handler.NewIntentHandler()
	quoteHandler := handler.NewQuoteHandler(api.svc)
	transferHandler := handler.NewTransferHandler(api.svc)
	webhookHandler := handler.NewWebhookHandler(api.dispatcher)

	// Operational surface
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))

		r.Post("/v1/intent/parse", intentHandler.Parse)
		r.Post("/v1/quote", quoteHandler.Quote)
		r.Post("/v1/transfers", transferHandler.Submit)
		r.Get("/v1/transfers/{id}", transferHandler.Get)
	})

	// Operator routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.OperatorRateLimitRPS))

		r.Get("/v1/transfers", transferHandler.ListAudit)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole("operator"))

			r.Post("/v1/webhooks/targets", webhookHandler.Register)
			r.Get("/v1/webhooks/targets", webhookHandler.List)
		})
	})

	return r
}

package cli

import (
	"fmt"
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/PascalRepond/rero-mef/internal/cache"
	"github.com/PascalRepond/rero-mef/internal/config"
	"github.com/PascalRepond/rero-mef/internal/handler"
	"github.com/PascalRepond/rero-mef/internal/index"
	"github.com/PascalRepond/rero-mef/internal/metrics"
	"github.com/PascalRepond/rero-mef/internal/middleware"
	"github.com/PascalRepond/rero-mef/internal/repository"
	"github.com/PascalRepond/rero-mef/internal/server"
	"github.com/PascalRepond/rero-mef/internal/service"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MEF record API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	ctx := cmd.Context()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return fmt.Errorf("connect to database: %w", err)
	}
	defer repo.Close()
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	search, err := index.NewSearch(cfg.GetElasticsearchAddresses(), logger)
	if err != nil {
		return fmt.Errorf("connect to elasticsearch: %w", err)
	}

	// The API is read-only; lookups go through the record cache, which
	// writers invalidate per record.
	recorder := metrics.NewInMemory()
	queue := index.NewPublisher(cacheClient.Client(), logger)
	mefService := service.NewMEFService(repo, nil, cacheClient, queue, recorder, logger, cfg.BaseURL)

	h := handler.New()
	healthHandler := handler.NewHealthHandler(repo, cacheClient, search)
	recordsHandler := handler.NewRecordsHandler(repo, mefService, cacheClient, recorder, logger)
	metricsHandler := handler.NewMetricsHandler(recorder)

	r := setupRouter(h, healthHandler, recordsHandler, metricsHandler, cfg, logger)

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
	)

	return srv.Run()
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h *handler.Handler,
	healthHandler *handler.HealthHandler,
	recordsHandler *handler.RecordsHandler,
	metricsHandler *handler.MetricsHandler,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment: cfg.IsDevelopment(),
	}))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()
	r.Use(middleware.CORS(corsCfg))

	// Health and metrics endpoints
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)

	// Root info endpoint
	r.Get("/", h.Hello)

	// Record read API
	r.Route("/api", func(r chi.Router) {
		r.Get("/mef/latest/{ref}", recordsHandler.Latest)
		r.Route("/{entity}", func(r chi.Router) {
			r.Get("/", recordsHandler.List)
			r.Get("/count", recordsHandler.Count)
			r.Get("/{pid}", recordsHandler.Get)
		})
	})

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

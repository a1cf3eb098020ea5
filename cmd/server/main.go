package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/whalix/dashboard-server/internal/bridge"
	"github.com/whalix/dashboard-server/internal/config"
	"github.com/whalix/dashboard-server/internal/database"
	"github.com/whalix/dashboard-server/internal/handler"
	"github.com/whalix/dashboard-server/internal/jobs"
	"github.com/whalix/dashboard-server/internal/middleware"
	"github.com/whalix/dashboard-server/internal/model"
	"github.com/whalix/dashboard-server/internal/redis"
	"github.com/whalix/dashboard-server/internal/repository"
	"github.com/whalix/dashboard-server/internal/service"
	"github.com/whalix/dashboard-server/internal/sse"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	if cfg.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), config.MigrationTimeout)
		if err := db.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
		cancel()
	}

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	sessionRepo := repository.NewSessionRepository(db.DB)
	eventRepo := repository.NewSessionEventRepository(db.DB)
	userRepo := repository.NewDashboardUserRepository(db.DB)
	feedStorage := repository.NewRedisFeedStorage(redisClient, config.LiveFeedTTL)
	metricsCache := repository.NewRedisMetricsCache(redisClient, cfg.MetricsCacheTTL())

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	var bridgeClient bridge.Client
	if cfg.BridgeDemoMode {
		bridgeClient = bridge.NewDemoClient(cfg.DemoPairingDelay())
		log.Warn().Msg("bridge demo mode enabled")
	} else {
		bridgeClient = bridge.NewHTTPClient(cfg.BridgeURL, cfg.BridgeTimeout(), cfg.BridgeRatePerSecond)
	}

	recorder := service.NewSessionRecorder(db, sessionRepo, eventRepo, broker)
	connector := service.NewSessionConnector(bridgeClient, recorder, service.ConnectorOptions{
		PollInterval:    cfg.PollInterval(),
		PollMaxAttempts: cfg.PollMaxAttempts,
	})
	restoreSessions(sessionRepo, connector)

	feed := service.NewLiveFeedStore(feedStorage)
	previewer := service.NewReplyPreviewer(feed)
	metricsReader := service.NewMetricsReader(bridgeClient, metricsCache, connector, cfg.MetricsRefreshInterval())

	memoryLimiter := middleware.NewMemoryRateLimiter()
	redisLimiter := middleware.NewRedisRateLimiter(redisClient)

	authMiddleware := middleware.NewAuthMiddleware(userRepo)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(memoryLimiter, "api", config.DefaultRateLimitPerMin)
	connectLimitMiddleware := middleware.NewRateLimitMiddleware(redisLimiter, "connect", cfg.ConnectRateLimitPerMin)
	ipRateLimitMiddleware := middleware.NewIPRateLimitMiddleware(
		redisLimiter, config.IPRateLimitPerWindow, config.IPRateLimitWindow, "ip",
	)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	healthHandler := handler.NewHealthHandler(db, handler.PingFunc(func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	}), bridgeClient)
	meHandler := handler.NewMeHandler(connector)
	sessionHandler := handler.NewSessionHandler(connector, connectLimitMiddleware.Handler)
	eventsHandler := handler.NewEventsHandler(broker, connector)
	metricsHandler := handler.NewMetricsHandler(metricsReader)
	feedHandler := handler.NewFeedHandler(feed, previewer)
	previewHandler := handler.NewPreviewHandler(previewer)
	historyHandler := handler.NewHistoryHandler(eventRepo)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(securityHeadersMiddleware.Handler)
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Use(ipRateLimitMiddleware.Handler)
		r.Use(authMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)

		// SSE streams stay open past the request timeout.
		r.Get("/tenants/{tenantId}/events", middleware.TenantGuard(eventsHandler).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

			r.Get("/me", meHandler.ServeHTTP)

			r.Route("/tenants/{tenantId}", func(r chi.Router) {
				r.Use(middleware.TenantGuard)
				r.Mount("/session", sessionHandler.Routes())
				r.Get("/history", historyHandler.ServeHTTP)
				r.Mount("/metrics", metricsHandler.Routes())
				r.Mount("/feed", feedHandler.Routes())
				r.Post("/preview", previewHandler.ServeHTTP)
			})
		})
	})

	cleanupJob := jobs.NewCleanupJob(sessionRepo, eventRepo, cfg.CleanupSchedule, cfg.EventRetention())
	if err := cleanupJob.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start cleanup job")
	}

	metricsRefresher := jobs.NewMetricsRefresher(metricsReader, cfg.MetricsRefreshInterval())
	metricsRefresher.Start()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	metricsRefresher.Stop()
	cleanupJob.Stop()
	connector.Close()
	recorder.Close()

	log.Info().Msg("server stopped")
}

// restoreSessions reloads the tenants that were connected before a restart.
func restoreSessions(repo repository.SessionRepository, connector *service.SessionConnector) {
	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	defer cancel()

	sessions, err := repo.ListByStatus(ctx, model.SessionStatusConnected)
	if err != nil {
		log.Warn().Err(err).Msg("failed to restore sessions")
		return
	}

	restored := 0
	for _, s := range sessions {
		if connector.Restore(s) {
			restored++
		}
	}
	log.Info().Int("count", restored).Msg("sessions restored")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

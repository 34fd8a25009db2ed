package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/screenscape/sync-server-go/internal/config"
	"github.com/screenscape/sync-server-go/internal/handler"
	"github.com/screenscape/sync-server-go/internal/jobs"
	"github.com/screenscape/sync-server-go/internal/metrics"
	"github.com/screenscape/sync-server-go/internal/middleware"
	"github.com/screenscape/sync-server-go/internal/reporting"
	"github.com/screenscape/sync-server-go/internal/repository"
	"github.com/screenscape/sync-server-go/internal/service"
	"github.com/screenscape/sync-server-go/internal/sse"
	"github.com/screenscape/sync-server-go/internal/store"
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

	environment := "development"
	if isProduction {
		environment = "production"
	}
	if err := reporting.Init(cfg.SentryDSN, environment); err != nil {
		log.Fatal().Err(err).Msg("failed to init sentry")
	}
	defer reporting.Flush(2 * time.Second)

	backend, err := store.Open(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("failed to open store")
	}
	defer backend.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(registry); err != nil {
		log.Fatal().Err(err).Msg("failed to register metrics")
	}

	linkRepo := repository.NewLinkSessionRepository(backend.Store)
	userRepo := repository.NewUserDataRepository(backend.Store)
	deviceRepo := repository.NewDeviceSessionRepository(backend.Store)
	syncRepo := repository.NewSyncSessionRepository(backend.Store)

	broker := sse.NewBroker(backend.Redis)
	defer broker.Close()

	linkService := service.NewLinkService(linkRepo, userRepo, deviceRepo, service.LinkServiceConfig{
		CodeTTL:           cfg.LinkCodeTTL(),
		DeviceSessionTTL:  cfg.DeviceSessionTTL(),
		UserDataRetention: cfg.UserDataRetention(),
	})
	syncService := service.NewSyncService(syncRepo, cfg.SyncSessionTTL())
	userDataService := service.NewUserDataService(userRepo, broker, cfg.UserDataRetention())

	var limiter middleware.Limiter = middleware.NewMemoryRateLimiter()
	if backend.Redis != nil {
		limiter = service.NewRateLimiter(backend.Redis.Client)
	}

	router := handler.NewRouter(handler.RouterDeps{
		Link:            handler.NewLinkHandler(linkService),
		Sync:            handler.NewSyncHandler(syncService),
		User:            handler.NewUserHandler(userDataService),
		Events:          handler.NewEventsHandler(broker),
		DeviceAuth:      middleware.NewDeviceAuthMiddleware(deviceRepo),
		LinkRateLimit:   middleware.NewIPRateLimitMiddleware(limiter, cfg.LinkRateLimitPerMin, config.LinkRateLimitWindow, "link"),
		BodyLimit:       middleware.NewBodyLimitMiddleware(config.MaxBodyBytes),
		SecurityHeaders: middleware.NewSecurityHeadersMiddleware(isProduction),
		CORS:            middleware.NewCORSMiddleware(cfg.AllowedOrigin),
		HealthCheck:     backend.Ping,
		Metrics:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	if cfg.NeedsCleanupJob() {
		cleanupJob := jobs.NewCleanupJob(backend.Store, config.CleanupJobInterval)
		cleanupJob.Start()
		defer cleanupJob.Stop()
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", cfg.Addr()).
			Str("backend", cfg.StoreBackend).
			Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	// Close SSE streams first so Shutdown does not wait on them.
	broker.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
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

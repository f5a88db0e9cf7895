package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/tg-relay-go/internal/config"
	"github.com/openclaw/tg-relay-go/internal/database"
	"github.com/openclaw/tg-relay-go/internal/handler"
	"github.com/openclaw/tg-relay-go/internal/metrics"
	"github.com/openclaw/tg-relay-go/internal/middleware"
	"github.com/openclaw/tg-relay-go/internal/redis"
	"github.com/openclaw/tg-relay-go/internal/repository"
	"github.com/openclaw/tg-relay-go/internal/service"
	"github.com/openclaw/tg-relay-go/internal/tgclient"
	"github.com/openclaw/tg-relay-go/internal/util"
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

	var sessionRepo repository.SessionRepository
	switch cfg.StoreBackend() {
	case config.StoreBackendPostgres:
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

		sessionRepo = repository.NewSessionRepository(db.DB)
	case config.StoreBackendREST:
		sessionRepo = repository.NewRESTSessionRepository(cfg.SupabaseURL, cfg.SupabaseServiceKey, nil)
		log.Info().Str("url", cfg.SupabaseURL).Msg("using REST session store")
	}

	var limiter middleware.Limiter
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
		redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")

		limiter = middleware.NewRedisRateLimiter(redisClient.Client, config.LoginRateLimitWindow)
	} else {
		limiter = middleware.NewRateLimiter(config.LoginRateLimitWindow)
	}

	sealer, err := util.NewTokenSealer(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create token sealer")
	}

	m := metrics.New()

	aggregator := service.NewConversationAggregator(cfg.PreviewLimit, m)
	telegramService := service.NewTelegramService(
		sessionRepo, tgclient.NewFactory(cfg.MaxDialogs), aggregator, sealer, m,
	)

	apiKeyMiddleware := middleware.NewAPIKeyMiddleware(cfg.APIKeyHash)
	loginLimitMiddleware := middleware.NewLoginRateLimitMiddleware(limiter, cfg.LoginRateLimitPerMin)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	telegramHandler := handler.NewTelegramHandler(telegramService, loginLimitMiddleware.Handler)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(m))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))
	r.Use(securityHeadersMiddleware.Handler)
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/", handler.Liveness)
	r.Get("/health", handler.Health)
	r.Handle("/metrics", m.Handler())

	r.Group(func(r chi.Router) {
		r.Use(apiKeyMiddleware.Handler)
		telegramHandler.RegisterRoutes(r)
	})
	r.NotFound(handler.NotFound)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", cfg.Addr()).
			Str("store", string(cfg.StoreBackend())).
			Bool("sealed", sealer.Enabled()).
			Msg("starting server")
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

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/quoteboard/pairing-server/internal/config"
	"github.com/quoteboard/pairing-server/internal/database"
	"github.com/quoteboard/pairing-server/internal/handler"
	"github.com/quoteboard/pairing-server/internal/jobs"
	"github.com/quoteboard/pairing-server/internal/middleware"
	"github.com/quoteboard/pairing-server/internal/qr"
	"github.com/quoteboard/pairing-server/internal/redis"
	"github.com/quoteboard/pairing-server/internal/repository"
	"github.com/quoteboard/pairing-server/internal/service"
	"github.com/quoteboard/pairing-server/internal/token"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := cfg.IsProduction()
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
		if err := database.RunMigrations(db.DB.DB); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		log.Info().Msg("migrations applied")
	}

	var (
		limiter     middleware.Limiter
		redisHealth handler.HealthCheck
	)
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
		redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")

		limiter = service.NewRateLimiter(redisClient.Client)
		redisHealth = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		log.Warn().Msg("REDIS_URL not set: rate limits are per process")
		limiter = middleware.NewMemoryLimiter()
	}

	pairingStore := repository.NewPairingStore(db.DB)
	userRepo := repository.NewUserRepository(db.DB)

	issuer := token.NewIssuer(cfg.TokenSecret, cfg.TokenIssuer, cfg.TokenTTL())
	pairingService := service.NewPairingService(
		pairingStore,
		service.NewCodeGenerator(cfg.PairingCodeLength),
		service.NewUserCredentialVerifier(userRepo),
		issuer,
		service.PairingConfig{
			TTL:          cfg.PairingTTL(),
			PollInterval: cfg.PollInterval(),
			BaseURL:      cfg.PairingBaseURL,
			MaxAttempts:  config.MaxCodeGenerationAttempts,
		},
	)

	authMiddleware := middleware.NewAuthMiddleware(issuer)
	createLimit := middleware.NewIPRateLimitMiddleware(limiter, cfg.CreateRateLimitPerMin, config.RateLimitWindow, "create")
	approveLimit := middleware.NewIPRateLimitMiddleware(limiter, cfg.ApproveRateLimitPerMin, config.RateLimitWindow, "approve")
	loginLimit := middleware.NewIPRateLimitMiddleware(limiter, cfg.ApproveRateLimitPerMin, config.RateLimitWindow, "login")
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	pairingHandler := handler.NewPairingHandler(pairingService, qr.NewEncoder(), handler.PairingMiddleware{
		Create:  chi.Middlewares{createLimit.Handler},
		Approve: chi.Middlewares{authMiddleware.Optional, approveLimit.Handler},
	})
	authHandler := handler.NewAuthHandler(pairingService, userRepo, authMiddleware, chi.Middlewares{loginLimit.Handler})
	healthHandler := handler.NewHealthHandler(db.Ping, redisHealth)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)
	r.Use(middleware.NewCORS(cfg.AllowedOrigins()))

	r.Method(http.MethodGet, "/health", healthHandler)
	r.Mount("/v1/pairing", pairingHandler.Routes())
	r.Mount("/v1/auth", authHandler.Routes())

	sweeper := jobs.NewExpirySweeper(pairingStore, cfg.SweepInterval())
	sweeper.Start()
	defer sweeper.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
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

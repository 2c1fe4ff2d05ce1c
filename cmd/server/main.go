package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/taskdeck/server-go/internal/auth"
	"github.com/taskdeck/server-go/internal/config"
	"github.com/taskdeck/server-go/internal/database"
	"github.com/taskdeck/server-go/internal/email"
	"github.com/taskdeck/server-go/internal/handler"
	"github.com/taskdeck/server-go/internal/httputil"
	"github.com/taskdeck/server-go/internal/jobs"
	"github.com/taskdeck/server-go/internal/middleware"
	"github.com/taskdeck/server-go/internal/redis"
	"github.com/taskdeck/server-go/internal/repository"
	"github.com/taskdeck/server-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("ENVIRONMENT") == "production"
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

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	accountRepo := repository.NewAccountRepository(db.DB)
	taskRepo := repository.NewTaskRepository(db.DB)
	resetTokenRepo := repository.NewResetTokenRepository(db.DB)

	hasher := auth.NewPasswordHasher(cfg.BcryptCost, cfg.MaxConcurrentHashes)
	codec := auth.NewSessionCodec(cfg.SessionSecret, cfg.SessionTTL())
	mailer := email.NewSMTPSender(email.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.EmailFrom,
	})

	resetStore := service.NewResetTokenStore(resetTokenRepo, cfg.ResetTokenTTL())
	credService := service.NewCredentialService(
		db, accountRepo, taskRepo, resetStore, resetTokenRepo,
		hasher, codec, mailer, cfg.ResetLinkBaseURL,
	)
	taskService := service.NewTaskService(taskRepo)

	sessionGuard := middleware.NewSessionGuard(codec, accountRepo)
	loginRateLimit := middleware.NewCredentialRateLimitMiddleware(redisClient.Client, config.LoginRateLimitPerMin)
	forgotRateLimit := middleware.NewCredentialRateLimitMiddleware(redisClient.Client, config.ForgotRateLimitPerMin)
	csrfMiddleware := middleware.NewCSRFMiddleware(isProduction)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	authHandler := handler.NewAuthHandler(credService, sessionGuard.Handler, loginRateLimit.Handler, forgotRateLimit.Handler, isProduction)
	taskHandler := handler.NewTaskHandler(taskService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(csrfMiddleware.Handler)
		r.Mount("/", authHandler.Routes())
	})

	r.Route("/api/v1/tasks", func(r chi.Router) {
		r.Use(csrfMiddleware.Handler)
		r.Use(sessionGuard.Handler)
		r.Mount("/", taskHandler.Routes())
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, map[string]string{
			"error": "Can't find " + r.URL.Path + " on this server",
		})
	})

	cleanupJob := jobs.NewCleanupJob(resetTokenRepo, cfg.ResetTokenTTL(), config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

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

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/saurabhp75/epic-web/internal/auth"
	"github.com/saurabhp75/epic-web/internal/background"
	"github.com/saurabhp75/epic-web/internal/config"
	"github.com/saurabhp75/epic-web/internal/database"
	"github.com/saurabhp75/epic-web/internal/handlers"
	"github.com/saurabhp75/epic-web/internal/metrics"
	middlewareCustom "github.com/saurabhp75/epic-web/internal/middleware"
	"github.com/saurabhp75/epic-web/internal/providers"
	"github.com/saurabhp75/epic-web/internal/repositories"
	"github.com/saurabhp75/epic-web/internal/routes"
	"github.com/saurabhp75/epic-web/internal/services"
	"github.com/saurabhp75/epic-web/internal/storage"
	pkglogger "github.com/saurabhp75/epic-web/pkg/logger"
)

const issuerName = "Epic Notes"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Run migrations before accepting traffic
	if err := database.Migrate(&cfg.Database, logger); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	verificationRepo := repositories.NewVerificationRepository(db)
	connectionRepo := repositories.NewConnectionRepository(db)
	noteRepo := repositories.NewNoteRepository(db)

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(sessionRepo, verificationRepo, logger, cfg.Auth.CleanupInterval)

	// Cookie signing and session security
	codec := auth.NewCodec(cfg.Auth.SessionSecret)
	cookieConfig := auth.CookieConfig{Secure: cfg.Server.Env == "production"}
	auditLogger := pkglogger.NewAuditLogger(logger)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   100,
		RandomDelayMs: 100,
	})

	// AWS SES email service
	emailService, err := services.NewAWSSESEmailService(
		cfg.Email.AWSRegion,
		cfg.Email.FromAddress,
		cfg.Server.BaseURL,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	// S3 image storage
	imageStore, err := storage.NewS3ImageStore(&cfg.Storage)
	if err != nil {
		logger.Error("failed to initialize image store", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize services
	totpManager := auth.NewTOTPManager(issuerName)
	verificationService := services.NewVerificationService(verificationRepo, totpManager, cfg.Auth.OnboardingCodeTTL, logger)
	authService := services.NewAuthService(userRepo, sessionRepo, verificationService, emailService, timingDelay, cfg.Auth.SessionExpiry, logger, auditLogger)
	connectionService := services.NewConnectionService(connectionRepo, userRepo, logger, auditLogger)
	userService := services.NewUserService(userRepo, verificationRepo, logger, auditLogger)
	noteService := services.NewNoteService(noteRepo, imageStore, logger)

	// The two-factor gate consults enrollment state through the verification service
	gate := auth.NewTwoFactorGate(verificationService, cfg.Auth.TwoFAFreshnessWindow)
	establisher := handlers.NewSessionEstablisher(codec, gate, cookieConfig, cfg.Auth.VerificationCookieTTL, logger)

	// OAuth providers
	registry := providers.NewRegistry(
		providers.NewGitHubProvider(cfg.OAuth.GitHubClientID, cfg.OAuth.GitHubClientSecret),
	)
	if cfg.OAuth.GitHubClientID == "" {
		logger.Warn("GITHUB_CLIENT_ID not set, github login will fail")
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, establisher, codec)
	verifyHandler := handlers.NewVerifyHandler(verificationService, authService, establisher, codec, cfg.Auth.VerificationCookieTTL)
	twoFactorHandler := handlers.NewTwoFactorHandler(verificationService, gate, establisher)
	connectionHandler := handlers.NewConnectionHandler(connectionService, authService, registry, establisher, codec, cfg.Server.BaseURL, logger)
	userHandler := handlers.NewUserHandler(userService, authService, verificationService, noteService, cookieConfig)
	noteHandler := handlers.NewNoteHandler(noteService)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(cfg.Server.AllowedOrigins))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(metrics.Middleware)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(middlewareCustom.EnsureCSRFToken)
	router.Use(middlewareCustom.CSRFProtection(logger))
	router.Use(auth.LoadUser(codec, sessionRepo, userRepo, cookieConfig))

	// Register routes
	routes.RegisterRoutes(router, authHandler, verifyHandler, twoFactorHandler, connectionHandler, userHandler, noteHandler)

	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

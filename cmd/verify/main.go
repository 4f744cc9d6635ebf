package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/simple-verify/pkg/config"
	"github.com/tendant/simple-verify/pkg/notification"
	"github.com/tendant/simple-verify/pkg/ratelimit"
	"github.com/tendant/simple-verify/pkg/verification"
	verificationapi "github.com/tendant/simple-verify/pkg/verification/api"
)

const apiPrefix = "/api/v1/verification"

type Config struct {
	AppConfig    app.AppConfig
	DbConfig     config.DatabaseConfig
	EmailConfig  config.EmailConfig
	JwtConfig    config.JWTConfig
	VerifyConfig config.VerificationConfig
}

// loadEnvFile loads environment variables from .env file if it exists
// Only sets variables that are not already set in the environment
func loadEnvFile() {
	// Get the directory where the executable is located
	execPath, err := os.Executable()
	if err != nil {
		slog.Error("Failed to get executable path", "error", err)
		return
	}

	execDir := filepath.Dir(execPath)
	envFile := filepath.Join(execDir, ".env")

	// Also check current working directory
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		cwd, err := os.Getwd()
		if err != nil {
			slog.Error("Failed to get current working directory", "error", err)
			return
		}
		envFile = filepath.Join(cwd, ".env")
	}

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		slog.Info("No .env file found", "path", envFile)
		return
	}

	slog.Info("Loading configuration from .env file", "path", envFile)

	err = godotenv.Load(envFile)
	if err != nil {
		slog.Error("Failed to load .env file", "error", err, "path", envFile)
		return
	}

	slog.Info("Configuration loaded from .env file successfully")
}

func main() {

	// Create a logger with source enabled
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true, // Enables line number & file path
	}))

	// Set the logger as the default
	slog.SetDefault(logger)

	// Load .env file if it exists (before reading environment variables)
	loadEnvFile()

	cfg := Config{}
	cleanenv.ReadEnv(&cfg)

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)

	// Configure and add rate limiting middleware
	rateLimitConfig := config.NewRateLimitConfigFromEnv()
	rateLimitMiddleware := ratelimit.NewMiddleware(rateLimitConfig.ToMiddlewareConfig(apiPrefix))
	server.R.Use(rateLimitMiddleware.Handler)
	slog.Info("Rate limiting configured",
		"global", rateLimitConfig.GlobalEnabled,
		"per_ip", rateLimitConfig.PerIPEnabled,
		"per_user", rateLimitConfig.PerUserEnabled)

	// Select the code store backend
	var repoConfig verification.RepositoryConfig
	switch cfg.VerifyConfig.Persistence {
	case "file":
		repoConfig.DataDir = cfg.VerifyConfig.DataDir
	default:
		pool, err := dbutils.NewDbPool(context.Background(), cfg.DbConfig.ToDbConfig())
		if err != nil {
			slog.Error("Failed creating dbpool", "db", cfg.DbConfig.Database, "host", cfg.DbConfig.Host, "port", cfg.DbConfig.Port, "user", cfg.DbConfig.User)
			os.Exit(-1)
		}
		repoConfig.Pool = pool
	}

	repo, err := verification.NewVerificationRepository(cfg.VerifyConfig.Persistence, repoConfig)
	if err != nil {
		slog.Error("Failed creating verification repository", "persistence", cfg.VerifyConfig.Persistence, "err", err)
		os.Exit(-1)
	}

	// Initialize NotificationManager and register email notifier
	notificationManager, err := notification.NewNotificationManager(
		notification.WithSMTP(cfg.EmailConfig.ToSMTPConfig()),
		notification.WithDefaultTemplates(),
	)
	if err != nil {
		slog.Error("Failed initialize notification manager", "err", err)
		os.Exit(-1)
	}

	codeExpiry, err := cfg.VerifyConfig.ParseCodeExpiry()
	if err != nil {
		slog.Error("Invalid code expiry", "value", cfg.VerifyConfig.CodeExpiry, "err", err)
		os.Exit(-1)
	}
	issueWindow, err := cfg.VerifyConfig.ParseIssueWindow()
	if err != nil {
		slog.Error("Invalid issue window", "value", cfg.VerifyConfig.IssueWindow, "err", err)
		os.Exit(-1)
	}

	verificationService := verification.NewVerificationService(
		repo,
		notificationManager,
		verification.WithCodeExpiry(codeExpiry),
		verification.WithMaxAttempts(cfg.VerifyConfig.MaxAttempts),
		verification.WithIssueLimit(cfg.VerifyConfig.IssueLimit),
		verification.WithIssueWindow(issueWindow),
	)

	verificationHandle := verificationapi.NewHandler(verificationService)

	hmacAuth := jwtauth.New("HS256", []byte(cfg.JwtConfig.Secret), nil)

	// Mount verification endpoints (verify and resend are public, issue and status require auth)
	server.R.Route(apiPrefix, func(r chi.Router) {
		verificationHandle.Routes(r)

		// Protected endpoints requiring authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(hmacAuth))
			r.Use(jwtauth.Authenticator(hmacAuth))
			verificationHandle.AuthRoutes(r)
		})
	})

	// Background sweep of aged-out code rows
	cleanupInterval, err := cfg.VerifyConfig.ParseCleanupInterval()
	if err != nil {
		slog.Error("Invalid cleanup interval", "value", cfg.VerifyConfig.CleanupInterval, "err", err)
		os.Exit(-1)
	}
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for range ticker.C {
			if err := verificationService.CleanupExpiredCodes(context.Background()); err != nil {
				slog.Error("Cleanup sweep failed", "err", err)
			}
		}
	}()

	server.Run()
}

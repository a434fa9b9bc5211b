package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/academyreg/handoff/internal/api"
	"github.com/academyreg/handoff/internal/auth"
	"github.com/academyreg/handoff/internal/handoff"
	"github.com/academyreg/handoff/internal/metrics"
	"github.com/academyreg/handoff/internal/ratelimit"
	"github.com/academyreg/handoff/internal/storage"
	"github.com/academyreg/handoff/internal/ui"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Setup structured logging
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	handlerOpts := &slog.HandlerOptions{Level: cfg.logLevel()}
	if cfg.LogFormat == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, handlerOpts)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, handlerOpts)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Setup user storage
	var userStorage storage.UserStorage
	switch cfg.UserStorage {
	case "postgres":
		pgStorage, pool, err := storage.NewPostgresStorage(ctx, cfg.Postgres.DSN)
		if err != nil {
			slog.Error("Failed to create Postgres storage", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		userStorage = pgStorage
		slog.Info("Using Postgres user storage")
	case "s3":
		s3Storage, err := storage.NewS3Storage(cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey, cfg.S3.Bucket, cfg.S3.UseSSL)
		if err != nil {
			slog.Error("Failed to create S3 storage", "error", err)
			os.Exit(1)
		}
		userStorage = s3Storage
		slog.Info("Using S3 user storage", "endpoint", cfg.S3.Endpoint, "bucket", cfg.S3.Bucket)
	case "filesystem":
		fsStorage, err := storage.NewFilesystemStorage(cfg.DataPath)
		if err != nil {
			slog.Error("Failed to create filesystem storage", "error", err)
			os.Exit(1)
		}
		userStorage = fsStorage
		slog.Info("Using filesystem user storage", "path", cfg.DataPath)
	case "static":
		staticStorage, err := storage.NewStaticStorage(cfg.UsersFile)
		if err != nil {
			slog.Error("Failed to load static users", "error", err)
			os.Exit(1)
		}
		userStorage = staticStorage
		slog.Warn("Using static user directory", "file", cfg.UsersFile)
	default:
		slog.Error("Invalid USER_STORAGE", "mode", cfg.UserStorage, "valid_modes", []string{"postgres", "filesystem", "s3", "static"})
		os.Exit(1)
	}

	// Setup code storage
	var (
		codeStorage storage.CodeStorage
		redisClient *redis.Client
	)
	switch cfg.CodeStore {
	case "redis":
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		// Test Redis connection
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}

		codeStorage = storage.NewRedisCodeStorage(redisClient, cfg.Redis.UseScript)
		slog.Info("Using Redis code storage", "addr", cfg.Redis.Addr, "lua", cfg.Redis.UseScript)
	case "memory":
		codeStorage = storage.NewMemoryCodeStorage()
		slog.Warn("Using in-memory code storage (single instance only)")
	default:
		slog.Error("Invalid CODE_STORE", "mode", cfg.CodeStore, "valid_modes", []string{"redis", "memory"})
		os.Exit(1)
	}

	// Setup metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	handoffMetrics := metrics.New(registry)

	// Setup handoff service
	allowedRoles, _ := cfg.allowedRoles()
	service := handoff.NewService(
		auth.NewBearerVerifier([]byte(cfg.MobileJWTSecret), cfg.Handoff.TokenLeeway),
		auth.NewSessionMinter(cfg.sessionSecret(), cfg.Handoff.SessionLifetime, cfg.SecureCookies),
		codeStorage,
		userStorage,
		handoff.Config{
			CodeTTL:      cfg.Handoff.CodeTTL,
			StoreTimeout: cfg.Handoff.StoreTimeout,
			PublicURL:    cfg.PublicURL,
			AllowedRoles: allowedRoles,
		},
	).WithMetrics(handoffMetrics)

	if redisClient != nil && cfg.Handoff.RateLimit > 0 {
		service.WithRateLimiter(ratelimit.NewSlidingWindow(redisClient, ratelimit.Config{
			Limit:  cfg.Handoff.RateLimit,
			Window: cfg.Handoff.RateWindow,
		}))
		slog.Info("Rate limiting code requests", "limit", cfg.Handoff.RateLimit, "window", cfg.Handoff.RateWindow)
	}

	// Setup handlers
	apiServer := api.NewServer(codeStorage, userStorage)
	handoffHandlers := api.NewHandoffHandlers(service)
	signinUIHandlers, err := ui.NewSigninUIHandlers(handoffHandlers)
	if err != nil {
		slog.Error("Failed to create sign-in UI handlers", "error", err)
		os.Exit(1)
	}

	// Setup routes
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/mobile/web-auth", handoffHandlers.ExchangeHandler)
	mux.HandleFunc("POST /api/mobile/web-auth", handoffHandlers.ExchangeHandler)
	mux.HandleFunc("GET /api/mobile/signin", handoffHandlers.SigninHandler)
	mux.HandleFunc("GET /mobile-signin", signinUIHandlers.SigninPageHandler)

	mux.HandleFunc("GET /health", apiServer.HealthHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Create HTTP server
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
		}
	}()

	slog.Info("Mobile handoff service starting",
		"port", cfg.Port,
		"code_store", cfg.CodeStore,
		"user_storage", cfg.UserStorage,
		"code_ttl", cfg.Handoff.CodeTTL,
		"secure_cookies", cfg.SecureCookies,
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}

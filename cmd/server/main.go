package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	apidoc "github.com/tenantgate/tenantgate/api"
	"github.com/tenantgate/tenantgate/internal/api"
	"github.com/tenantgate/tenantgate/internal/api/middleware"
	"github.com/tenantgate/tenantgate/internal/application"
	"github.com/tenantgate/tenantgate/internal/auth"
	"github.com/tenantgate/tenantgate/internal/config"
	"github.com/tenantgate/tenantgate/internal/database"
	"github.com/tenantgate/tenantgate/internal/metrics"
	"github.com/tenantgate/tenantgate/internal/ratelimit"
	"github.com/tenantgate/tenantgate/internal/tenant"
	"github.com/tenantgate/tenantgate/internal/tokenstats"
	"github.com/tenantgate/tenantgate/internal/upload"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	setupLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var dbOpts []database.Option
	if cfg.DatabaseTLS {
		dbOpts = append(dbOpts, database.WithTLS())
	}
	db, err := database.New(ctx, cfg.DatabaseURL, dbOpts...)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}

	issuer, err := auth.NewTokenIssuer(cfg.JWTSecret, auth.WithAccessTTL(cfg.AccessTokenTTL))
	if err != nil {
		return err
	}

	m := metrics.New()
	userRepo := auth.NewRepository(db.Pool())
	tenantRepo := tenant.NewRepository(db.Pool())
	appRepo := application.NewRepository(db.Pool())

	refreshRepo := auth.NewRefreshTokenRepository(db.Pool())
	authService := auth.NewService(userRepo, refreshRepo, tenantRepo, issuer,
		auth.WithBcryptCost(cfg.BcryptCost),
		auth.WithRefreshTTL(cfg.RefreshTokenTTL),
		auth.WithObserver(m.ObserveAuth),
	)

	if _, err := authService.BootstrapSuperadmin(ctx, cfg.SuperadminEmail, cfg.SuperadminPassword); err != nil {
		return err
	}

	trustedProxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return err
	}

	limiter, closeLimiter, err := newLimiter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	uploads, err := upload.NewStore(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		return err
	}

	router := api.NewRouter(api.RouterDeps{
		AuthService:    authService,
		UserRepo:       userRepo,
		TenantRepo:     tenantRepo,
		AppRepo:        appRepo,
		Uploads:        uploads,
		Limiter:        limiter,
		TrustedProxies: trustedProxies,
		Metrics:        m,
		AllowedOrigins: cfg.AllowedOrigins,
		DBPinger:       db,
		Version:        cfg.Version,
		OpenAPISpec:    apidoc.OpenAPISpec,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	statsCtx, stopStats := context.WithCancel(context.Background())
	defer stopStats()
	if cfg.TokenStatsInterval > 0 {
		go tokenstats.New(refreshRepo, m.SetRefreshTokens, cfg.TokenStatsInterval).Start(statsCtx)
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting tenantgate server", "port", cfg.Port, "version", cfg.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	stopStats()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// newLimiter returns a Redis-backed limiter shared across instances when
// REDIS_URL is set and a per-process limiter otherwise.
func newLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, func(), error) {
	if cfg.RedisURL == "" {
		return ratelimit.NewMemory(cfg.RateLimitWindow, cfg.RateLimitMax), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}

	slog.Info("using redis rate limiter", "addr", opts.Addr)
	return ratelimit.NewRedis(client, cfg.RateLimitWindow, cfg.RateLimitMax), func() { _ = client.Close() }, nil
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

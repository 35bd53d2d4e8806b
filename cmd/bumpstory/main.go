package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/terra-clan/bumpstory/internal/api"
	"github.com/terra-clan/bumpstory/internal/auth"
	"github.com/terra-clan/bumpstory/internal/cache"
	"github.com/terra-clan/bumpstory/internal/catalog"
	"github.com/terra-clan/bumpstory/internal/cleanup"
	"github.com/terra-clan/bumpstory/internal/config"
	"github.com/terra-clan/bumpstory/internal/services"
	"github.com/terra-clan/bumpstory/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	opts := &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if strings.EqualFold(cfg.Log.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))

	slog.Info("starting bumpstory",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"storage", cfg.Database.Driver,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Initialize service registry
	registry := services.NewRegistry()

	// Initialize storage
	repo, err := openRepository(initCtx, cfg, registry)
	if err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	registry.Register("storage", services.NewFuncProvider("storage", repo.Ping))

	// Redis backs the progress cache and the token denylist; both are optional
	var progressCache *cache.ProgressCache
	var revocations auth.Revoker
	if cfg.Redis.Address != "" {
		redisProvider, err := services.NewRedisProvider(initCtx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			slog.Warn("redis unavailable, running without cache and token revocation", "error", err)
		} else {
			registry.Register("redis", redisProvider)
			progressCache = cache.NewProgressCache(redisProvider.Client(), cfg.Redis.ProgressTTL)
			revocations = cache.NewRevocations(redisProvider.Client())
			slog.Info("redis connected", "address", cfg.Redis.Address)
		}
	}

	// Load the story catalog
	loader := catalog.NewLoader()
	if err := loader.LoadFromDir(cfg.Catalog.Dir); err != nil {
		slog.Error("failed to load catalog", "dir", cfg.Catalog.Dir, "error", err)
		os.Exit(1)
	}
	stats := loader.Stats()
	slog.Info("catalog loaded", "stories", stats.Stories, "paths", stats.Paths)
	registry.Register("catalog", services.NewFuncProvider("catalog", func(context.Context) error {
		if len(loader.Stories()) == 0 {
			return fmt.Errorf("catalog is empty")
		}
		return nil
	}))

	// Initialize auth
	authSvc := auth.NewService(
		repo,
		auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL),
		auth.NewPasswordHasher(cfg.Auth.PasswordHashCost),
		revocations,
		cfg.Auth.MinPasswordLen,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start cleanup worker
	cleaner := cleanup.NewCleaner(repo, cfg.Cleanup.Interval, cfg.Cleanup.KickSessionMaxAge)
	cleaner.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg, loader, repo, authSvc, progressCache, registry)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	server.Close()

	if err := registry.CloseAll(); err != nil {
		slog.Error("service close error", "error", err)
	}
	if err := repo.Close(); err != nil {
		slog.Error("storage close error", "error", err)
	}

	slog.Info("bumpstory stopped")
}

// openRepository selects the storage driver; postgres runs migrations and
// registers a database/sql readiness probe
func openRepository(ctx context.Context, cfg *config.Config, registry *services.Registry) (storage.Repository, error) {
	if cfg.Database.Driver == "memory" {
		slog.Warn("using in-memory storage, data is lost on restart")
		return storage.NewMemoryRepository(), nil
	}

	repo, err := storage.NewPostgresRepository(ctx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		MaxLifetime:  cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("create database repository: %w", err)
	}

	slog.Info("running database migrations")
	if err := repo.Migrate(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database connected successfully")

	postgresProvider, err := services.NewPostgresProvider(ctx, cfg.Database.DSN)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("create postgres provider: %w", err)
	}
	registry.Register("postgres", postgresProvider)

	return repo, nil
}

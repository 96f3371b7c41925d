package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/auth"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/backend"
	backendgcp "github.com/PLAYER1-r7/multicloud-auto-deploy/internal/backend/gcp"
	backendlocal "github.com/PLAYER1-r7/multicloud-auto-deploy/internal/backend/local"
	backendmemory "github.com/PLAYER1-r7/multicloud-auto-deploy/internal/backend/memory"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/config"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/handlers"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/middleware"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/server"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg := config.Load()
	ctx := context.Background()

	b, storageH, err := buildBackend(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("backend %q: %w", cfg.Provider, err)
	}
	if closer, ok := b.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	verifier, err := buildVerifier(ctx, cfg)
	if err != nil {
		return fmt.Errorf("auth %q: %w", cfg.AuthProvider, err)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
	}
	limiter := middleware.NewRateLimiter(rdb, cfg.RateLimit, cfg.RateWindow, logger)

	srv := server.New(cfg, b, verifier, limiter, storageH, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", srv.Addr),
			zap.String("provider", b.Provider()),
			zap.String("auth", cfg.AuthProvider),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("stopped")
	return nil
}

// buildBackend constructs the store selected by BACKEND_PROVIDER. The local
// backend also serves its own object storage, so it returns a handler for
// the /storage routes; the others return nil.
func buildBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (backend.Backend, *handlers.StorageHandler, error) {
	switch cfg.Provider {
	case "local":
		db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		store := backendlocal.NewStorage(cfg.StorageDir, []byte(cfg.StorageSecret), cfg.PresignExpiry)
		be, err := backendlocal.New(db, store, logger)
		if err != nil {
			return nil, nil, err
		}
		return be, handlers.NewStorageHandler(store, logger), nil
	case "gcp":
		be, err := backendgcp.New(ctx, cfg.GCPProjectID, cfg.GCSBucket, logger)
		if err != nil {
			return nil, nil, err
		}
		return be, nil, nil
	case "memory":
		return backendmemory.New(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func buildVerifier(ctx context.Context, cfg *config.Config) (auth.Verifier, error) {
	switch cfg.AuthProvider {
	case "jwt":
		if cfg.JWTSecret == "" {
			return nil, errors.New("JWT_SECRET is required when AUTH_PROVIDER=jwt")
		}
		return auth.NewJWTVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer), nil
	case "firebase":
		return auth.NewFirebaseVerifier(ctx)
	case "disabled":
		return auth.StaticVerifier{}, nil
	default:
		return nil, fmt.Errorf("unknown auth provider %q", cfg.AuthProvider)
	}
}

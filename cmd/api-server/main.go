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
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackgods/grooming-scheduler/internal/api"
	"github.com/hackgods/grooming-scheduler/internal/appointment"
	"github.com/hackgods/grooming-scheduler/internal/config"
	"github.com/hackgods/grooming-scheduler/internal/db"
	"github.com/hackgods/grooming-scheduler/internal/events"
	"github.com/hackgods/grooming-scheduler/internal/logging"
	"github.com/hackgods/grooming-scheduler/internal/metrics"
	redisclient "github.com/hackgods/grooming-scheduler/internal/redis"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewLogger("api-server", "prod").Error("config load error", "err", err)
		os.Exit(1)
	}

	logger := logging.NewLogger("api-server", cfg.Env)
	logger.Info("api-server starting up", "env", cfg.Env, "http_port", cfg.HTTPPort, "version", version)

	if err := run(cfg, logger); err != nil {
		logger.Error("api-server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	policy, err := cfg.Scheduling.Policy()
	if err != nil {
		return fmt.Errorf("scheduling policy: %w", err)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.Open(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: int32(cfg.PostgresMaxConns)})
	cancelPg()
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	var repo appointment.Repository = appointment.NewPgRepository(pgPool, policy.Location)

	var redisPing api.Pinger
	if cfg.RedisAddr != "" {
		rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("error closing redis", "err", err)
			}
		}()
		repo = redisclient.NewCatalogCache(repo, rdb, cfg.CatalogCacheTTL, logger)
		redisPing = api.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		logger.Info("connected to Redis", "catalog_cache_ttl", cfg.CatalogCacheTTL)
	} else {
		logger.Warn("redis not configured, catalog cache disabled")
	}

	publisher := events.New(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("error closing event publisher", "err", err)
		}
	}()

	svc := appointment.NewScheduler(repo, appointment.Options{
		Policy:  policy,
		Logger:  logger,
		Events:  publisher,
		Metrics: metrics.New(prometheus.DefaultRegisterer),
	})

	router := api.NewRouter(api.RouterConfig{
		Service:  svc,
		Postgres: pgPool,
		Redis:    redisPing,
		Metrics:  promhttp.Handler(),
		Logger:   logger,
		Env:      cfg.Env,
		Version:  version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-rootCtx.Done():
	}

	logger.Info("shutting down api-server", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

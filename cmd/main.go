package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	httpadapter "adsync/internal/adapter/http"
	"adsync/internal/adapter/postgres"
	redisadapter "adsync/internal/adapter/redis"
	"adsync/internal/adapter/remote"
	"adsync/internal/adapter/telemetry"
	"adsync/internal/adapter/usecase"
	"adsync/internal/config"
	"adsync/internal/db"
)

// main wires the sync engine together: the entity store, the redis-backed
// queues, lock and flight cache, the remote gateway and the two worker
// loops, plus the internal ops HTTP server. On a termination signal the
// workers drain and the server shuts down gracefully.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := cfg.Log.New()

	if cfg.Psql.RunMigrations {
		if err = db.Migrate(cfg.Psql.Addr.String()); err != nil {
			logger.Error("migration error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("migrations applied successfully")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.Psql)
	if err != nil {
		logger.Error("database connection error", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err = redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("redis connection error", slog.Any("error", err))
		os.Exit(1)
	}

	store := postgres.NewStore(pool)
	syncQueue := redisadapter.NewQueue(redisClient, cfg.Redis.SyncQueue)
	reportQueue := redisadapter.NewQueue(redisClient, cfg.Redis.ReportQueue)
	locker := redisadapter.NewLocker(redisClient)
	flightCache := redisadapter.NewFlightCache(redisClient)
	gateway := remote.NewClient(cfg.Remote, logger)
	sink := telemetry.NewSink(logger)

	syncService := usecase.NewSyncService(
		store, gateway, locker, flightCache, sink, cfg.Remote, cfg.Sync, logger)
	reportService := usecase.NewReportService(
		store, gateway, reportQueue, cfg.Reporting, logger)
	resolver := usecase.NewFlightResolver(flightCache, store, logger)

	syncWorker := usecase.NewSyncWorker(syncQueue, store, syncService, logger)
	reportWorker := usecase.NewReportWorker(reportQueue, reportService, logger)
	monitor := usecase.NewOverdeliveryMonitor(store, syncQueue, cfg.Sync, logger)

	var wg sync.WaitGroup
	for name, run := range map[string]func(context.Context){
		"sync worker":          syncWorker.Run,
		"report worker":        reportWorker.Run,
		"overdelivery monitor": monitor.Run,
		"report sweeper":       reportService.RunSweeper,
	} {
		name, run := name, run
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("starting " + name)
			run(ctx)
		}()
	}

	handler := httpadapter.NewHandler(resolver, logger)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("server listening", slog.Int("port", int(cfg.HTTP.Port)))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	} else {
		logger.Info("server gracefully stopped")
	}

	wg.Wait()
	logger.Info("workers stopped")
}

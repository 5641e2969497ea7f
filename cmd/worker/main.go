// Package main runs the royalty reconciliation worker: the batch engine over
// the marketplace history feed, the live account-change watcher, the webhook
// receiver, and the Prometheus metrics endpoint.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Xin-Dragons/cpl-worker/internal/config"
	"github.com/Xin-Dragons/cpl-worker/internal/live"
	"github.com/Xin-Dragons/cpl-worker/internal/marketplace"
	"github.com/Xin-Dragons/cpl-worker/internal/metadata"
	"github.com/Xin-Dragons/cpl-worker/internal/observability"
	"github.com/Xin-Dragons/cpl-worker/internal/reconcile"
	"github.com/Xin-Dragons/cpl-worker/internal/solana"
	"github.com/Xin-Dragons/cpl-worker/internal/storage/clickhouse"
	"github.com/Xin-Dragons/cpl-worker/internal/storage/migrations"
	"github.com/Xin-Dragons/cpl-worker/internal/storage/postgres"
)

var Version = "dev" // Overridden by release build script

func init() {
	logger := zap.Must(zap.NewProduction())
	if config.Get().LogZapMode == "development" {
		logger = zap.Must(zap.NewDevelopment())
	}
	zap.ReplaceGlobals(logger)
}

func main() {
	cfg := config.Get()
	zap.L().Info("Starting cpl-worker...", zap.String("Version", Version))

	if cfg.RpcHost == "" || cfg.PostgresDsn == "" {
		zap.L().Fatal("RPC_HOST and POSTGRES_DSN are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.PostgresDsn)
	if err != nil {
		zap.L().Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		zap.L().Fatal("Failed to run Postgres migrations", zap.Error(err))
	}

	collections := postgres.NewCollectionStore(pool)
	mints := postgres.NewMintStore(pool)
	sales := postgres.NewSaleStore(pool)
	activityLog := postgres.NewActivityLogStore(pool)

	metrics := observability.NewMetrics("")

	rpc := solana.NewHTTPClient(cfg.RpcHost, solana.WithMetrics(metrics))
	history := marketplace.NewHTTPHistoryClient(cfg.HistoryApiUrl, cfg.HistoryApiKey,
		marketplace.WithHistoryMetrics(metrics))
	md := metadata.NewHTTPClient(cfg.MetadataApiUrl, metadata.WithMetrics(metrics))

	engineOpts := []reconcile.EngineOption{
		reconcile.WithMetrics(metrics),
		reconcile.WithLookback(time.Duration(cfg.LookbackHours) * time.Hour),
	}

	// ClickHouse is optional: without it the worker just skips archiving.
	var chConn *clickhouse.Conn
	if cfg.ClickhouseDsn != "" {
		chConn, err = clickhouse.NewConn(ctx, cfg.ClickhouseDsn)
		if err != nil {
			zap.L().Fatal("Failed to connect to ClickHouse", zap.Error(err))
		}
		if err := migrations.RunClickhouseMigrations(ctx, chConn); err != nil {
			zap.L().Fatal("Failed to run ClickHouse migrations", zap.Error(err))
		}
		engineOpts = append(engineOpts, reconcile.WithArchiver(clickhouse.NewSaleArchive(chConn)))
	}

	engine := reconcile.NewEngine(mints, sales, history, md, rpc, engineOpts...)

	scheduler := reconcile.NewScheduler(engine, collections)
	scheduler.SetMetrics(metrics)
	scheduler.PassDelay = time.Minute
	go func() {
		if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zap.L().Error("Scheduler stopped", zap.Error(err))
		}
	}()

	if cfg.WsHost != "" {
		ws, err := solana.NewWSClient(ctx, cfg.WsHost, nil)
		if err != nil {
			zap.L().Fatal("Failed to connect WebSocket", zap.Error(err))
		}
		defer func() { _ = ws.Close() }()

		watcher := live.NewWatcher(ws, rpc, activityLog, mints, sales, md, engine)
		watcher.SetMetrics(metrics)
		go func() {
			cols, err := collections.GetCollections(ctx)
			if err != nil {
				zap.L().Error("Failed to load collections for live watcher", zap.Error(err))
				return
			}
			for _, col := range cols {
				if !col.Active {
					continue
				}
				col := col
				go func() {
					if err := watcher.WatchCollection(ctx, col); err != nil && !errors.Is(err, context.Canceled) {
						zap.L().Error("Live watcher stopped",
							zap.String("collection", col.ID), zap.Error(err))
					}
				}()
			}
		}()
	}

	webhook := live.NewWebhookHandler(collections, mints, sales, activityLog, rpc, md, engine)
	webhook.SetMetrics(metrics)
	webhookSrv := &http.Server{Addr: cfg.WebhookAddr, Handler: webhook}
	go func() {
		zap.L().Info("Webhook listening", zap.String("addr", cfg.WebhookAddr))
		if err := webhookSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("Webhook server failed", zap.Error(err))
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", observability.Handler())
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		zap.L().Info("Metrics listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Error("Metrics server failed", zap.Error(err))
		}
	}()

	// Catch up to two signals: first for graceful, second to force
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	doneCh := make(chan struct{})

	go func() {
		<-sigCh
		zap.L().Info("Received shutdown signal, initiating graceful shutdown...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := webhookSrv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("Error shutting down webhook server", zap.Error(err))
		}
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("Error shutting down metrics server", zap.Error(err))
		}

		cancel()

		if chConn != nil {
			if err := chConn.Close(); err != nil {
				zap.L().Warn("Error closing ClickHouse", zap.Error(err))
			}
		}
		pool.Close()

		close(doneCh)

		// If a second signal arrives, force an immediate exit
		<-sigCh
		zap.L().Error("Received second signal, forcing shutdown")
		os.Exit(1)
	}()

	<-doneCh
	zap.L().Info("Shutdown complete")
	_ = zap.L().Sync()
}

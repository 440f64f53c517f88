// Command analytics aggregates search and index-build events.
//
// It consumes the analytics-events topic (one event per answered query) and
// the index-complete topic (one event per build), keeps running totals,
// latency percentiles, top and zero-result queries in memory, and serves
// them at GET /api/v1/analytics. When PostgreSQL is reachable the aggregate
// is snapshotted periodically.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)
	if len(cfg.Kafka.Brokers) == 0 {
		slog.Error("analytics requires kafka.brokers")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator()
	checker := health.NewChecker()
	mux := http.NewServeMux()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, snapshots disabled", "error", err)
	} else {
		defer db.Close()
		snapshots := aggregator.NewStore(db, 0)
		if err := snapshots.EnsureSchema(ctx); err != nil {
			slog.Error("preparing snapshot schema", "error", err)
			os.Exit(1)
		}
		if latest, err := snapshots.LatestSnapshot(ctx); err != nil {
			slog.Warn("reading latest snapshot", "error", err)
		} else if latest != nil {
			slog.Info("previous snapshot found",
				"total_searches", latest.TotalSearches,
				"index_builds", latest.IndexBuilds,
			)
		}
		snapshots.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
		mux.HandleFunc("GET /api/v1/analytics/history", snapshots.HistoryHandler())
		checker.Register("postgres", health.Optional(db.Ping))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range []string{cfg.Kafka.Topics.AnalyticsEvents, cfg.Kafka.Topics.IndexComplete} {
		consumer := kafka.NewConsumer(cfg.Kafka, topic, analytics.HandleEvent(agg))
		g.Go(func() error {
			return consumer.Start(gctx)
		})
		slog.Info("consuming analytics topic", "topic", topic, "group", cfg.Kafka.ConsumerGroup)
	}

	analyticsHandler := analytics.NewHandler(agg)
	mux.HandleFunc("GET /api/v1/analytics", analyticsHandler.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Recover(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	if err := g.Wait(); err != nil {
		slog.Error("consumer error", "error", err)
	}

	slog.Info("analytics service stopped")
}

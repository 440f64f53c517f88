// Command searcher serves search queries over HTTP against the persisted
// index.
//
// It loads the snapshot written by cmd/indexer, answers
// GET /api/v1/search, and swaps in new builds either on
// POST /api/v1/index/reload or when a build-complete event arrives on Kafka.
// Redis caching and analytics publishing are enabled by configuration.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/reloader"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/redis"
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
	slog.Info("starting search service", "port", cfg.Server.Port, "backend", cfg.Index.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	indexStore, err := store.New(cfg.Index)
	if err != nil {
		slog.Error("invalid index store", "error", err)
		os.Exit(1)
	}
	engine := executor.New(cfg.Search.FuzzyThreshold)
	if snap, err := engine.Load(ctx, indexStore); err != nil {
		slog.Warn("no usable index yet, serving 503 until reload", "location", indexStore.Location(), "error", err)
	} else {
		m.SetSnapshotSize(snap.TermCount(), snap.DocCount())
	}

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var tracker handler.Tracker
	if len(cfg.Kafka.Brokers) > 0 {
		if cfg.Analytics.Enabled {
			producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
			defer producer.Close()
			collector := analytics.NewCollector(producer, cfg.Analytics.BufferSize)
			collector.Start(ctx)
			defer collector.Close()
			tracker = collector
			slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)
		}

		// Every replica must see every build event, so each gets its own group.
		reloadCfg := cfg.Kafka
		reloadCfg.ConsumerGroup = fmt.Sprintf("%s-searcher-%s", cfg.Kafka.ConsumerGroup, hostname())
		rl := reloader.New(engine, indexStore, m)
		consumer := kafka.NewConsumer(reloadCfg, cfg.Kafka.Topics.IndexComplete, rl.HandleMessage())
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("index event consumer error", "error", err)
			}
		}()
		slog.Info("listening for index builds", "topic", cfg.Kafka.Topics.IndexComplete, "group", reloadCfg.ConsumerGroup)
	}

	checker := health.NewChecker()
	checker.Register("index", health.Required(func(ctx context.Context) error {
		if !engine.Loaded() {
			return apperrors.ErrIndexNotLoaded
		}
		return nil
	}))
	if redisClient != nil {
		checker.Register("redis", health.Optional(redisClient.Ping))
	}

	h := handler.New(engine, indexStore, queryCache, tracker, m, cfg.Search)
	mux := h.Routes()
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Search.QueryTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "local"
	}
	return name
}

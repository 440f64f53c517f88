// Command indexer builds the search index from the crawled corpus and
// persists it for cmd/searcher and cmd/query.
//
// Each run rebuilds from scratch. When Kafka brokers are configured the
// finished build is announced on the index-complete topic so running
// searchers reload it.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml] [-corpus data]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	corpusDir := flag.String("corpus", "", "corpus directory (overrides corpus.dir)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *corpusDir != "" {
		cfg.Corpus.Dir = *corpusDir
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting index build",
		"corpus", cfg.Corpus.Dir,
		"data_dir", cfg.Index.DataDir,
		"backend", cfg.Index.Backend,
		"stemming", cfg.Index.Stemming,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	indexStore, err := store.New(cfg.Index)
	if err != nil {
		slog.Error("invalid index store", "error", err)
		os.Exit(1)
	}

	builder := indexer.NewBuilder(cfg.Corpus, cfg.Index, indexStore, metrics.New(nil))
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		builder.WithPublisher(producer)
		slog.Info("build events enabled", "topic", cfg.Kafka.Topics.IndexComplete)
	}

	report, err := builder.Build(ctx)
	if err != nil {
		slog.Error("index build failed", "error", err)
		os.Exit(1)
	}
	for _, failure := range report.Skipped {
		slog.Warn("document skipped", "source", failure.Source, "error", failure.Err)
	}

	slog.Info("indexer finished",
		"build_id", report.BuildID,
		"documents", report.Documents,
		"skipped", len(report.Skipped),
		"terms", report.Terms,
		"location", report.Location,
	)
}

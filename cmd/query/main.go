// Command query answers one query from the command line against the
// persisted index and prints the ranked results as JSON on stdout.
//
// The query comes from a file of the form {"top_k": 5, "query": "solar"},
// or from -q and -k, which take precedence. Logs go to stderr.
//
// Usage:
//
//	go run ./cmd/query [-config configs/development.yaml] [-file config.json]
//	go run ./cmd/query -q "solar power" -k 2
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/logger"
)

// Exit codes distinguish a bad request from an unusable index.
const (
	exitOK = iota
	exitFailure
	exitInvalid
	exitIndex
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	queryFile := flag.String("file", "config.json", "query file with top_k and query")
	queryText := flag.String("q", "", "query text (overrides the query file)")
	topK := flag.Int("k", 0, "number of results (overrides top_k)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return exitInvalid
	}
	logger.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	req, err := buildRequest(*queryFile, *queryText, *topK, cfg.Search.DefaultTopK)
	if err != nil {
		slog.Error("invalid query", "error", err)
		return exitInvalid
	}

	indexStore, err := store.New(cfg.Index)
	if err != nil {
		slog.Error("invalid index store", "error", err)
		return exitInvalid
	}
	ctx := context.Background()
	engine := executor.New(cfg.Search.FuzzyThreshold)
	if _, err := engine.Load(ctx, indexStore); err != nil {
		slog.Error("cannot load index", "location", indexStore.Location(), "error", err)
		return exitIndex
	}

	result, err := engine.Search(ctx, req.Query, req.TopK)
	if err != nil {
		slog.Error("search failed", "error", err)
		if errors.Is(err, apperrors.ErrInvalidConfiguration) {
			return exitInvalid
		}
		return exitFailure
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(result); err != nil {
		slog.Error("writing result", "error", err)
		return exitFailure
	}
	return exitOK
}

// buildRequest merges flags over the query file. The file is only read
// when -q is not given.
func buildRequest(path, text string, topK, defaultTopK int) (config.QueryConfig, error) {
	var req config.QueryConfig
	if text != "" {
		req = config.QueryConfig{Query: text, TopK: defaultTopK}
	} else {
		loaded, err := config.LoadQuery(path, defaultTopK)
		if err != nil {
			return config.QueryConfig{}, err
		}
		req = loaded
	}
	if topK != 0 {
		req.TopK = topK
	}
	return req, req.Validate()
}

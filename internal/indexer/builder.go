// Package indexer runs the write path: it lists the corpus once, extracts
// every page, weighs terms, inverts the matrix and persists the resulting
// snapshot.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/extractor"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tfidf"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/tracing"
)

// Publisher receives build-complete events. *kafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// BuildReport summarises one build.
type BuildReport struct {
	BuildID   string
	Sources   int
	Documents int
	Skipped   []*apperrors.ExtractionError
	Terms     int
	Location  string
	Duration  time.Duration
}

type Builder struct {
	corpus    config.CorpusConfig
	analyzer  tokenizer.Options
	backend   string
	extractor *extractor.Extractor
	store     store.Store
	metrics   *metrics.Metrics
	publisher Publisher
	retry     resilience.RetryConfig
	logger    *slog.Logger
}

func NewBuilder(corpus config.CorpusConfig, idx config.IndexConfig, st store.Store, m *metrics.Metrics) *Builder {
	return &Builder{
		corpus:   corpus,
		analyzer: tokenizer.Options{Stemming: idx.Stemming},
		backend:  idx.Backend,
		extractor: extractor.New(extractor.Options{
			Selector: corpus.Selector,
			Workers:  corpus.Workers,
		}),
		store:   st,
		metrics: m,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			Retryable: func(err error) bool {
				return !errors.Is(err, kafka.ErrEncode)
			},
		},
		logger: slog.Default().With("component", "index-builder"),
	}
}

// WithPublisher makes Build announce completed builds through p.
func (b *Builder) WithPublisher(p Publisher) *Builder {
	b.publisher = p
	return b
}

// Build regenerates the whole index from the corpus directory and replaces
// the persisted artifacts. Documents that fail extraction are skipped and
// listed in the report.
func (b *Builder) Build(ctx context.Context) (*BuildReport, error) {
	buildID := uuid.NewString()
	start := time.Now()
	ctx, root := tracing.StartSpan(ctx, "index.build", buildID)
	defer func() {
		root.End()
		root.Log()
	}()

	report, err := b.build(ctx, buildID, start)
	if err != nil {
		root.RecordError(err)
		b.metrics.ObserveBuild("failure", time.Since(start).Seconds())
		b.logger.Error("index build failed", "build_id", buildID, "error", err)
		return nil, err
	}
	report.Duration = time.Since(start)
	b.metrics.ObserveBuild("success", report.Duration.Seconds())
	b.metrics.SetSnapshotSize(report.Terms, report.Documents)

	b.logger.Info("index build complete",
		"build_id", buildID,
		"documents", report.Documents,
		"skipped", len(report.Skipped),
		"terms", report.Terms,
		"location", report.Location,
		"duration", report.Duration,
	)
	b.announce(ctx, report)
	return report, nil
}

func (b *Builder) build(ctx context.Context, buildID string, start time.Time) (*BuildReport, error) {
	_, span := tracing.StartChildSpan(ctx, "list")
	sources, err := extractor.ListCorpus(b.corpus.Dir, b.corpus.Extension)
	span.SetAttr("sources", len(sources))
	span.RecordError(err)
	span.End()
	if err != nil {
		return nil, err
	}

	extractCtx, span := tracing.StartChildSpan(ctx, "extract")
	corpus, err := b.extractor.ExtractCorpus(extractCtx, sources)
	if err != nil {
		span.RecordError(err)
		span.End()
		return nil, fmt.Errorf("extracting corpus: %w", err)
	}
	span.SetAttr("documents", len(corpus.Documents))
	span.SetAttr("skipped", len(corpus.Failures))
	span.End()
	b.metrics.ObserveExtraction(len(corpus.Documents), len(corpus.Failures))
	if len(corpus.Documents) == 0 {
		b.logger.Warn("corpus has no extractable documents", "dir", b.corpus.Dir)
	}

	_, span = tracing.StartChildSpan(ctx, "weigh")
	tok := tokenizer.New(b.analyzer)
	matrix := tfidf.Build(corpus.Texts(), tok)
	span.SetAttr("terms", matrix.Vocabulary.Len())
	span.End()

	_, span = tracing.StartChildSpan(ctx, "invert")
	snap := index.NewSnapshot(buildID, start, tok.Options(),
		index.Build(matrix, corpus.Names()), corpus.ContentTable())
	err = snap.Validate()
	span.RecordError(err)
	span.End()
	if err != nil {
		return nil, fmt.Errorf("validating built index: %w", err)
	}

	saveCtx, span := tracing.StartChildSpan(ctx, "persist")
	err = b.store.Save(saveCtx, snap)
	span.SetAttr("location", b.store.Location())
	span.RecordError(err)
	span.End()
	if err != nil {
		return nil, fmt.Errorf("persisting index: %w", err)
	}

	return &BuildReport{
		BuildID:   buildID,
		Sources:   len(sources),
		Documents: snap.DocCount(),
		Skipped:   corpus.Failures,
		Terms:     snap.TermCount(),
		Location:  b.store.Location(),
	}, nil
}

// announce publishes the build event. The index is already persisted, so a
// publishing failure is logged and not returned.
func (b *Builder) announce(ctx context.Context, report *BuildReport) {
	if b.publisher == nil {
		return
	}
	event := analytics.IndexEvent{
		Type:       analytics.EventIndexBuild,
		BuildID:    report.BuildID,
		Documents:  report.Documents,
		Skipped:    len(report.Skipped),
		Terms:      report.Terms,
		Backend:    b.backend,
		DurationMs: report.Duration.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
	err := resilience.Retry(ctx, "publish-index-event", b.retry, func() error {
		return b.publisher.Publish(ctx, kafka.Event{Key: report.BuildID, Value: event})
	})
	if err != nil {
		b.logger.Error("failed to publish index event", "build_id", report.BuildID, "error", err)
	}
}

// Package reloader keeps a query engine on the newest index build by
// listening for build-complete events on Kafka.
package reloader

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/resilience"
)

// Reloader loads a fresh snapshot whenever an index event announces a build
// newer than the one being served.
type Reloader struct {
	engine  *executor.Engine
	loader  executor.Loader
	metrics *metrics.Metrics
	retry   resilience.RetryConfig
	logger  *slog.Logger
}

func New(engine *executor.Engine, loader executor.Loader, m *metrics.Metrics) *Reloader {
	return &Reloader{
		engine:  engine,
		loader:  loader,
		metrics: m,
		retry: resilience.RetryConfig{
			MaxAttempts:  4,
			InitialDelay: 250 * time.Millisecond,
		},
		logger: slog.Default().With("component", "index-reloader"),
	}
}

// HandleMessage returns the consumer callback. Undecodable and stale events
// are acknowledged and skipped; a reload that keeps failing is logged and
// the engine stays on its current snapshot.
func (r *Reloader) HandleMessage() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[analytics.IndexEvent](value)
		if err != nil {
			r.logger.Error("failed to decode index event", "error", err, "key", string(key))
			return nil
		}
		if event.Type != analytics.EventIndexBuild {
			return nil
		}
		if !r.newer(event) {
			r.logger.Debug("skipping stale index event", "build_id", event.BuildID)
			return nil
		}
		r.Reload(ctx, event.BuildID)
		return nil
	}
}

// newer reports whether event describes a build the engine is not already
// serving. Events replayed from before the current build are ignored.
func (r *Reloader) newer(event analytics.IndexEvent) bool {
	snap := r.engine.Snapshot()
	if snap == nil {
		return true
	}
	if snap.BuildID() == event.BuildID {
		return false
	}
	return event.Timestamp.After(snap.BuiltAt())
}

// Reload loads the store, retrying because the event can arrive before a
// shared volume shows the announced build.
func (r *Reloader) Reload(ctx context.Context, announced string) {
	err := resilience.Retry(ctx, "index-reload", r.retry, func() error {
		snap, err := r.engine.Load(ctx, r.loader)
		if err != nil {
			return err
		}
		r.metrics.SetSnapshotSize(snap.TermCount(), snap.DocCount())
		r.logger.Info("index reloaded", "announced", announced, "build_id", snap.BuildID())
		return nil
	})
	if err != nil {
		r.logger.Error("index reload failed", "announced", announced, "error", err)
	}
}

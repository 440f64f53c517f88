package reloader

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tfidf"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/fuzzy"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

func snapshot(buildID string, builtAt time.Time) *index.Snapshot {
	names := []string{"doc0.html"}
	texts := []string{"solar panels generate power"}
	tok := tokenizer.New(tokenizer.Options{})
	return index.NewSnapshot(buildID, builtAt, tok.Options(), index.Build(tfidf.Build(texts, tok), names), index.NewContentTable(names, texts))
}

// countingLoader fails the first failures calls with a corrupt index.
type countingLoader struct {
	snap     *index.Snapshot
	failures int32
	calls    atomic.Int32
}

func (l *countingLoader) Load(context.Context) (*index.Snapshot, error) {
	if l.calls.Add(1) <= l.failures {
		return nil, apperrors.Corruptf("manifest missing")
	}
	return l.snap, nil
}

func message(t *testing.T, event analytics.IndexEvent) []byte {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func newReloader(engine *executor.Engine, l *countingLoader) *Reloader {
	r := New(engine, l, nil)
	r.retry.InitialDelay = time.Millisecond
	return r
}

func TestHandleMessage(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		serving   *index.Snapshot
		event     analytics.IndexEvent
		wantCalls int32
	}{
		{"unloaded engine loads", nil,
			analytics.IndexEvent{Type: analytics.EventIndexBuild, BuildID: "b2", Timestamp: base}, 1},
		{"newer build loads", snapshot("b1", base),
			analytics.IndexEvent{Type: analytics.EventIndexBuild, BuildID: "b2", Timestamp: base.Add(time.Minute)}, 1},
		{"same build skipped", snapshot("b2", base),
			analytics.IndexEvent{Type: analytics.EventIndexBuild, BuildID: "b2", Timestamp: base.Add(time.Minute)}, 0},
		{"replayed older build skipped", snapshot("b3", base),
			analytics.IndexEvent{Type: analytics.EventIndexBuild, BuildID: "b1", Timestamp: base.Add(-time.Hour)}, 0},
		{"other event type skipped", nil,
			analytics.IndexEvent{Type: analytics.EventSearch, BuildID: "b2", Timestamp: base}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine := executor.New(fuzzy.DefaultThreshold)
			if tc.serving != nil {
				engine.Install(tc.serving)
			}
			loader := &countingLoader{snap: snapshot("b2", base)}
			r := newReloader(engine, loader)
			if err := r.HandleMessage()(context.Background(), nil, message(t, tc.event)); err != nil {
				t.Fatalf("handler: %v", err)
			}
			if got := loader.calls.Load(); got != tc.wantCalls {
				t.Fatalf("loads = %d; want %d", got, tc.wantCalls)
			}
		})
	}
}

func TestReloadRetriesTransientCorruption(t *testing.T) {
	engine := executor.New(fuzzy.DefaultThreshold)
	loader := &countingLoader{snap: snapshot("b2", time.Now()), failures: 2}
	newReloader(engine, loader).Reload(context.Background(), "b2")
	if loader.calls.Load() != 3 {
		t.Fatalf("loads = %d; want 3", loader.calls.Load())
	}
	if snap := engine.Snapshot(); snap == nil || snap.BuildID() != "b2" {
		t.Fatal("engine should serve b2 after retries")
	}
}

func TestReloadGivesUpAndKeepsServing(t *testing.T) {
	engine := executor.New(fuzzy.DefaultThreshold)
	engine.Install(snapshot("b1", time.Now()))
	loader := &countingLoader{failures: 100}
	r := newReloader(engine, loader)
	r.Reload(context.Background(), "b2")
	if loader.calls.Load() != int32(r.retry.MaxAttempts) {
		t.Fatalf("loads = %d; want %d", loader.calls.Load(), r.retry.MaxAttempts)
	}
	if engine.Snapshot().BuildID() != "b1" {
		t.Fatal("failed reload must keep the previous snapshot")
	}
}

func TestUndecodableMessageIsAcknowledged(t *testing.T) {
	engine := executor.New(fuzzy.DefaultThreshold)
	loader := &countingLoader{}
	if err := newReloader(engine, loader).HandleMessage()(context.Background(), nil, []byte("{")); err != nil {
		t.Fatalf("handler returned %v; want nil", err)
	}
	if loader.calls.Load() != 0 {
		t.Fatal("bad message must not trigger a load")
	}
}

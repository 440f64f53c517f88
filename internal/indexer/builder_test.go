package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/kafka"
)

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	pages := map[string]string{
		"doc0.html": "<html><body><nav>Menu</nav><p>solar panels generate power</p></body></html>",
		"doc1.html": "<p>wind turbines generate power</p>",
		"doc2.html": "<p>unrelated topic text</p>",
		"readme.md": "ignored",
	}
	for name, body := range pages {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestBuilder(corpusDir, indexDir string) (*Builder, store.Store) {
	st := store.NewJSONStore(indexDir)
	corpus := config.CorpusConfig{Dir: corpusDir, Extension: ".html", Selector: "p", Workers: 2}
	b := NewBuilder(corpus, config.IndexConfig{DataDir: indexDir, Backend: config.BackendJSON}, st, nil)
	b.retry.InitialDelay = time.Millisecond
	return b, st
}

func TestBuild(t *testing.T) {
	b, st := newTestBuilder(writeCorpus(t), t.TempDir())
	report, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if report.Sources != 3 || report.Documents != 3 || len(report.Skipped) != 0 {
		t.Fatalf("report = %+v", report)
	}
	if report.Terms != 9 {
		t.Fatalf("terms = %d; want 9", report.Terms)
	}

	snap, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.BuildID() != report.BuildID {
		t.Fatalf("loaded build %q; want %q", snap.BuildID(), report.BuildID)
	}
	postings, ok := snap.Postings("solar")
	if !ok || len(postings) != 1 || postings[0].DocumentID != 0 || postings[0].Filename != "doc0.html" {
		t.Fatalf("solar postings = %+v", postings)
	}
	if _, ok := snap.Postings("menu"); ok {
		t.Fatal("navigation text must not be indexed")
	}
	doc, ok := snap.Document(2)
	if !ok || doc.DocumentName != "doc2.html" || doc.Content != "unrelated topic text" {
		t.Fatalf("document 2 = %+v", doc)
	}
}

func TestRebuildDeterministic(t *testing.T) {
	corpusDir := writeCorpus(t)
	b1, st1 := newTestBuilder(corpusDir, t.TempDir())
	b2, st2 := newTestBuilder(corpusDir, t.TempDir())
	if _, err := b1.Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := b2.Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	a, err := st1.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	c, err := st2.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.Terms(), c.Terms()) || !reflect.DeepEqual(a.DocumentIDs(), c.DocumentIDs()) {
		t.Fatal("rebuild changed terms or document ids")
	}
	for _, term := range a.Terms() {
		pa, _ := a.Postings(term)
		pc, _ := c.Postings(term)
		if !reflect.DeepEqual(pa, pc) {
			t.Fatalf("postings for %q differ: %+v vs %+v", term, pa, pc)
		}
	}
}

func TestBuildFailureKeepsPreviousIndex(t *testing.T) {
	corpusDir := writeCorpus(t)
	b, st := newTestBuilder(corpusDir, t.TempDir())
	first, err := b.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(corpusDir); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Build(context.Background()); err == nil {
		t.Fatal("build over a missing corpus should fail")
	}
	snap, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("Load after failed build: %v", err)
	}
	if snap.BuildID() != first.BuildID {
		t.Fatalf("build id = %q; want %q", snap.BuildID(), first.BuildID)
	}
}

type flakyPublisher struct {
	mu       sync.Mutex
	failures int
	calls    int
	events   []kafka.Event
}

func (p *flakyPublisher) Publish(_ context.Context, event kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failures {
		return errors.New("broker unavailable")
	}
	p.events = append(p.events, event)
	return nil
}

func TestBuildPublishesEvent(t *testing.T) {
	pub := &flakyPublisher{failures: 1}
	b, _ := newTestBuilder(writeCorpus(t), t.TempDir())
	b.WithPublisher(pub)

	report, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if pub.calls != 2 || len(pub.events) != 1 {
		t.Fatalf("calls = %d, events = %d; want 2 and 1", pub.calls, len(pub.events))
	}
	event, ok := pub.events[0].Value.(analytics.IndexEvent)
	if !ok {
		t.Fatalf("event value is %T", pub.events[0].Value)
	}
	if pub.events[0].Key != report.BuildID || event.BuildID != report.BuildID || event.Documents != 3 || event.Backend != config.BackendJSON {
		t.Fatalf("event = %+v", event)
	}
}

func TestBuildSucceedsWhenPublishingFails(t *testing.T) {
	pub := &flakyPublisher{failures: 100}
	b, _ := newTestBuilder(writeCorpus(t), t.TempDir())
	b.WithPublisher(pub)
	if _, err := b.Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if pub.calls != b.retry.MaxAttempts {
		t.Fatalf("calls = %d; want %d", pub.calls, b.retry.MaxAttempts)
	}
}

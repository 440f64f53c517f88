package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tfidf"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/fuzzy"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

var (
	names = []string{"doc0.html", "doc1.html", "doc2.html"}
	texts = []string{
		"solar panels generate power",
		"wind turbines generate power",
		"unrelated topic text",
	}
)

func snapshot(buildID string, names, texts []string) *index.Snapshot {
	tok := tokenizer.New(tokenizer.Options{})
	m := tfidf.Build(texts, tok)
	return index.NewSnapshot(buildID, time.Now(), tok.Options(), index.Build(m, names), index.NewContentTable(names, texts))
}

func loadedEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(fuzzy.DefaultThreshold)
	e.Install(snapshot("b1", names, texts))
	return e
}

func resultIDs(r *SearchResult) []int {
	out := make([]int, len(r.Results))
	for i, d := range r.Results {
		out[i] = d.DocumentID
	}
	return out
}

func TestSearchSolarPower(t *testing.T) {
	res, err := loadedEngine(t).Search(context.Background(), "solar power", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !reflect.DeepEqual(resultIDs(res), []int{0, 1}) {
		t.Fatalf("results = %v; want [0 1]", resultIDs(res))
	}
	if res.Results[0].Score <= res.Results[1].Score {
		t.Fatalf("doc0 score %v should exceed doc1 score %v", res.Results[0].Score, res.Results[1].Score)
	}
	if res.Results[0].DocumentName != "doc0.html" {
		t.Fatalf("name = %q", res.Results[0].DocumentName)
	}
}

func TestSearchAllStopwords(t *testing.T) {
	res, err := loadedEngine(t).Search(context.Background(), "the and of", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Results) != 0 || res.TotalHits != 0 {
		t.Fatalf("results = %+v; want empty", res.Results)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	res, err := loadedEngine(t).Search(context.Background(), "   ", 5)
	if err != nil || len(res.Results) != 0 {
		t.Fatalf("Search(empty) = %+v, %v; want empty result", res, err)
	}
}

func TestSearchCorrectsTypo(t *testing.T) {
	e := loadedEngine(t)
	typo, err := e.Search(context.Background(), "solor", 5)
	if err != nil {
		t.Fatal(err)
	}
	exact, err := e.Search(context.Background(), "solar", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(typo.Corrections) != 1 || typo.Corrections[0].To != "solar" {
		t.Fatalf("corrections = %+v", typo.Corrections)
	}
	if !reflect.DeepEqual(typo.Results, exact.Results) {
		t.Fatalf("typo results %+v differ from exact results %+v", typo.Results, exact.Results)
	}
}

func TestSearchTruncation(t *testing.T) {
	e := loadedEngine(t)
	// "generate power" matches doc0 and doc1 only.
	for k := 1; k <= 4; k++ {
		res, err := e.Search(context.Background(), "generate power", k)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := len(res.Results), min(k, 2); got != want {
			t.Fatalf("k=%d: got %d results; want %d", k, got, want)
		}
		if res.TotalHits != 2 {
			t.Fatalf("total hits = %d; want 2", res.TotalHits)
		}
	}
}

func TestSearchTiesByDocumentID(t *testing.T) {
	e := New(fuzzy.DefaultThreshold)
	e.Install(snapshot("b", []string{"a.html", "b.html", "c.html"}, []string{"alpha beta", "gamma delta", "alpha beta"}))
	res, err := e.Search(context.Background(), "alpha", 5)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(resultIDs(res), []int{0, 2}) {
		t.Fatalf("results = %v; want [0 2]", resultIDs(res))
	}
	if res.Results[0].Score != res.Results[1].Score {
		t.Fatal("identical documents should tie")
	}
}

func TestSearchIdempotent(t *testing.T) {
	e := loadedEngine(t)
	first, err := e.Search(context.Background(), "wind power text", 5)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, err := e.Search(context.Background(), "wind power text", 5)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %+v vs %+v", i, again, first)
		}
	}
}

func TestSearchErrors(t *testing.T) {
	unloaded := New(fuzzy.DefaultThreshold)
	if _, err := unloaded.Search(context.Background(), "solar", 5); !errors.Is(err, apperrors.ErrIndexNotLoaded) {
		t.Fatalf("unloaded search err = %v; want IndexNotLoaded", err)
	}
	if _, err := unloaded.Content(0); !errors.Is(err, apperrors.ErrIndexNotLoaded) {
		t.Fatalf("unloaded content err = %v; want IndexNotLoaded", err)
	}
	e := loadedEngine(t)
	for _, k := range []int{0, -3} {
		if _, err := e.Search(context.Background(), "solar", k); !errors.Is(err, apperrors.ErrInvalidConfiguration) {
			t.Fatalf("top_k=%d err = %v; want InvalidConfiguration", k, err)
		}
	}
}

func TestContent(t *testing.T) {
	e := loadedEngine(t)
	doc, err := e.Content(1)
	if err != nil {
		t.Fatal(err)
	}
	if doc.DocumentName != "doc1.html" || doc.Content != texts[1] {
		t.Fatalf("Content(1) = %+v", doc)
	}
	if _, err := e.Content(42); !errors.Is(err, apperrors.ErrDocumentNotFound) {
		t.Fatalf("Content(42) err = %v; want DocumentNotFound", err)
	}
}

func TestLoadCorruptIndexRefusesQueries(t *testing.T) {
	dir := t.TempDir()
	st := store.NewJSONStore(dir)
	if err := st.Save(context.Background(), snapshot("b1", names, texts)); err != nil {
		t.Fatal(err)
	}
	buildDir, err := st.CurrentDir()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(buildDir, store.IndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data[:len(data)/3], 0o644); err != nil {
		t.Fatal(err)
	}

	e := New(fuzzy.DefaultThreshold)
	if _, err := e.Load(context.Background(), st); !errors.Is(err, apperrors.ErrCorruptIndex) {
		t.Fatalf("Load err = %v; want CorruptIndex", err)
	}
	if _, err := e.Search(context.Background(), "solar", 5); !errors.Is(err, apperrors.ErrIndexNotLoaded) {
		t.Fatalf("search after failed load: err = %v; want IndexNotLoaded", err)
	}
}

func TestFailedReloadKeepsPreviousSnapshot(t *testing.T) {
	e := loadedEngine(t)
	if _, err := e.Load(context.Background(), store.NewJSONStore(t.TempDir())); err == nil {
		t.Fatal("load from empty directory should fail")
	}
	if e.Snapshot().BuildID() != "b1" {
		t.Fatalf("build id = %q; want b1", e.Snapshot().BuildID())
	}
}

func TestConcurrentSearchDuringReload(t *testing.T) {
	e := loadedEngine(t)
	next := snapshot("b2", []string{"x.html"}, []string{"solar farms"})

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				res, err := e.Search(context.Background(), "solar", 5)
				if err != nil {
					errs <- err
					return
				}
				if len(res.Results) != 1 {
					errs <- fmt.Errorf("build %s returned %d results", res.BuildID, len(res.Results))
					return
				}
			}
		}()
	}
	e.Install(next)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	if e.Snapshot().BuildID() != "b2" {
		t.Fatal("new snapshot not installed")
	}
}

func BenchmarkSearch(b *testing.B) {
	e := New(fuzzy.DefaultThreshold)
	e.Install(snapshot("bench", names, texts))
	ctx := context.Background()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := e.Search(ctx, "solor power", 5); err != nil {
			b.Fatal(err)
		}
	}
}

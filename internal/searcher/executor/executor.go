// Package executor is the query engine: it holds the loaded index snapshot
// and answers searches and content lookups against it.
package executor

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/fuzzy"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

type SearchResult struct {
	Query       string             `json:"query"`
	TopK        int                `json:"top_k"`
	Terms       []string           `json:"terms"`
	Corrections []query.Correction `json:"corrections,omitempty"`
	TotalHits   int                `json:"total_hits"`
	Results     []ranker.ScoredDoc `json:"results"`
	BuildID     string             `json:"build_id"`
}

// Loader produces a validated snapshot. store.Store satisfies it.
type Loader interface {
	Load(ctx context.Context) (*index.Snapshot, error)
}

// state pairs a snapshot with the query pipeline derived from it so that a
// search never mixes the vocabulary of one build with the postings of
// another.
type state struct {
	snap     *index.Snapshot
	pipeline *query.Pipeline
}

// Engine answers queries against the current snapshot. Searches read the
// snapshot through an atomic pointer and never block each other or a
// reload; a reload swaps the pointer once the new snapshot is complete.
type Engine struct {
	current   atomic.Pointer[state]
	threshold float64
	logger    *slog.Logger
}

// New creates an engine with no index loaded. threshold is the fuzzy
// correction threshold on a 0-100 scale; zero or less disables correction.
func New(threshold float64) *Engine {
	return &Engine{
		threshold: threshold,
		logger:    slog.Default().With("component", "query-engine"),
	}
}

// Load reads a snapshot from l and makes it current. On failure the engine
// keeps serving whatever it served before, or stays unloaded.
func (e *Engine) Load(ctx context.Context, l Loader) (*index.Snapshot, error) {
	snap, err := l.Load(ctx)
	if err != nil {
		e.logger.Error("index load failed", "error", err, "serving_previous", e.Loaded())
		return nil, err
	}
	e.Install(snap)
	return snap, nil
}

// Install makes snap current. snap must already be validated.
func (e *Engine) Install(snap *index.Snapshot) {
	var corrector *fuzzy.Corrector
	if e.threshold > 0 {
		corrector = fuzzy.NewCorrector(snap.Terms(), e.threshold)
	}
	e.current.Store(&state{
		snap:     snap,
		pipeline: query.NewPipeline(tokenizer.New(snap.Analyzer()), corrector),
	})
	e.logger.Info("index snapshot installed",
		"build_id", snap.BuildID(),
		"terms", snap.TermCount(),
		"documents", snap.DocCount(),
	)
}

func (e *Engine) Loaded() bool { return e.current.Load() != nil }

// Snapshot returns the current snapshot or nil.
func (e *Engine) Snapshot() *index.Snapshot {
	if st := e.current.Load(); st != nil {
		return st.snap
	}
	return nil
}

func (e *Engine) state() (*state, error) {
	st := e.current.Load()
	if st == nil {
		return nil, apperrors.New(apperrors.ErrIndexNotLoaded, http.StatusServiceUnavailable, "no index snapshot has been loaded")
	}
	return st, nil
}

// Search returns at most topK documents for q. A query that reduces to no
// terms, such as one made only of stopwords, yields an empty result.
func (e *Engine) Search(ctx context.Context, q string, topK int) (*SearchResult, error) {
	st, err := e.state()
	if err != nil {
		return nil, err
	}
	if topK < 1 {
		return nil, apperrors.Invalidf("top_k must be >= 1, got %d", topK)
	}

	plan := st.pipeline.Analyze(q)
	result := &SearchResult{
		Query:       q,
		TopK:        topK,
		Terms:       plan.Terms,
		Corrections: plan.Corrections,
		Results:     []ranker.ScoredDoc{},
		BuildID:     st.snap.BuildID(),
	}
	if plan.Empty() {
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lists := make([]index.PostingList, 0, len(plan.Terms))
	for _, term := range plan.Terms {
		if postings, ok := st.snap.Postings(term); ok {
			lists = append(lists, postings)
		}
	}
	result.Results, result.TotalHits = ranker.Rank(lists, topK)

	e.logger.Debug("query executed",
		"query", q,
		"terms", plan.Terms,
		"corrections", len(plan.Corrections),
		"hits", result.TotalHits,
		"returned", len(result.Results),
	)
	return result, nil
}

// Content returns the stored name and extracted text of a document.
func (e *Engine) Content(id int) (index.ContentEntry, error) {
	st, err := e.state()
	if err != nil {
		return index.ContentEntry{}, err
	}
	doc, ok := st.snap.Document(id)
	if !ok {
		return index.ContentEntry{}, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "document %d does not exist", id)
	}
	return doc, nil
}

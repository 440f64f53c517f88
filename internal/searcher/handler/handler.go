// Package handler serves the query engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/middleware"
)

// Tracker receives one event per answered query. *analytics.Collector
// satisfies it.
type Tracker interface {
	Track(event analytics.SearchEvent)
}

// Handler exposes search, document preview, reload and cache endpoints.
// cache, tracker and metrics are optional.
type Handler struct {
	engine  *executor.Engine
	loader  executor.Loader
	cache   *cache.QueryCache
	tracker Tracker
	metrics *metrics.Metrics
	cfg     config.SearchConfig
	logger  *slog.Logger
}

func New(
	engine *executor.Engine,
	loader executor.Loader,
	queryCache *cache.QueryCache,
	tracker Tracker,
	m *metrics.Metrics,
	cfg config.SearchConfig,
) *Handler {
	return &Handler{
		engine:  engine,
		loader:  loader,
		cache:   queryCache,
		tracker: tracker,
		metrics: m,
		cfg:     cfg,
		logger:  slog.Default().With("component", "search-handler"),
	}
}

// Routes registers the API on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Document)
	mux.HandleFunc("POST /api/v1/index/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	return mux
}

// Search answers GET /api/v1/search?q=...&top_k=N. An absent q is a bad
// request; a present but empty q yields an empty result.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	params := r.URL.Query()
	if !params.Has("q") {
		h.writeError(w, apperrors.Invalidf("query parameter 'q' is required"))
		return
	}
	q := params.Get("q")
	topK, err := h.parseTopK(params.Get("top_k"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, cacheStatus, err := h.execute(ctx, q, topK)
	elapsed := time.Since(start)
	if err != nil {
		h.metrics.ObserveSearch("error", cacheStatus, elapsed.Seconds(), 0, 0)
		log.Warn("search failed", "query", q, "error", err)
		h.writeError(w, err)
		return
	}

	outcome := "ok"
	if len(result.Results) == 0 {
		outcome = "empty"
	}
	h.metrics.ObserveSearch(outcome, cacheStatus, elapsed.Seconds(), len(result.Results), len(result.Corrections))
	log.Info("search completed",
		"query", q,
		"top_k", topK,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"corrections", len(result.Corrections),
		"cache", cacheStatus,
		"latency_ms", elapsed.Milliseconds(),
	)
	h.track(ctx, result, cacheStatus == "hit", elapsed)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) parseTopK(raw string) (int, error) {
	if raw == "" {
		return h.cfg.DefaultTopK, nil
	}
	topK, err := strconv.Atoi(raw)
	if err != nil || topK < 1 {
		return 0, apperrors.Invalidf("top_k must be a positive integer, got %q", raw)
	}
	if h.cfg.MaxTopK > 0 && topK > h.cfg.MaxTopK {
		topK = h.cfg.MaxTopK
	}
	return topK, nil
}

// execute consults the cache when one is configured and the engine has a
// snapshot, since cache keys are scoped to the snapshot's build id.
func (h *Handler) execute(ctx context.Context, q string, topK int) (*executor.SearchResult, string, error) {
	snap := h.engine.Snapshot()
	if h.cache == nil || snap == nil {
		result, err := h.engine.Search(ctx, q, topK)
		return result, "disabled", err
	}
	result, hit, err := h.cache.GetOrCompute(ctx, snap.BuildID(), q, topK, func(ctx context.Context) (*executor.SearchResult, error) {
		return h.engine.Search(ctx, q, topK)
	})
	if hit {
		return result, "hit", err
	}
	return result, "miss", err
}

func (h *Handler) track(ctx context.Context, result *executor.SearchResult, cacheHit bool, elapsed time.Duration) {
	if h.tracker == nil {
		return
	}
	eventType := analytics.EventSearch
	if len(result.Results) == 0 {
		eventType = analytics.EventZeroResult
	}
	h.tracker.Track(analytics.SearchEvent{
		Type:        eventType,
		Query:       result.Query,
		Terms:       result.Terms,
		Corrections: len(result.Corrections),
		TopK:        result.TopK,
		Returned:    len(result.Results),
		LatencyMs:   elapsed.Milliseconds(),
		CacheHit:    cacheHit,
		BuildID:     result.BuildID,
		Timestamp:   time.Now().UTC(),
		RequestID:   middleware.GetRequestID(ctx),
	})
}

type documentResponse struct {
	DocumentID   int    `json:"document_id"`
	DocumentName string `json:"document_name"`
	Content      string `json:"content"`
}

// Document serves the stored preview text for one document id.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("id")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		h.writeError(w, apperrors.Invalidf("document id must be a non-negative integer, got %q", raw))
		return
	}
	doc, err := h.engine.Content(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, documentResponse{
		DocumentID:   id,
		DocumentName: doc.DocumentName,
		Content:      doc.Content,
	})
}

type reloadResponse struct {
	BuildID   string    `json:"build_id"`
	BuiltAt   time.Time `json:"built_at"`
	Terms     int       `json:"terms"`
	Documents int       `json:"documents"`
}

// Reload re-reads the persisted index. A failed reload leaves the current
// snapshot serving.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Load(r.Context(), h.loader)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.metrics.SetSnapshotSize(snap.TermCount(), snap.DocCount())
	h.writeJSON(w, http.StatusOK, reloadResponse{
		BuildID:   snap.BuildID(),
		BuiltAt:   snap.BuiltAt(),
		Terms:     snap.TermCount(),
		Documents: snap.DocCount(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		"circuit":  h.cache.CircuitState(),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": err.Error()})
}

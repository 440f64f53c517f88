package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/kafka"
)

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	Corrections       int64        `json:"corrections"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
	IndexBuilds       int64        `json:"index_builds"`
	LastBuild         *IndexEvent  `json:"last_build,omitempty"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds search and index events into running statistics.
type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	corrections       int64
	latencies         []int64
	next              int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	indexBuilds       int64
	lastBuild         *IndexEvent
	startTime         time.Time
	logger            *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent decodes a message from either analytics topic and records it.
// Undecodable messages are logged and acknowledged.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		if err := agg.Decode(value); err != nil {
			agg.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
		}
		return nil
	}
}

type eventProbe struct {
	Type EventType `json:"type"`
}

// Decode dispatches one JSON event on its type field.
func (a *Aggregator) Decode(value []byte) error {
	probe, err := kafka.DecodeJSON[eventProbe](value)
	if err != nil {
		return err
	}
	switch probe.Type {
	case EventSearch, EventZeroResult:
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			return err
		}
		a.RecordSearch(event)
	case EventIndexBuild:
		event, err := kafka.DecodeJSON[IndexEvent](value)
		if err != nil {
			return err
		}
		a.RecordIndex(event)
	default:
		return fmt.Errorf("unknown event type %q", probe.Type)
	}
	return nil
}

func (a *Aggregator) RecordSearch(event SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches++
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	a.corrections += int64(event.Corrections)
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}
	a.queryCounts[event.Query]++
	if event.Returned == 0 {
		a.zeroResults++
		a.zeroResultQueries[event.Query]++
	}
}

func (a *Aggregator) RecordIndex(event IndexEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.indexBuilds++
	if a.lastBuild == nil || !event.Timestamp.Before(a.lastBuild.Timestamp) {
		e := event
		a.lastBuild = &e
	}
}

// DefaultTopQueries is how many entries Stats puts in each query list.
const DefaultTopQueries = 10

func (a *Aggregator) Stats() AggregatedStats {
	return a.StatsTop(DefaultTopQueries)
}

// StatsTop is Stats with the query lists holding up to n entries each.
func (a *Aggregator) StatsTop(n int) AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:   a.totalSearches,
		CacheHits:       a.cacheHits,
		CacheMisses:     a.cacheMisses,
		ZeroResultCount: a.zeroResults,
		Corrections:     a.corrections,
		IndexBuilds:     a.indexBuilds,
	}
	if a.lastBuild != nil {
		last := *a.lastBuild
		stats.LastBuild = &last
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, n)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, n)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
	EventIndexBuild EventType = "index_build"
)

// SearchEvent describes one answered query.
type SearchEvent struct {
	Type        EventType `json:"type"`
	Query       string    `json:"query"`
	Terms       []string  `json:"terms"`
	Corrections int       `json:"corrections"`
	TopK        int       `json:"top_k"`
	Returned    int       `json:"returned"`
	LatencyMs   int64     `json:"latency_ms"`
	CacheHit    bool      `json:"cache_hit"`
	BuildID     string    `json:"build_id"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id"`
}

// IndexEvent is published once per completed index build.
type IndexEvent struct {
	Type       EventType `json:"type"`
	BuildID    string    `json:"build_id"`
	Documents  int       `json:"documents"`
	Skipped    int       `json:"skipped"`
	Terms      int       `json:"terms"`
	Backend    string    `json:"backend"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

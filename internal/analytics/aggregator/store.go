// Package aggregator persists periodic snapshots of the analytics
// aggregate to PostgreSQL.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/resilience"
)

const schema = `
CREATE TABLE IF NOT EXISTS analytics_snapshots (
    id             BIGSERIAL PRIMARY KEY,
    data           JSONB NOT NULL,
    total_searches BIGINT NOT NULL,
    index_builds   BIGINT NOT NULL,
    captured_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS analytics_snapshots_captured_at_idx
    ON analytics_snapshots (captured_at DESC);`

// StatsSource yields the aggregate to snapshot. *analytics.Aggregator
// satisfies it.
type StatsSource interface {
	Stats() analytics.AggregatedStats
}

// Store persists aggregated analytics snapshots in PostgreSQL and keeps at
// most retention of them.
type Store struct {
	db        *postgres.Client
	retention int
	logger    *slog.Logger
}

func NewStore(db *postgres.Client, retention int) *Store {
	if retention <= 0 {
		retention = 1440
	}
	return &Store{
		db:        db,
		retention: retention,
		logger:    slog.Default().With("component", "analytics-store"),
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating analytics schema: %w", err)
	}
	return nil
}

// SaveSnapshot inserts stats and prunes snapshots beyond the retention
// limit in one transaction.
func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO analytics_snapshots (data, total_searches, index_builds, captured_at) VALUES ($1, $2, $3, $4)`,
			data, stats.TotalSearches, stats.IndexBuilds, time.Now().UTC(),
		); err != nil {
			return fmt.Errorf("inserting snapshot: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM analytics_snapshots WHERE id NOT IN (
				SELECT id FROM analytics_snapshots ORDER BY captured_at DESC LIMIT $1)`,
			s.retention,
		); err != nil {
			return fmt.Errorf("pruning snapshots: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}

	s.logger.Info("analytics snapshot saved",
		"total_searches", stats.TotalSearches,
		"index_builds", stats.IndexBuilds,
	)
	return nil
}

// LatestSnapshot loads the most recent snapshot, or nil if none exist.
func (s *Store) LatestSnapshot(ctx context.Context) (*analytics.AggregatedStats, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM analytics_snapshots ORDER BY captured_at DESC LIMIT 1`,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}

	var stats analytics.AggregatedStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &stats, nil
}

// ListSnapshots returns the last limit snapshots, newest first.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]analytics.AggregatedStats, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT data FROM analytics_snapshots ORDER BY captured_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []analytics.AggregatedStats
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		var stats analytics.AggregatedStats
		if err := json.Unmarshal(data, &stats); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "error", err)
			continue
		}
		snapshots = append(snapshots, stats)
	}
	return snapshots, rows.Err()
}

// HistoryHandler serves the most recent snapshots, newest first. The limit
// query parameter defaults to 60 and is capped at 1440.
func (s *Store) HistoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 60
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
				return
			}
			limit = min(n, 1440)
		}
		snapshots, err := s.ListSnapshots(r.Context(), limit)
		if err != nil {
			s.logger.Error("listing snapshots failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "snapshot history unavailable"})
			return
		}
		if snapshots == nil {
			snapshots = []analytics.AggregatedStats{}
		}
		writeJSON(w, http.StatusOK, snapshots)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// StartPeriodicSave snapshots src every interval and once more when ctx
// ends. Each write is bounded so a stuck database cannot pile up ticks.
func (s *Store) StartPeriodicSave(ctx context.Context, src StatsSource, interval time.Duration) {
	save := func(parent context.Context, label string) {
		err := resilience.WithTimeout(parent, 5*time.Second, "analytics-snapshot", func(ctx context.Context) error {
			return s.SaveSnapshot(ctx, src.Stats())
		})
		if err != nil {
			s.logger.Error(label+" snapshot failed", "error", err)
		}
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				save(ctx, "periodic")
			case <-ctx.Done():
				save(context.Background(), "final")
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval)
}

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

// QueryConfig is the caller-supplied query request. The file form is the
// {"top_k": 5, "query": "solar energy"} document the CLI reads; JSON parses
// as YAML so either syntax works.
type QueryConfig struct {
	TopK  int    `yaml:"top_k" json:"top_k"`
	Query string `yaml:"query" json:"query"`
}

// Validate fails with InvalidConfiguration when top_k < 1. An empty query
// is valid and searches for nothing.
func (q QueryConfig) Validate() error {
	if q.TopK < 1 {
		return apperrors.Invalidf("top_k must be >= 1, got %d", q.TopK)
	}
	return nil
}

// LoadQuery reads a query file. A missing top_k takes defaultTopK; a
// missing or null query is InvalidConfiguration, while "" is accepted.
func LoadQuery(path string, defaultTopK int) (QueryConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return QueryConfig{}, fmt.Errorf("reading query file %s: %w", path, err)
	}
	var raw struct {
		TopK  *int    `yaml:"top_k"`
		Query *string `yaml:"query"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return QueryConfig{}, apperrors.Invalidf("parsing query file %s: %v", path, err)
	}
	if raw.Query == nil {
		return QueryConfig{}, apperrors.Invalidf("query file %s has no query", path)
	}
	q := QueryConfig{TopK: defaultTopK, Query: *raw.Query}
	if raw.TopK != nil {
		q.TopK = *raw.TopK
	}
	if err := q.Validate(); err != nil {
		return QueryConfig{}, err
	}
	return q, nil
}

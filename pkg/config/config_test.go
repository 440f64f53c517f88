package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.DefaultTopK != 5 {
		t.Fatalf("DefaultTopK = %d; want 5", cfg.Search.DefaultTopK)
	}
	if cfg.Search.FuzzyThreshold != 80 {
		t.Fatalf("FuzzyThreshold = %v; want 80", cfg.Search.FuzzyThreshold)
	}
	if cfg.Index.Backend != BackendJSON {
		t.Fatalf("Backend = %q; want %q", cfg.Index.Backend, BackendJSON)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeFile(t, "cfg.yaml", `
corpus:
  dir: /srv/pages
index:
  backend: sqlite
search:
  defaultTopK: 3
`)
	t.Setenv("CS_INDEX_DATA_DIR", "/srv/idx")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Corpus.Dir != "/srv/pages" || cfg.Index.Backend != BackendSQLite || cfg.Search.DefaultTopK != 3 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Index.DataDir != "/srv/idx" {
		t.Fatalf("env override not applied: %q", cfg.Index.DataDir)
	}
	if cfg.Corpus.Extension != ".html" {
		t.Fatalf("default lost after partial file: %q", cfg.Corpus.Extension)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero top k", "search:\n  defaultTopK: 0\n"},
		{"threshold out of range", "search:\n  fuzzyThreshold: 120\n"},
		{"unknown backend", "index:\n  backend: bolt\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "cfg.yaml", tc.body))
			if !errors.Is(err, apperrors.ErrInvalidConfiguration) {
				t.Fatalf("err = %v; want ErrInvalidConfiguration", err)
			}
		})
	}
}

func TestLoadQuery(t *testing.T) {
	q, err := LoadQuery(writeFile(t, "config.json", `{"top_k": 3, "query": "solar energy"}`), 5)
	if err != nil {
		t.Fatalf("LoadQuery: %v", err)
	}
	if q.TopK != 3 || q.Query != "solar energy" {
		t.Fatalf("got %+v", q)
	}

	q, err = LoadQuery(writeFile(t, "config.json", `{"query": "wind"}`), 5)
	if err != nil {
		t.Fatalf("LoadQuery: %v", err)
	}
	if q.TopK != 5 {
		t.Fatalf("missing top_k should default to 5, got %d", q.TopK)
	}
}

func TestLoadQueryAcceptsEmptyQuery(t *testing.T) {
	for _, body := range []string{`{"top_k": 2, "query": ""}`, `{"top_k": 2, "query": "   "}`} {
		q, err := LoadQuery(writeFile(t, "config.json", body), 5)
		if err != nil {
			t.Fatalf("%s: LoadQuery: %v", body, err)
		}
		if q.TopK != 2 {
			t.Fatalf("%s: top_k = %d; want 2", body, q.TopK)
		}
	}
}

func TestLoadQueryInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero top k", `{"top_k": 0, "query": "solar"}`},
		{"negative top k", `{"top_k": -2, "query": "solar"}`},
		{"missing query", `{"top_k": 2}`},
		{"null query", `{"top_k": 2, "query": null}`},
		{"not a document", `[1, 2`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadQuery(writeFile(t, "config.json", tc.body), 5)
			if !errors.Is(err, apperrors.ErrInvalidConfiguration) {
				t.Fatalf("err = %v; want ErrInvalidConfiguration", err)
			}
		})
	}
}

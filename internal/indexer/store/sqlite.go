package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

// SQLiteFile is the database file name used by New.
const SQLiteFile = "index.db"

const sqliteSchema = `
CREATE TABLE meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE documents (
	id      INTEGER PRIMARY KEY,
	name    TEXT NOT NULL,
	content TEXT NOT NULL
);
CREATE TABLE postings (
	term        TEXT NOT NULL,
	document_id INTEGER NOT NULL REFERENCES documents(id),
	filename    TEXT NOT NULL,
	tfidf       REAL NOT NULL,
	PRIMARY KEY (term, document_id)
);`

// SQLiteStore keeps a snapshot in a single SQLite database file. A save
// builds a fresh database next to the live one and renames it over it.
type SQLiteStore struct {
	path   string
	logger *slog.Logger
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{
		path:   path,
		logger: slog.Default().With("component", "sqlite-store"),
	}
}

func (s *SQLiteStore) Location() string { return s.path }

func (s *SQLiteStore) Save(ctx context.Context, snap *index.Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	tmpPath := s.path + ".tmp"
	os.Remove(tmpPath)

	if err := s.writeDB(ctx, tmpPath, snap); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming database: %w", err)
	}
	if err := syncDir(filepath.Dir(s.path)); err != nil {
		s.logger.Warn("syncing index directory failed", "path", s.path, "error", err)
	}
	s.logger.Info("index saved",
		"path", s.path,
		"build_id", snap.BuildID(),
		"terms", snap.TermCount(),
		"documents", snap.DocCount(),
	)
	return nil
}

func (s *SQLiteStore) writeDB(ctx context.Context, path string, snap *index.Snapshot) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	analyzer, err := json.Marshal(snap.Analyzer())
	if err != nil {
		return fmt.Errorf("marshaling analyzer: %w", err)
	}
	meta := map[string]string{
		"format_version": strconv.Itoa(FormatVersion),
		"build_id":       snap.BuildID(),
		"built_at":       snap.BuiltAt().Format(time.RFC3339Nano),
		"analyzer":       string(analyzer),
		"documents":      strconv.Itoa(snap.DocCount()),
		"terms":          strconv.Itoa(snap.TermCount()),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("inserting meta %s: %w", k, err)
		}
	}

	docStmt, err := tx.PrepareContext(ctx, `INSERT INTO documents (id, name, content) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing document insert: %w", err)
	}
	defer docStmt.Close()
	for _, id := range snap.DocumentIDs() {
		doc, _ := snap.Document(id)
		if _, err := docStmt.ExecContext(ctx, id, doc.DocumentName, doc.Content); err != nil {
			return fmt.Errorf("inserting document %d: %w", id, err)
		}
	}

	postStmt, err := tx.PrepareContext(ctx, `INSERT INTO postings (term, document_id, filename, tfidf) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing posting insert: %w", err)
	}
	defer postStmt.Close()
	for _, term := range snap.Terms() {
		postings, _ := snap.Postings(term)
		for _, p := range postings {
			if _, err := postStmt.ExecContext(ctx, term, p.DocumentID, p.Filename, p.TFIDF); err != nil {
				return fmt.Errorf("inserting posting %s/%d: %w", term, p.DocumentID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing index: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*index.Snapshot, error) {
	if _, err := os.Stat(s.path); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrCorruptIndex, err)
	}
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", apperrors.ErrCorruptIndex, err)
	}
	defer db.Close()

	meta, err := readMeta(ctx, db)
	if err != nil {
		return nil, err
	}
	if meta["format_version"] != strconv.Itoa(FormatVersion) {
		return nil, apperrors.Corruptf("unsupported format version %q", meta["format_version"])
	}
	builtAt, err := time.Parse(time.RFC3339Nano, meta["built_at"])
	if err != nil {
		return nil, apperrors.Corruptf("invalid built_at %q", meta["built_at"])
	}
	var analyzer tokenizer.Options
	if err := json.Unmarshal([]byte(meta["analyzer"]), &analyzer); err != nil {
		return nil, apperrors.Corruptf("invalid analyzer %q", meta["analyzer"])
	}

	content := make(index.ContentTable)
	rows, err := db.QueryContext(ctx, `SELECT id, name, content FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: reading documents: %w", apperrors.ErrCorruptIndex, err)
	}
	for rows.Next() {
		var id int
		var doc index.ContentEntry
		if err := rows.Scan(&id, &doc.DocumentName, &doc.Content); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: scanning document: %w", apperrors.ErrCorruptIndex, err)
		}
		content[id] = doc
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	postings := make(index.InvertedIndex)
	rows, err = db.QueryContext(ctx, `SELECT term, document_id, filename, tfidf FROM postings ORDER BY term, document_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: reading postings: %w", apperrors.ErrCorruptIndex, err)
	}
	for rows.Next() {
		var term string
		var p index.Posting
		if err := rows.Scan(&term, &p.DocumentID, &p.Filename, &p.TFIDF); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: scanning posting: %w", apperrors.ErrCorruptIndex, err)
		}
		postings[term] = append(postings[term], p)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	if strconv.Itoa(len(postings)) != meta["terms"] || strconv.Itoa(len(content)) != meta["documents"] {
		return nil, apperrors.Corruptf("meta expects %s terms / %s documents, found %d / %d",
			meta["terms"], meta["documents"], len(postings), len(content))
	}

	snap := index.NewSnapshot(meta["build_id"], builtAt, analyzer, postings, content)
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	s.logger.Info("index loaded",
		"path", s.path,
		"build_id", snap.BuildID(),
		"terms", snap.TermCount(),
		"documents", snap.DocCount(),
	)
	return snap, nil
}

func readMeta(ctx context.Context, db *sql.DB) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("%w: reading meta: %w", apperrors.ErrCorruptIndex, err)
	}
	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: scanning meta: %w", apperrors.ErrCorruptIndex, err)
		}
		meta[k] = v
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	return meta, nil
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	rows.Close()
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrCorruptIndex, err)
	}
	return nil
}

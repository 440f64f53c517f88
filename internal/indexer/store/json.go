package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

const (
	IndexFile    = "inverted_index.json"
	ContentFile  = "content.json"
	ManifestFile = "manifest.json"

	// CurrentFile names the build directory that Load serves. Replacing it
	// with one rename is what publishes a build.
	CurrentFile = "CURRENT"
	BuildsDir   = "builds"

	// keepBuilds bounds how many build directories survive a save, so a
	// Load that read CURRENT just before a swap still finds its files.
	keepBuilds = 3
)

// Manifest ties the two JSON artifacts of one build together. A reader that
// sees a manifest whose checksums do not match the artifacts next to it is
// looking at a damaged build.
type Manifest struct {
	FormatVersion int               `json:"format_version"`
	BuildID       string            `json:"build_id"`
	BuiltAt       time.Time         `json:"built_at"`
	Analyzer      tokenizer.Options `json:"analyzer"`
	Documents     int               `json:"documents"`
	Terms         int               `json:"terms"`
	IndexCRC32    uint32            `json:"index_crc32"`
	ContentCRC32  uint32            `json:"content_crc32"`
}

// JSONStore keeps each snapshot as inverted_index.json (term → postings),
// content.json (document id → name and text) and manifest.json in its own
// directory under builds/. CURRENT holds the name of the served build.
type JSONStore struct {
	dir    string
	logger *slog.Logger
}

func NewJSONStore(dir string) *JSONStore {
	return &JSONStore{
		dir:    dir,
		logger: slog.Default().With("component", "json-store"),
	}
}

func (s *JSONStore) Location() string { return s.dir }

// CurrentDir returns the directory of the build CURRENT points at.
func (s *JSONStore) CurrentDir() (string, error) {
	name, err := s.current()
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, BuildsDir, name), nil
}

func (s *JSONStore) current() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, CurrentFile))
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %w", apperrors.ErrCorruptIndex, CurrentFile, err)
	}
	name := strings.TrimSpace(string(data))
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return "", apperrors.Corruptf("%s names invalid build %q", CurrentFile, name)
	}
	return name, nil
}

func (s *JSONStore) Save(ctx context.Context, snap *index.Snapshot) error {
	postings := make(map[string]index.PostingList, snap.TermCount())
	for _, term := range snap.Terms() {
		postings[term], _ = snap.Postings(term)
	}
	indexData, err := encode(postings)
	if err != nil {
		return fmt.Errorf("marshaling inverted index: %w", err)
	}

	content := make(map[string]index.ContentEntry, snap.DocCount())
	for _, id := range snap.DocumentIDs() {
		content[strconv.Itoa(id)], _ = snap.Document(id)
	}
	contentData, err := encode(content)
	if err != nil {
		return fmt.Errorf("marshaling content table: %w", err)
	}

	manifest := Manifest{
		FormatVersion: FormatVersion,
		BuildID:       snap.BuildID(),
		BuiltAt:       snap.BuiltAt(),
		Analyzer:      snap.Analyzer(),
		Documents:     snap.DocCount(),
		Terms:         snap.TermCount(),
		IndexCRC32:    crc32.ChecksumIEEE(indexData),
		ContentCRC32:  crc32.ChecksumIEEE(contentData),
	}
	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}

	name := buildDirName(snap)
	buildDir := filepath.Join(s.dir, BuildsDir, name)
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return fmt.Errorf("creating build directory: %w", err)
	}
	files := []struct {
		name string
		data []byte
	}{
		{IndexFile, indexData},
		{ContentFile, contentData},
		{ManifestFile, manifestData},
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			os.RemoveAll(buildDir)
			return err
		}
		if err := writeFile(filepath.Join(buildDir, f.name), f.data); err != nil {
			os.RemoveAll(buildDir)
			return err
		}
	}
	if err := syncDir(buildDir); err != nil {
		s.logger.Warn("syncing build directory failed", "dir", buildDir, "error", err)
	}

	currentPath := filepath.Join(s.dir, CurrentFile)
	tmp, err := writeTemp(currentPath, []byte(name+"\n"))
	if err != nil {
		os.RemoveAll(buildDir)
		return err
	}
	if err := os.Rename(tmp, currentPath); err != nil {
		os.Remove(tmp)
		os.RemoveAll(buildDir)
		return fmt.Errorf("publishing build %s: %w", name, err)
	}
	if err := syncDir(s.dir); err != nil {
		s.logger.Warn("syncing index directory failed", "dir", s.dir, "error", err)
	}
	s.prune(name)

	s.logger.Info("index saved",
		"dir", buildDir,
		"build_id", manifest.BuildID,
		"terms", manifest.Terms,
		"documents", manifest.Documents,
		"index_bytes", len(indexData),
		"content_bytes", len(contentData),
	)
	return nil
}

// buildDirName sorts chronologically and stays unique when a build id is
// saved twice.
func buildDirName(snap *index.Snapshot) string {
	id := strings.Map(func(r rune) rune {
		if r == '/' || r == filepath.Separator || r == '.' {
			return '_'
		}
		return r
	}, snap.BuildID())
	return fmt.Sprintf("%020d-%s", time.Now().UnixNano(), id)
}

// prune removes all but the newest keepBuilds build directories, never
// touching the one just published. Failures only cost disk space.
func (s *JSONStore) prune(current string) {
	root := filepath.Join(s.dir, BuildsDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		s.logger.Warn("listing builds failed", "dir", root, "error", err)
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	for i, name := range names {
		if i < keepBuilds || name == current {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, name)); err != nil {
			s.logger.Warn("removing old build failed", "build", name, "error", err)
		}
	}
}

// Load reads the build CURRENT points at. If a concurrent Save moved
// CURRENT while the files were being read, the read is retried against the
// new build.
func (s *JSONStore) Load(ctx context.Context) (*index.Snapshot, error) {
	const attempts = 3
	var lastErr error
	for range attempts {
		name, err := s.current()
		if err != nil {
			return nil, err
		}
		snap, err := s.loadBuild(ctx, name)
		if err == nil {
			return snap, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, err
		}
		if now, cerr := s.current(); cerr != nil || now == name {
			return nil, err
		}
	}
	return nil, lastErr
}

func (s *JSONStore) loadBuild(ctx context.Context, name string) (*index.Snapshot, error) {
	dir := filepath.Join(s.dir, BuildsDir, name)
	manifestData, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("%w: reading manifest: %w", apperrors.ErrCorruptIndex, err)
	}
	var manifest Manifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return nil, fmt.Errorf("%w: parsing manifest: %w", apperrors.ErrCorruptIndex, err)
	}
	if manifest.FormatVersion != FormatVersion {
		return nil, apperrors.Corruptf("unsupported format version %d", manifest.FormatVersion)
	}

	indexData, err := readVerified(dir, IndexFile, manifest.IndexCRC32)
	if err != nil {
		return nil, err
	}
	contentData, err := readVerified(dir, ContentFile, manifest.ContentCRC32)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var postings map[string]index.PostingList
	if err := decode(indexData, &postings); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", apperrors.ErrCorruptIndex, IndexFile, err)
	}
	var rawContent map[string]index.ContentEntry
	if err := decode(contentData, &rawContent); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", apperrors.ErrCorruptIndex, ContentFile, err)
	}
	if postings == nil || rawContent == nil {
		return nil, apperrors.Corruptf("artifact is null")
	}
	content := make(index.ContentTable, len(rawContent))
	for key, entry := range rawContent {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, apperrors.Corruptf("content key %q is not a document id", key)
		}
		content[id] = entry
	}
	if len(postings) != manifest.Terms || len(content) != manifest.Documents {
		return nil, apperrors.Corruptf("manifest expects %d terms / %d documents, found %d / %d",
			manifest.Terms, manifest.Documents, len(postings), len(content))
	}

	snap := index.NewSnapshot(manifest.BuildID, manifest.BuiltAt, manifest.Analyzer, index.InvertedIndex(postings), content)
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	s.logger.Info("index loaded",
		"dir", dir,
		"build_id", snap.BuildID(),
		"terms", snap.TermCount(),
		"documents", snap.DocCount(),
	)
	return snap, nil
}

func readVerified(dir, name string, want uint32) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", apperrors.ErrCorruptIndex, name, err)
	}
	if got := crc32.ChecksumIEEE(data); got != want {
		return nil, apperrors.Corruptf("%s checksum %08x does not match manifest %08x", name, got, want)
	}
	return data, nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after document")
	}
	return nil
}

package extractor

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Source is one file of the corpus listing. Name is the display name: the
// filename with percent-escapes decoded.
type Source struct {
	Path     string
	Filename string
	Name     string
}

// ListCorpus reads dir once and returns its regular files ending in ext
// (case-insensitive; empty matches everything), sorted by filename. The
// returned slice is the single enumeration both index artifacts are built
// from.
func ListCorpus(dir, ext string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing corpus directory %s: %w", dir, err)
	}
	ext = strings.ToLower(ext)
	sources := make([]Source, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		filename := entry.Name()
		if ext != "" && !strings.HasSuffix(strings.ToLower(filename), ext) {
			continue
		}
		sources = append(sources, Source{
			Path:     filepath.Join(dir, filename),
			Filename: filename,
			Name:     DisplayName(filename),
		})
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Filename < sources[j].Filename })
	return sources, nil
}

// DisplayName percent-decodes a crawled filename, falling back to the raw
// name when it is not a valid escape sequence.
func DisplayName(filename string) string {
	name, err := url.PathUnescape(filename)
	if err != nil {
		return filename
	}
	return name
}

// Package extractor turns a directory of crawled HTML pages into the ordered
// document corpus the index is built from.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

// DefaultSelector picks paragraph elements only, which keeps navigation and
// other page chrome out of the corpus.
const DefaultSelector = "p"

// Document is one successfully extracted page. ID is its position among the
// extracted documents of a single corpus listing.
type Document struct {
	ID     int
	Name   string
	Source string
	Text   string
}

// Corpus is the ordered result of one extraction pass.
type Corpus struct {
	Documents []Document
	Failures  []*apperrors.ExtractionError
}

// Names returns the document names in id order.
func (c *Corpus) Names() []string {
	names := make([]string, len(c.Documents))
	for i, d := range c.Documents {
		names[i] = d.Name
	}
	return names
}

// Texts returns the extracted texts in id order.
func (c *Corpus) Texts() []string {
	texts := make([]string, len(c.Documents))
	for i, d := range c.Documents {
		texts[i] = d.Text
	}
	return texts
}

// ContentTable builds the preview table from the same pass that produced
// the texts handed to the weight builder.
func (c *Corpus) ContentTable() index.ContentTable {
	return index.NewContentTable(c.Names(), c.Texts())
}

// Options configures an Extractor.
type Options struct {
	Selector string
	Workers  int
}

// Extractor pulls narrative text out of HTML documents. It is safe for
// concurrent use.
type Extractor struct {
	selector string
	workers  int
	policy   *bluemonday.Policy
	logger   *slog.Logger
}

func New(opts Options) *Extractor {
	if opts.Selector == "" {
		opts.Selector = DefaultSelector
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	policy := bluemonday.StrictPolicy()
	policy.AddSpaceWhenStrippingTag(true)
	return &Extractor{
		selector: opts.Selector,
		workers:  opts.Workers,
		policy:   policy,
		logger:   slog.Default().With("component", "extractor"),
	}
}

// Extract returns the visible paragraph text of one HTML document, one
// paragraph per line. Invalid UTF-8 is replaced rather than rejected and
// malformed markup is recovered by the HTML5 parser.
func (e *Extractor) Extract(r io.Reader) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading document: %w", err)
	}
	raw = bytes.ToValidUTF8(raw, []byte("\uFFFD"))

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	var paragraphs []string
	var renderErr error
	doc.Find(e.selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		sel.Find("script, style, noscript, template").Remove()
		inner, err := sel.Html()
		if err != nil {
			renderErr = err
			return false
		}
		if text := e.clean(inner); text != "" {
			paragraphs = append(paragraphs, text)
		}
		return true
	})
	if renderErr != nil {
		return "", fmt.Errorf("rendering %s: %w", e.selector, renderErr)
	}
	return strings.Join(paragraphs, "\n"), nil
}

// clean strips markup from an HTML fragment, decodes entities and collapses
// runs of whitespace.
func (e *Extractor) clean(fragment string) string {
	stripped := e.policy.Sanitize(fragment)
	return strings.Join(strings.Fields(html.UnescapeString(stripped)), " ")
}

// ExtractFile extracts a single source.
func (e *Extractor) ExtractFile(src Source) (string, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return e.Extract(f)
}

// ExtractCorpus extracts every source concurrently and assigns document ids
// in listing order. A source that fails is skipped and reported in
// Corpus.Failures; the returned error is non-nil only when ctx ends first.
func (e *Extractor) ExtractCorpus(ctx context.Context, sources []Source) (*Corpus, error) {
	texts := make([]string, len(sources))
	errs := make([]error, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			texts[i], errs[i] = e.ExtractFile(src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	corpus := &Corpus{Documents: make([]Document, 0, len(sources))}
	for i, src := range sources {
		if errs[i] != nil {
			failure := &apperrors.ExtractionError{Source: src.Filename, Err: errs[i]}
			e.logger.Warn("skipping document", "file", src.Filename, "error", errs[i])
			corpus.Failures = append(corpus.Failures, failure)
			continue
		}
		corpus.Documents = append(corpus.Documents, Document{
			ID:     len(corpus.Documents),
			Name:   src.Name,
			Source: src.Path,
			Text:   texts[i],
		})
	}

	e.logger.Info("corpus extracted",
		"sources", len(sources),
		"documents", len(corpus.Documents),
		"failures", len(corpus.Failures),
	)
	return corpus, nil
}

package index

import (
	"math"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

// Snapshot is an immutable inverted index plus the content table derived
// from the same corpus enumeration. Nothing mutates a Snapshot after
// NewSnapshot returns, so any number of goroutines may read it. Slices
// returned by its methods are shared and must not be modified.
type Snapshot struct {
	buildID  string
	builtAt  time.Time
	analyzer tokenizer.Options
	index    InvertedIndex
	content  ContentTable
	terms    []string
	docIDs   []int
}

// NewSnapshot takes ownership of idx and content.
func NewSnapshot(buildID string, builtAt time.Time, analyzer tokenizer.Options, idx InvertedIndex, content ContentTable) *Snapshot {
	terms := make([]string, 0, len(idx))
	for term := range idx {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	docIDs := make([]int, 0, len(content))
	for id := range content {
		docIDs = append(docIDs, id)
	}
	sort.Ints(docIDs)
	return &Snapshot{
		buildID:  buildID,
		builtAt:  builtAt.UTC(),
		analyzer: analyzer,
		index:    idx,
		content:  content,
		terms:    terms,
		docIDs:   docIDs,
	}
}

func (s *Snapshot) BuildID() string             { return s.buildID }
func (s *Snapshot) BuiltAt() time.Time          { return s.builtAt }
func (s *Snapshot) Analyzer() tokenizer.Options { return s.analyzer }
func (s *Snapshot) TermCount() int              { return len(s.terms) }
func (s *Snapshot) DocCount() int               { return len(s.docIDs) }
func (s *Snapshot) Terms() []string             { return s.terms }
func (s *Snapshot) DocumentIDs() []int          { return s.docIDs }

// Postings returns the postings for term, ordered by document id.
func (s *Snapshot) Postings(term string) (PostingList, bool) {
	p, ok := s.index[term]
	return p, ok
}

// Document returns the content-table row for id.
func (s *Snapshot) Document(id int) (ContentEntry, bool) {
	e, ok := s.content[id]
	return e, ok
}

// Validate checks the invariants a loaded snapshot must satisfy and returns
// a CorruptIndex error describing the first violation.
func (s *Snapshot) Validate() error {
	for _, term := range s.terms {
		if term == "" {
			return apperrors.Corruptf("empty term key")
		}
		postings := s.index[term]
		if len(postings) == 0 {
			return apperrors.Corruptf("term %q has no postings", term)
		}
		prev := -1
		for _, p := range postings {
			if p.DocumentID <= prev {
				return apperrors.Corruptf("term %q: document ids not strictly ascending at %d", term, p.DocumentID)
			}
			prev = p.DocumentID
			if !(p.TFIDF > 0) || math.IsInf(p.TFIDF, 0) {
				return apperrors.Corruptf("term %q document %d: invalid score %v", term, p.DocumentID, p.TFIDF)
			}
			doc, ok := s.content[p.DocumentID]
			if !ok {
				return apperrors.Corruptf("term %q references unknown document %d", term, p.DocumentID)
			}
			if doc.DocumentName != p.Filename {
				return apperrors.Corruptf("document %d named %q in postings but %q in content table", p.DocumentID, p.Filename, doc.DocumentName)
			}
		}
	}
	for _, id := range s.docIDs {
		if id < 0 {
			return apperrors.Corruptf("negative document id %d", id)
		}
	}
	return nil
}

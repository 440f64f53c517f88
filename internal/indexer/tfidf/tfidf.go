// Package tfidf builds the corpus vocabulary and the sparse TF-IDF weight
// matrix.
//
// For n documents, a term t with raw count tf(t,d) in document d and
// document frequency df(t):
//
//	idf(t)   = ln((1 + n) / (1 + df(t))) + 1
//	w(t,d)   = tf(t,d) * idf(t)
//
// and every document row is then scaled to unit L2 norm. A weight is
// stored only when tf(t,d) > 0, so every stored weight is strictly positive.
package tfidf

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
)

// Vocabulary is the ordered set of terms seen in the corpus. Column
// positions are internal to the weight matrix and are not persisted.
type Vocabulary struct {
	terms  []string
	column map[string]int
}

func newVocabulary(seen map[string]struct{}) *Vocabulary {
	terms := make([]string, 0, len(seen))
	for term := range seen {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	column := make(map[string]int, len(terms))
	for i, term := range terms {
		column[term] = i
	}
	return &Vocabulary{terms: terms, column: column}
}

// Len returns the number of terms.
func (v *Vocabulary) Len() int { return len(v.terms) }

// Term returns the term at column i.
func (v *Vocabulary) Term(i int) string { return v.terms[i] }

// Column returns the column of term and whether it exists.
func (v *Vocabulary) Column(term string) (int, bool) {
	i, ok := v.column[term]
	return i, ok
}

// Terms returns a copy of the sorted term list.
func (v *Vocabulary) Terms() []string {
	out := make([]string, len(v.terms))
	copy(out, v.terms)
	return out
}

// Entry is one nonzero cell of a document row.
type Entry struct {
	Column int
	Weight float64
}

// Matrix is the sparse document × term weight table. Rows[i] belongs to
// document id i and is sorted by column.
type Matrix struct {
	Vocabulary *Vocabulary
	IDF        []float64
	Rows       [][]Entry
}

// Weight returns the weight of term in document doc, or 0.
func (m *Matrix) Weight(doc int, term string) float64 {
	col, ok := m.Vocabulary.Column(term)
	if !ok || doc < 0 || doc >= len(m.Rows) {
		return 0
	}
	row := m.Rows[doc]
	i := sort.Search(len(row), func(i int) bool { return row[i].Column >= col })
	if i < len(row) && row[i].Column == col {
		return row[i].Weight
	}
	return 0
}

// IDF computes the smoothed inverse document frequency used by Build.
func IDF(docs, docFreq int) float64 {
	return math.Log(float64(1+docs)/float64(1+docFreq)) + 1
}

// Build tokenizes every text with tok and returns the weight matrix. texts
// are in document-id order.
func Build(texts []string, tok *tokenizer.Tokenizer) *Matrix {
	counts := make([]map[string]int, len(texts))
	seen := make(map[string]struct{})
	for i, text := range texts {
		tf := make(map[string]int)
		for _, term := range tok.Terms(text) {
			tf[term]++
			seen[term] = struct{}{}
		}
		counts[i] = tf
	}

	vocab := newVocabulary(seen)
	df := make([]int, vocab.Len())
	for _, tf := range counts {
		for term := range tf {
			col, _ := vocab.Column(term)
			df[col]++
		}
	}
	idf := make([]float64, vocab.Len())
	for col := range idf {
		idf[col] = IDF(len(texts), df[col])
	}

	rows := make([][]Entry, len(texts))
	for doc, tf := range counts {
		row := make([]Entry, 0, len(tf))
		for term, n := range tf {
			col, _ := vocab.Column(term)
			row = append(row, Entry{Column: col, Weight: float64(n) * idf[col]})
		}
		sort.Slice(row, func(i, j int) bool { return row[i].Column < row[j].Column })
		normalize(row)
		rows[doc] = row
	}

	return &Matrix{Vocabulary: vocab, IDF: idf, Rows: rows}
}

// normalize scales row to unit L2 norm, summing in column order.
func normalize(row []Entry) {
	var sum float64
	for _, e := range row {
		sum += e.Weight * e.Weight
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range row {
		row[i].Weight /= norm
	}
}

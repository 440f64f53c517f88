package index

import (
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tfidf"
)

// Build turns the weight matrix into term-keyed postings. names[i] is the
// display name of document i. Documents are visited in ascending id order,
// so each postings list comes out sorted by document id.
func Build(m *tfidf.Matrix, names []string) InvertedIndex {
	idx := make(InvertedIndex, m.Vocabulary.Len())
	for docID, row := range m.Rows {
		for _, e := range row {
			if e.Weight <= 0 {
				continue
			}
			term := m.Vocabulary.Term(e.Column)
			idx[term] = append(idx[term], Posting{
				DocumentID: docID,
				Filename:   names[docID],
				TFIDF:      e.Weight,
			})
		}
	}
	return idx
}

// NewContentTable pairs names and texts by position.
func NewContentTable(names, texts []string) ContentTable {
	table := make(ContentTable, len(names))
	for i := range names {
		table[i] = ContentEntry{DocumentName: names[i], Content: texts[i]}
	}
	return table
}

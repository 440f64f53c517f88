package ranker

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
)

type ScoredDoc struct {
	DocumentID   int     `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Score        float64 `json:"score"`
}

// aggregate sums the postings scores per document and returns every
// matched document ordered by score descending, then document id
// ascending. One postings list is passed per query term occurrence, so a
// repeated term counts once per occurrence.
func aggregate(postingsPerTerm []index.PostingList) []ScoredDoc {
	position := make(map[int]int)
	result := make([]ScoredDoc, 0)
	for _, postings := range postingsPerTerm {
		for _, p := range postings {
			i, ok := position[p.DocumentID]
			if !ok {
				i = len(result)
				position[p.DocumentID] = i
				result = append(result, ScoredDoc{DocumentID: p.DocumentID, DocumentName: p.Filename})
			}
			result[i].Score += p.TFIDF
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].DocumentID < result[j].DocumentID
	})
	return result
}

// truncate keeps the first limit results. A limit below one keeps all.
func truncate(docs []ScoredDoc, limit int) []ScoredDoc {
	if limit > 0 && len(docs) > limit {
		return docs[:limit]
	}
	return docs
}

// Rank returns the best limit documents for the given postings and the
// number of documents matched before truncation.
func Rank(postingsPerTerm []index.PostingList, limit int) ([]ScoredDoc, int) {
	all := aggregate(postingsPerTerm)
	return truncate(all, limit), len(all)
}

package tokenizer

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
	"been": {}, "being": {}, "these": {}, "those": {}, "i": {},
	"me": {}, "my": {}, "we": {}, "our": {}, "you": {}, "your": {},
	"him": {}, "his": {}, "she": {}, "her": {}, "them": {},
	"does": {}, "did": {}, "than": {}, "then": {}, "there": {},
	"here": {}, "into": {}, "about": {}, "also": {}, "such": {},
	"would": {}, "could": {}, "should": {}, "may": {}, "might": {},
	"must": {}, "other": {}, "some": {}, "any": {}, "all": {},
	"more": {}, "most": {}, "only": {}, "very": {}, "over": {},
}

// Stopwords is a fixed stopword set. When stemming is enabled the set also
// contains the stemmed form of every entry, so a query token filtered after
// normalisation is still recognised.
type Stopwords struct {
	words map[string]struct{}
}

// NewStopwords returns the default English stopword set normalised by t.
func NewStopwords(t *Tokenizer) *Stopwords {
	words := make(map[string]struct{}, len(stopWords)*2)
	for w := range stopWords {
		words[w] = struct{}{}
		if n := t.Normalize(w); n != "" {
			words[n] = struct{}{}
		}
	}
	return &Stopwords{words: words}
}

// Contains reports whether term is a stopword.
func (s *Stopwords) Contains(term string) bool {
	_, ok := s.words[term]
	return ok
}

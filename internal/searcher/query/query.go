// Package query turns a raw query string into the index terms to look up.
// The stages run in a fixed order, each deciding per token with no
// backtracking:
//
//	tokenize -> correct -> drop stopwords
package query

import (
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/fuzzy"
)

// Correction records one token the fuzzy stage replaced.
type Correction struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Plan is the output of every stage for one query.
type Plan struct {
	Raw         string
	Tokens      []string
	Corrected   []string
	Terms       []string
	Corrections []Correction
}

// Empty reports whether nothing is left to look up.
func (p *Plan) Empty() bool { return len(p.Terms) == 0 }

type Pipeline struct {
	tokenizer *tokenizer.Tokenizer
	corrector *fuzzy.Corrector
	stopwords *tokenizer.Stopwords
}

// NewPipeline wires the stages. A nil corrector disables fuzzy correction.
// tok must be configured with the analyzer the index was built with.
func NewPipeline(tok *tokenizer.Tokenizer, corrector *fuzzy.Corrector) *Pipeline {
	return &Pipeline{
		tokenizer: tok,
		corrector: corrector,
		stopwords: tokenizer.NewStopwords(tok),
	}
}

func (p *Pipeline) Analyze(raw string) *Plan {
	plan := &Plan{Raw: raw}
	plan.Tokens = p.tokenizer.Terms(raw)
	plan.Corrected, plan.Corrections = p.correct(plan.Tokens)
	plan.Terms = p.filter(plan.Corrected)
	return plan
}

func (p *Pipeline) correct(tokens []string) ([]string, []Correction) {
	out := make([]string, len(tokens))
	var corrections []Correction
	for i, tok := range tokens {
		out[i] = tok
		if p.corrector == nil {
			continue
		}
		if fixed, changed := p.corrector.Correct(tok); changed {
			out[i] = fixed
			corrections = append(corrections, Correction{From: tok, To: fixed})
		}
	}
	return out, corrections
}

func (p *Pipeline) filter(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if p.stopwords.Contains(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Package tokenizer provides text tokenisation for the search engine.
// It lower-cases input, splits on non-alphanumeric boundaries, drops
// single-rune fragments, and optionally applies the English snowball
// stemmer. The same Tokenizer value must be used to build an index and to
// query it.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kljensen/snowball/english"
)

// MinTermLength is the shortest token kept, in runes.
const MinTermLength = 2

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Options are the analyzer settings persisted alongside an index.
type Options struct {
	Stemming bool `json:"stemming"`
}

// Tokenizer splits text into terms according to Options.
type Tokenizer struct {
	opts Options
}

// New returns a Tokenizer for opts.
func New(opts Options) *Tokenizer {
	return &Tokenizer{opts: opts}
}

// Options returns the analyzer settings this tokenizer applies.
func (t *Tokenizer) Options() Options {
	return t.opts
}

// Tokenize breaks text into a slice of lowercased, optionally stemmed Tokens.
// Stopwords are kept.
func (t *Tokenizer) Tokenize(text string) []Token {
	words := split(text)
	tokens := make([]Token, 0, len(words))
	for _, word := range words {
		term := t.Normalize(word)
		if term == "" {
			continue
		}
		tokens = append(tokens, Token{
			Term:     term,
			Position: len(tokens),
		})
	}
	return tokens
}

// Terms is Tokenize without positions.
func (t *Tokenizer) Terms(text string) []string {
	tokens := t.Tokenize(text)
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	return terms
}

// Normalize maps one already-split word to its index term, or "" if the
// word is too short to be indexed.
func (t *Tokenizer) Normalize(word string) string {
	word = strings.ToLower(word)
	if utf8.RuneCountInString(word) < MinTermLength {
		return ""
	}
	if t.opts.Stemming {
		word = english.Stem(word, false)
		if utf8.RuneCountInString(word) < MinTermLength {
			return ""
		}
	}
	return word
}

func split(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

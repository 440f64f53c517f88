// Package fuzzy corrects misspelled query tokens against the index
// vocabulary using normalised Levenshtein similarity.
package fuzzy

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// DefaultThreshold is the minimum similarity, on a 0-100 scale, a
// vocabulary term needs to replace a query token.
const DefaultThreshold = 80.0

// Similarity returns 100 * (1 - distance / longer length), measured in
// runes after lowercasing both strings. Two empty strings are identical.
func Similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return 100
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	return 100 * (1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest))
}

// Corrector maps query tokens onto the closest vocabulary term.
type Corrector struct {
	vocab     []string
	threshold float64
}

// NewCorrector takes the vocabulary in ascending order, as returned by
// index.Snapshot.Terms. The slice is not copied and must not change.
func NewCorrector(vocab []string, threshold float64) *Corrector {
	return &Corrector{vocab: vocab, threshold: threshold}
}

func (c *Corrector) Threshold() float64 { return c.threshold }

// Correct returns the replacement for token and whether it differs from
// token. A token already in the vocabulary is never altered. Otherwise the
// most similar term wins, ties going to the lexicographically smaller one,
// and it replaces the token only if its similarity reaches the threshold.
func (c *Corrector) Correct(token string) (string, bool) {
	token = strings.ToLower(token)
	if c.contains(token) || token == "" {
		return token, false
	}

	tokenLen := utf8.RuneCountInString(token)
	best, bestScore := "", -1.0
	for _, term := range c.vocab {
		termLen := utf8.RuneCountInString(term)
		// The distance is at least the length difference, which bounds the
		// similarity from above without running the full computation.
		longest := max(tokenLen, termLen)
		bound := 100 * (1 - float64(abs(tokenLen-termLen))/float64(longest))
		if bound < c.threshold || bound <= bestScore {
			continue
		}
		if score := Similarity(token, term); score > bestScore {
			best, bestScore = term, score
		}
	}
	if bestScore < c.threshold || best == "" {
		return token, false
	}
	return best, true
}

func (c *Corrector) contains(token string) bool {
	i := sort.SearchStrings(c.vocab, token)
	return i < len(c.vocab) && c.vocab[i] == token
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

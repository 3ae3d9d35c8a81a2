package ngram

import (
	"bytes"
	"strings"
)

// Score sums the log-probability of every window of Order() characters in
// text, substituting the unseen penalty for n-grams the model has never seen.
// Higher scores indicate more language-like text.
func (m *Model) Score(text string) float64 {
	var score float64
	for i := 0; i+m.order <= len(text); i++ {
		gram := text[i : i+m.order]
		if m.spaceAware && strings.IndexByte(gram, ' ') >= 0 {
			continue
		}
		if p, ok := m.logp[gram]; ok {
			score += p
		} else {
			score += m.penalty
		}
	}
	return score
}

// ScoreBytes is Score for a byte slice. It does not allocate.
func (m *Model) ScoreBytes(text []byte) float64 {
	var score float64
	for i := 0; i+m.order <= len(text); i++ {
		gram := text[i : i+m.order]
		if m.spaceAware && bytes.IndexByte(gram, ' ') >= 0 {
			continue
		}
		if p, ok := m.logp[string(gram)]; ok {
			score += p
		} else {
			score += m.penalty
		}
	}
	return score
}

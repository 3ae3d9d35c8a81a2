package ngram

import (
	"math"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	modelTrainings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subsolve_model_trainings_total",
		Help: "Number of n-gram models trained",
	})
	modelGrams = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "subsolve_model_grams",
		Help:    "Distinct n-grams in each trained model",
		Buckets: prometheus.ExponentialBuckets(16, 4, 8),
	})
)

// Clean removes every character that is not an ASCII letter, digit or space
// and converts the rest to upper case.
func Clean(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c >= 'a' && c <= 'z':
			sb.WriteByte(c - 'a' + 'A')
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == ' ':
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// Train counts every window of order characters in the cleaned corpus,
// skipping windows that contain a space, and converts the counts to
// log10(count/total).
//
// A corpus shorter than order yields an empty model: every lookup falls back
// to the unseen penalty. Only an invalid order or option is an error.
func Train(corpus string, order int, opts ...Option) (*Model, error) {
	m, err := newModel(order, opts)
	if err != nil {
		return nil, err
	}

	text := Clean(corpus)
	counts := make(map[string]int)
	for i := 0; i+order <= len(text); i++ {
		gram := text[i : i+order]
		if strings.IndexByte(gram, ' ') >= 0 {
			continue
		}
		counts[gram]++
		m.total++
	}

	total := float64(m.total)
	for gram, n := range counts {
		m.logp[gram] = math.Log10(float64(n) / total)
	}

	modelTrainings.Inc()
	modelGrams.Observe(float64(len(m.logp)))
	return m, nil
}

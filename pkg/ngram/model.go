// Package ngram builds n-gram log-probability language models from a corpus
// and scores candidate plaintexts against them.
//
// A Model is immutable once built and may be shared by any number of
// concurrent scorers.
package ngram

import (
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"math"

	"crosswarped.com/subsolve/pkg/primitives"
)

// DefaultUnseenPenalty is added to a score for every n-gram absent from the
// model.
const DefaultUnseenPenalty = -10.0

// Model maps n-grams of a fixed order to their base-10 log-probability.
type Model struct {
	order      int
	total      int
	logp       map[string]float64
	penalty    float64
	spaceAware bool
}

// Option configures a Model.
type Option func(*Model)

// WithUnseenPenalty sets the value scored for an n-gram absent from the
// model. It must be finite and not positive.
func WithUnseenPenalty(p float64) Option {
	return func(m *Model) {
		m.penalty = p
	}
}

// WithSpaceAwareScoring makes the scorer skip windows that contain a space,
// the same rule training applies. By default every window is scored and a
// window spanning a space receives the unseen penalty.
func WithSpaceAwareScoring() Option {
	return func(m *Model) {
		m.spaceAware = true
	}
}

func newModel(order int, opts []Option) (*Model, error) {
	if order < 1 {
		return nil, &primitives.ConfigError{Field: "order", Reason: fmt.Sprintf("must be at least 1, got %d", order)}
	}
	m := &Model{
		order:   order,
		logp:    make(map[string]float64),
		penalty: DefaultUnseenPenalty,
	}
	for _, opt := range opts {
		opt(m)
	}
	if math.IsNaN(m.penalty) || math.IsInf(m.penalty, 0) || m.penalty > 0 {
		return nil, &primitives.ConfigError{Field: "penalty", Reason: fmt.Sprintf("must be finite and not positive, got %v", m.penalty)}
	}
	return m, nil
}

// Order returns the n-gram length of the model.
func (m *Model) Order() int {
	return m.order
}

// Len returns the number of distinct n-grams in the model.
func (m *Model) Len() int {
	return len(m.logp)
}

// Total returns the number of n-gram windows counted during training.
func (m *Model) Total() int {
	return m.total
}

// Penalty returns the score of an unseen n-gram.
func (m *Model) Penalty() float64 {
	return m.penalty
}

// SpaceAware reports whether the scorer skips windows containing a space.
func (m *Model) SpaceAware() bool {
	return m.spaceAware
}

// LogProb returns the log-probability of gram and whether it was seen in
// training.
func (m *Model) LogProb(gram string) (float64, bool) {
	p, ok := m.logp[gram]
	return p, ok
}

// Lookup returns the log-probability of gram, or the unseen penalty.
func (m *Model) Lookup(gram string) float64 {
	if p, ok := m.logp[gram]; ok {
		return p
	}
	return m.penalty
}

// Grams iterates over every trained n-gram and its log-probability, in no
// particular order.
func (m *Model) Grams() iter.Seq2[string, float64] {
	return maps.All(m.logp)
}

type modelJSON struct {
	Order      int                `json:"order"`
	Total      int                `json:"total"`
	Penalty    float64            `json:"penalty"`
	SpaceAware bool               `json:"spaceAware,omitempty"`
	LogProb    map[string]float64 `json:"logProb"`
}

func (m *Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(modelJSON{
		Order:      m.order,
		Total:      m.total,
		Penalty:    m.penalty,
		SpaceAware: m.spaceAware,
		LogProb:    m.logp,
	})
}

func (m *Model) UnmarshalJSON(data []byte) error {
	var raw modelJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	opts := []Option{WithUnseenPenalty(raw.Penalty)}
	if raw.SpaceAware {
		opts = append(opts, WithSpaceAwareScoring())
	}
	loaded, err := newModel(raw.Order, opts)
	if err != nil {
		return fmt.Errorf("decode model: %w", err)
	}
	for gram := range raw.LogProb {
		if len(gram) != raw.Order {
			return fmt.Errorf("decode model: n-gram %q does not have order %d", gram, raw.Order)
		}
	}
	if raw.LogProb != nil {
		loaded.logp = raw.LogProb
	}
	loaded.total = raw.Total
	*m = *loaded
	return nil
}

package subsolve

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosswarped.com/subsolve/internal/corpus"
	"crosswarped.com/subsolve/pkg/ngram"
	"crosswarped.com/subsolve/pkg/primitives"
)

const testPlaintext = "THIS IS THE MOST IMPORTANT TESTING METHOD IN THIS PROGRAM MAYBE IT WILL MAKE MORE SENSE IF I ADD MORE WORDS TO THIS THING"

const testKey = "QAZWSXEDCRFVTGBYHNUJMIKOLP"

func loadModel(t testing.TB, order int) *ngram.Model {
	text, err := corpus.LoadFile(context.Background(), "testdata/corpus.txt")
	if err != nil {
		t.Fatalf("failed to read corpus: %v", err)
	}
	m, err := ngram.Train(text, order)
	if err != nil {
		t.Fatalf("failed to train model: %v", err)
	}
	return m
}

func encrypt(t testing.TB, plaintext, key string) string {
	k, err := primitives.ParseKey(key)
	require.NoError(t, err)
	ct, err := primitives.Encode(plaintext, k)
	require.NoError(t, err)
	return ct
}

func TestCreateSolver_Preconditions(t *testing.T) {
	model := loadModel(t, 2)
	valid := SolverParams{Restarts: 1, StallLimit: 10}

	tests := []struct {
		name       string
		ciphertext string
		model      *ngram.Model
		mutate     func(*SolverParams)
		wantField  string
		wantSymbol rune
	}{
		{name: "nil model", ciphertext: "ABC", model: nil, wantField: "model"},
		{name: "zero restarts", ciphertext: "ABC", model: model, mutate: func(p *SolverParams) { p.Restarts = 0 }, wantField: "restarts"},
		{name: "zero stall limit", ciphertext: "ABC", model: model, mutate: func(p *SolverParams) { p.StallLimit = 0 }, wantField: "stall limit"},
		{name: "negative budget", ciphertext: "ABC", model: model, mutate: func(p *SolverParams) { p.MaxIterations = -1 }, wantField: "max iterations"},
		{name: "negative timeout", ciphertext: "ABC", model: model, mutate: func(p *SolverParams) { p.RestartTimeout = -time.Second }, wantField: "restart timeout"},
		{name: "order mismatch", ciphertext: "ABC", model: model, mutate: func(p *SolverParams) { p.Order = 3 }, wantField: "order"},
		{name: "unknown symbol", ciphertext: "AB1C", model: model, wantSymbol: '1'},
		{name: "lower case", ciphertext: "ABc", model: model, wantSymbol: 'c'},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := valid
			if tt.mutate != nil {
				tt.mutate(&params)
			}
			s, err := CreateSolver(tt.ciphertext, tt.model, params)
			assert.Nil(t, s)
			require.Error(t, err)

			if tt.wantField != "" {
				var cfgErr *primitives.ConfigError
				require.True(t, errors.As(err, &cfgErr), "got %v", err)
				assert.Equal(t, tt.wantField, cfgErr.Field)
			} else {
				var symErr *primitives.UnknownSymbolError
				require.True(t, errors.As(err, &symErr), "got %v", err)
				assert.Equal(t, tt.wantSymbol, symErr.Symbol)
			}
		})
	}
}

func TestDefaultSolverParams(t *testing.T) {
	p := DefaultSolverParams()
	assert.Equal(t, 11, p.Restarts)
	assert.Equal(t, 100000, p.StallLimit)
}

func TestResults_OnePerRestartInOrder(t *testing.T) {
	model := loadModel(t, 2)
	s, err := CreateSolver(encrypt(t, testPlaintext, testKey), model, SolverParams{
		Restarts:   4,
		StallLimit: 200,
		Seed:       42,
	})
	require.NoError(t, err)

	var restarts []int
	for r := range s.Results(t.Context()) {
		restarts = append(restarts, r.Restart)
		assert.NoError(t, r.Key.Validate())
		assert.Equal(t, StopStalled, r.Stop)

		decoded, err := primitives.Decode(encrypt(t, testPlaintext, testKey), r.Key)
		require.NoError(t, err)
		assert.Equal(t, decoded, r.Plaintext)
		assert.InDelta(t, model.Score(r.Plaintext), r.Score, 1e-9)
	}
	assert.Equal(t, []int{0, 1, 2, 3}, restarts)
}

func TestResults_Reproducible(t *testing.T) {
	model := loadModel(t, 3)
	ct := encrypt(t, testPlaintext, testKey)
	params := SolverParams{Restarts: 3, StallLimit: 500, Seed: 7}

	run := func() []Result {
		s, err := CreateSolver(ct, model, params)
		require.NoError(t, err)
		return slices.Collect(s.Results(t.Context()))
	}

	first := run()
	second := run()
	require.Len(t, first, 3)
	assert.Equal(t, first, second)

	// A single restart can be reproduced on its own.
	s, err := CreateSolver(ct, model, params)
	require.NoError(t, err)
	assert.Equal(t, first[2], s.Restart(t.Context(), 2))

	// Iterating the same sequence again repeats it.
	assert.Equal(t, first, slices.Collect(s.Results(t.Context())))
}

func TestResults_DifferentSeedsDiffer(t *testing.T) {
	model := loadModel(t, 3)
	ct := encrypt(t, testPlaintext, testKey)

	var results []Result
	for _, seed := range []uint64{1, 2} {
		s, err := CreateSolver(ct, model, SolverParams{Restarts: 1, StallLimit: 300, Seed: seed})
		require.NoError(t, err)
		results = append(results, s.Restart(t.Context(), 0))
	}
	assert.NotEqual(t, results[0], results[1])
}

func TestRestart_HillClimbInvariants(t *testing.T) {
	model := loadModel(t, 3)
	const stallLimit = 250

	var steps []Step
	s, err := CreateSolver(encrypt(t, testPlaintext, testKey), model, SolverParams{
		Restarts:   1,
		StallLimit: stallLimit,
		Seed:       99,
		Observer: func(st Step) {
			steps = append(steps, st)
		},
	})
	require.NoError(t, err)

	r := s.Restart(t.Context(), 0)
	require.NotEmpty(t, steps)
	assert.Equal(t, len(steps), r.Iterations)

	initial, err := primitives.Decode(encrypt(t, testPlaintext, testKey), primitives.IdentityKey())
	require.NoError(t, err)
	prev := model.Score(initial)
	stall, accepts := 0, 0
	for _, st := range steps {
		require.NoError(t, st.Key.Validate())
		if st.Accepted {
			assert.Greater(t, st.Score, prev, "accepted steps strictly improve")
			assert.Equal(t, st.Candidate, st.Score)
			stall = 0
			accepts++
		} else {
			assert.Equal(t, prev, st.Score, "rejected steps keep the score")
			assert.LessOrEqual(t, st.Candidate, prev)
			stall++
		}
		assert.Equal(t, stall, st.Stall)
		assert.LessOrEqual(t, st.Stall, stallLimit)
		prev = st.Score
	}

	assert.Equal(t, stallLimit, stall, "restart ends exactly at the stall limit")
	assert.Equal(t, accepts, r.Accepts)
	assert.Equal(t, prev, r.Score)
	assert.Equal(t, StopStalled, r.Stop)
}

func TestRestart_IterationBudget(t *testing.T) {
	model := loadModel(t, 2)
	s, err := CreateSolver(encrypt(t, testPlaintext, testKey), model, SolverParams{
		Restarts:      1,
		StallLimit:    DefaultStallLimit,
		MaxIterations: 150,
	})
	require.NoError(t, err)

	r := s.Restart(t.Context(), 0)
	assert.Equal(t, StopBudget, r.Stop)
	assert.Equal(t, 150, r.Iterations)
	assert.NoError(t, r.Key.Validate())
}

func TestRestart_Deadline(t *testing.T) {
	model := loadModel(t, 2)
	s, err := CreateSolver(encrypt(t, testPlaintext, testKey), model, SolverParams{
		Restarts:       1,
		StallLimit:     1 << 30,
		RestartTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	r := s.Restart(t.Context(), 0)
	assert.Equal(t, StopDeadline, r.Stop)
	assert.Positive(t, r.Iterations)
	assert.InDelta(t, model.Score(r.Plaintext), r.Score, 1e-9)
}

func TestResults_CancellationYieldsPartialResult(t *testing.T) {
	model := loadModel(t, 2)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	s, err := CreateSolver(encrypt(t, testPlaintext, testKey), model, SolverParams{
		Restarts:   5,
		StallLimit: 1 << 30,
		Observer: func(st Step) {
			if st.Iteration == 1000 {
				cancel()
			}
		},
	})
	require.NoError(t, err)

	results := slices.Collect(s.Results(ctx))
	require.Len(t, results, 1)
	assert.Equal(t, StopCancelled, results[0].Stop)
	assert.Equal(t, 1000, results[0].Iterations)
	assert.NoError(t, results[0].Key.Validate())
}

func TestResults_CancelledBeforeStart(t *testing.T) {
	model := loadModel(t, 2)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	s, err := CreateSolver("ABC", model, SolverParams{Restarts: 3, StallLimit: 10})
	require.NoError(t, err)
	assert.Empty(t, slices.Collect(s.Results(ctx)))
}

func TestRunParallel_MatchesSequential(t *testing.T) {
	model := loadModel(t, 3)
	ct := encrypt(t, testPlaintext, testKey)
	params := SolverParams{Restarts: 6, StallLimit: 400, Seed: 2024, Parallelism: 3}

	s, err := CreateSolver(ct, model, params)
	require.NoError(t, err)

	parallel, err := s.RunParallel(t.Context())
	require.NoError(t, err)
	sequential := slices.Collect(s.Results(t.Context()))

	assert.Equal(t, sequential, parallel)
}

func TestRunParallel_Cancelled(t *testing.T) {
	model := loadModel(t, 2)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	s, err := CreateSolver("ABC", model, SolverParams{Restarts: 3, StallLimit: 10})
	require.NoError(t, err)

	results, err := s.RunParallel(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestBest(t *testing.T) {
	_, ok := Best(nil)
	assert.False(t, ok)

	best, ok := Best([]Result{
		{Restart: 0, Score: -50},
		{Restart: 1, Score: -20},
		{Restart: 2, Score: -20},
		{Restart: 3, Score: -70},
	})
	require.True(t, ok)
	assert.Equal(t, 1, best.Restart)
}

// TestSolve_RecoversPlaintext checks that the search usually finds the
// plaintext. Hill climbing can get stuck, so only a majority of the seeded
// trials has to succeed.
func TestSolve_RecoversPlaintext(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping slow search in short mode")
	}
	model := loadModel(t, 3)
	ct := encrypt(t, testPlaintext, testKey)

	seeds := []uint64{1, 2, 3}
	solved := 0
	for _, seed := range seeds {
		s, err := CreateSolver(ct, model, SolverParams{
			Restarts:   12,
			StallLimit: 20000,
			Seed:       seed,
		})
		require.NoError(t, err)

		results, err := s.RunParallel(t.Context())
		require.NoError(t, err)
		if slices.ContainsFunc(results, func(r Result) bool { return r.Plaintext == testPlaintext }) {
			solved++
		}
	}

	if solved*2 <= len(seeds) {
		t.Errorf("recovered the plaintext in %d of %d trials", solved, len(seeds))
	}
}

func BenchmarkRestart(b *testing.B) {
	model := loadModel(b, 3)
	s, err := CreateSolver(encrypt(b, testPlaintext, testKey), model, SolverParams{
		Restarts:   1,
		StallLimit: 2000,
		Seed:       42,
	})
	require.NoError(b, err)
	b.ReportAllocs()

	for b.Loop() {
		s.Restart(b.Context(), 0)
	}
}

func TestResult_JSON(t *testing.T) {
	want := Result{
		Restart:    4,
		Key:        primitives.IdentityKey().Reverse(),
		Plaintext:  "GSV XZG",
		Score:      -17.25,
		Iterations: 812,
		Accepts:    9,
		Stop:       StopDeadline,
	}
	data, err := json.Marshal(want)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"stop":"deadline"`)
	assert.Contains(t, string(data), `"key":"ZYXWVUTSRQPONMLKJIHGFEDCBA"`)

	var got Result
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, want, got)

	assert.Error(t, json.Unmarshal([]byte(`{"stop":"bored"}`), &got))
}

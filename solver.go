// Package subsolve recovers the key of a monoalphabetic substitution cipher
// by hill climbing over key permutations, guided by an n-gram language model.
package subsolve

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"crosswarped.com/subsolve/pkg/ngram"
	"crosswarped.com/subsolve/pkg/primitives"
)

const (
	DefaultRestarts   = 11
	DefaultStallLimit = 100000
)

// Step describes one proposal of the hill climber. It is passed to
// SolverParams.Observer after the proposal is accepted or rejected.
type Step struct {
	Restart   int
	Iteration int
	Key       primitives.Key
	Candidate float64
	Score     float64
	Accepted  bool
	Stall     int
}

type SolverParams struct {
	// Order must match the model's order when set.
	Order int
	// Restarts is the number of independent climbs from the identity key.
	Restarts int
	// StallLimit is the number of consecutive rejected proposals that ends a
	// restart.
	StallLimit int
	// MaxIterations caps the proposals of one restart. Zero means no cap.
	MaxIterations int
	// RestartTimeout caps the wall-clock time of one restart. Zero means no
	// deadline.
	RestartTimeout time.Duration
	// Parallelism bounds the restarts RunParallel runs at once. Zero means
	// runtime.NumCPU().
	Parallelism int
	// Seed selects the random streams. Restart i draws from PCG(Seed, i).
	Seed uint64

	Logger *slog.Logger
	// Observer, when set, sees every proposal. RunParallel calls it from
	// several goroutines at once.
	Observer func(Step)
}

// DefaultSolverParams returns 11 restarts with a stall limit of 100,000.
func DefaultSolverParams() SolverParams {
	return SolverParams{
		Restarts:   DefaultRestarts,
		StallLimit: DefaultStallLimit,
	}
}

type Solver struct {
	ciphertext []byte
	model      *ngram.Model

	restarts       int
	stallLimit     int
	maxIterations  int
	restartTimeout time.Duration
	parallelism    int
	seed           uint64

	logger   *slog.Logger
	observer func(Step)
}

// CreateSolver checks every precondition of a search. A solver is never
// returned for a missing model, invalid limits or a ciphertext containing
// symbols outside the alphabet.
func CreateSolver(ciphertext string, model *ngram.Model, params SolverParams) (*Solver, error) {
	if model == nil {
		return nil, &primitives.ConfigError{Field: "model", Reason: "must not be nil"}
	}
	if params.Order != 0 && params.Order != model.Order() {
		return nil, &primitives.ConfigError{Field: "order", Reason: fmt.Sprintf("model has order %d, requested %d", model.Order(), params.Order)}
	}
	if params.Restarts < 1 {
		return nil, &primitives.ConfigError{Field: "restarts", Reason: "must be at least 1"}
	}
	if params.StallLimit < 1 {
		return nil, &primitives.ConfigError{Field: "stall limit", Reason: "must be at least 1"}
	}
	if params.MaxIterations < 0 {
		return nil, &primitives.ConfigError{Field: "max iterations", Reason: "must not be negative"}
	}
	if params.RestartTimeout < 0 {
		return nil, &primitives.ConfigError{Field: "restart timeout", Reason: "must not be negative"}
	}
	if err := primitives.CheckText(ciphertext); err != nil {
		return nil, fmt.Errorf("ciphertext: %w", err)
	}

	parallelism := params.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Solver{
		ciphertext:     []byte(ciphertext),
		model:          model,
		restarts:       params.Restarts,
		stallLimit:     params.StallLimit,
		maxIterations:  params.MaxIterations,
		restartTimeout: params.RestartTimeout,
		parallelism:    parallelism,
		seed:           params.Seed,
		logger:         logger,
		observer:       params.Observer,
	}, nil
}

// Restarts returns the number of restarts Results will yield.
func (s *Solver) Restarts() int {
	return s.restarts
}

// Results runs the restarts one after another and yields each final state
// in restart order. Iterating again repeats the same search. After the
// context is cancelled, the interrupted restart's partial result is the last
// one yielded.
func (s *Solver) Results(ctx context.Context) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		for i := range s.restarts {
			if ctx.Err() != nil {
				return
			}
			r := s.Restart(ctx, i)
			if !yield(r) || r.Stop == StopCancelled {
				return
			}
		}
	}
}

// RunParallel runs every restart concurrently, at most Parallelism at a
// time, and returns the results in restart order. Each result is identical
// to the one Results yields for the same restart. On cancellation it returns
// the restarts that ran, partial ones included, together with the context
// error.
func (s *Solver) RunParallel(ctx context.Context) ([]Result, error) {
	results := make([]Result, s.restarts)
	ran := make([]bool, s.restarts)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i := range s.restarts {
		g.Go(func() error {
			if gCtx.Err() != nil {
				return nil
			}
			results[i] = s.Restart(gCtx, i)
			ran[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Result, 0, s.restarts)
	for i, r := range results {
		if ran[i] {
			out = append(out, r)
		}
	}
	return out, ctx.Err()
}

// Restart climbs from the identity key using the random stream of restart i
// until the stall limit, the iteration budget, the deadline or the context
// ends it.
func (s *Solver) Restart(ctx context.Context, i int) Result {
	ctx, span := tracer.Start(ctx, "subsolve.Restart", trace.WithAttributes(attribute.Int("restart", i)))
	defer span.End()

	start := time.Now()
	var deadline time.Time
	if s.restartTimeout > 0 {
		deadline = start.Add(s.restartTimeout)
	}
	rng := rand.New(rand.NewPCG(s.seed, uint64(i)))
	done := ctx.Done()

	s.logger.Debug("restart started", "restart", i, "seed", s.seed)

	key := primitives.IdentityKey()
	inv := key.Inverse()
	current := make([]byte, len(s.ciphertext))
	candidate := make([]byte, len(s.ciphertext))
	primitives.DecodeInto(current, s.ciphertext, &inv)
	score := s.model.ScoreBytes(current)

	stall, iterations, accepts := 0, 0, 0
	stop := StopStalled

explore:
	for stall < s.stallLimit {
		if s.maxIterations > 0 && iterations >= s.maxIterations {
			stop = StopBudget
			break
		}
		select {
		case <-done:
			stop = StopCancelled
			break explore
		default:
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			stop = StopDeadline
			break
		}

		next := key.Swap(rng.IntN(primitives.AlphabetSize), rng.IntN(primitives.AlphabetSize))
		inv = next.Inverse()
		primitives.DecodeInto(candidate, s.ciphertext, &inv)
		candidateScore := s.model.ScoreBytes(candidate)
		iterations++

		accepted := candidateScore > score
		if accepted {
			key = next
			score = candidateScore
			current, candidate = candidate, current
			stall = 0
			accepts++
		} else {
			stall++
		}

		if s.observer != nil {
			s.observer(Step{
				Restart:   i,
				Iteration: iterations,
				Key:       key,
				Candidate: candidateScore,
				Score:     score,
				Accepted:  accepted,
				Stall:     stall,
			})
		}
	}

	r := Result{
		Restart:    i,
		Key:        key,
		Plaintext:  string(current),
		Score:      score,
		Iterations: iterations,
		Accepts:    accepts,
		Stop:       stop,
	}

	elapsed := time.Since(start)
	recordRestart(r, elapsed.Seconds())
	span.SetAttributes(
		attribute.Float64("score", score),
		attribute.Int("iterations", iterations),
		attribute.String("stop", stop.String()),
	)
	s.logger.Debug("restart finished",
		"restart", i,
		"score", score,
		"iterations", iterations,
		"accepts", accepts,
		"stop", stop.String(),
		"elapsed", elapsed,
	)
	return r
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/pprof"
	"time"

	"github.com/spf13/cobra"

	"crosswarped.com/subsolve"
	"crosswarped.com/subsolve/internal/config"
)

type solveOptions struct {
	corpus         string
	cacheDir       string
	output         string
	order          int
	penalty        float64
	spaceAware     bool
	restarts       int
	stallLimit     int
	maxIterations  int
	restartTimeout time.Duration
	timeout        time.Duration
	seed           uint64
	parallel       int
	best           bool
	cpuProfile     string
	memProfile     string
}

func newSolveCmd(global *globalOptions) *cobra.Command {
	opts := &solveOptions{}

	cmd := &cobra.Command{
		Use:   "solve [CIPHERTEXT_FILE]",
		Short: "Search for the key of a ciphertext",
		Long: `Search for the key of a substitution ciphertext.

The ciphertext is read from the named file, or from stdin. Lower-case
letters are folded to upper case and runs of whitespace to single spaces;
any other character outside A-Z is an error.

Every restart climbs from the identity key with its own random stream, so a
fixed --seed reproduces the whole search. Results are printed in restart
order as they finish, or only the best one with --best.`,
		Example: `  subcli solve --corpus testdata/corpus.txt cipher.txt
  echo "JDCU CU Q JSUJ" | subcli solve --corpus corpus.txt --order 4 --seed 7
  subcli solve --corpus corpus.txt --parallel 8 --best --output json cipher.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig(opts.overrides(cmd))
			if err != nil {
				return err
			}
			return runSolve(cmd, args, cfg, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.corpus, "corpus", "", "Training corpus file")
	f.StringVar(&opts.cacheDir, "cache-dir", "", "Directory caching trained models")
	f.StringVarP(&opts.output, "output", "o", "", "Output format (text, json)")
	f.IntVar(&opts.order, "order", 0, "N-gram order (default 3)")
	f.Float64Var(&opts.penalty, "penalty", 0, "Score of an unseen n-gram (default -10)")
	f.BoolVar(&opts.spaceAware, "space-aware", false, "Skip n-grams containing a space when scoring")
	f.IntVar(&opts.restarts, "restarts", 0, "Number of restarts (default 11)")
	f.IntVar(&opts.stallLimit, "stall-limit", 0, "Rejected proposals in a row that end a restart (default 100000)")
	f.IntVar(&opts.maxIterations, "max-iterations", 0, "Proposal cap per restart (0 = none)")
	f.DurationVar(&opts.restartTimeout, "restart-timeout", 0, "Time cap per restart (0 = none)")
	f.DurationVar(&opts.timeout, "timeout", 0, "Time cap for the whole search (0 = none)")
	f.Uint64Var(&opts.seed, "seed", 0, "Random seed (0 = derive from the clock)")
	f.IntVar(&opts.parallel, "parallel", 0, "Restarts run at once (default 1)")
	f.BoolVar(&opts.best, "best", false, "Print only the best result")
	f.StringVar(&opts.cpuProfile, "cpu-profile", "", "Write a CPU profile of the search to this file")
	f.StringVar(&opts.memProfile, "mem-profile", "", "Write a heap profile to this file after the search")

	return cmd
}

// overrides collects the flags set on this invocation.
func (o *solveOptions) overrides(cmd *cobra.Command) *config.Config {
	c := &config.Config{}
	f := cmd.Flags()
	if f.Changed("corpus") {
		c.Corpus = o.corpus
	}
	if f.Changed("cache-dir") {
		c.CacheDir = o.cacheDir
	}
	if f.Changed("output") {
		c.Output = o.output
	}
	if f.Changed("order") {
		c.Model.Order = o.order
	}
	if f.Changed("penalty") {
		c.Model.Penalty = &o.penalty
	}
	c.Model.SpaceAware = o.spaceAware
	if f.Changed("restarts") {
		c.Search.Restarts = o.restarts
	}
	if f.Changed("stall-limit") {
		c.Search.StallLimit = o.stallLimit
	}
	if f.Changed("max-iterations") {
		c.Search.MaxIterations = o.maxIterations
	}
	if f.Changed("restart-timeout") {
		c.Search.RestartTimeout = o.restartTimeout
	}
	if f.Changed("timeout") {
		c.Search.Timeout = o.timeout
	}
	if f.Changed("seed") {
		c.Search.Seed = o.seed
	}
	if f.Changed("parallel") {
		c.Search.Parallelism = o.parallel
	}
	return c
}

func runSolve(cmd *cobra.Command, args []string, cfg *config.Config, opts *solveOptions) error {
	logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
	bestOnly := opts.best

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	if cfg.Search.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Search.Timeout)
		defer cancel()
	}

	ciphertext, err := readText(cmd, args)
	if err != nil {
		return fmt.Errorf("read ciphertext: %w", err)
	}

	model, err := loadModel(ctx, cfg, logger)
	if err != nil {
		return err
	}

	seed := cfg.Search.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	solver, err := subsolve.CreateSolver(ciphertext, model, subsolve.SolverParams{
		Order:          cfg.Model.Order,
		Restarts:       cfg.Search.Restarts,
		StallLimit:     cfg.Search.StallLimit,
		MaxIterations:  cfg.Search.MaxIterations,
		RestartTimeout: cfg.Search.RestartTimeout,
		Parallelism:    cfg.Search.Parallelism,
		Seed:           seed,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	logger.Info("searching", "restarts", solver.Restarts(), "seed", seed, "order", model.Order())

	if opts.cpuProfile != "" {
		f, err := os.Create(opts.cpuProfile)
		if err != nil {
			return fmt.Errorf("create cpu profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("start cpu profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}
	if opts.memProfile != "" {
		defer writeHeapProfile(opts.memProfile, logger)
	}

	out := cmd.OutOrStdout()
	var results []subsolve.Result
	if cfg.Search.Parallelism > 1 {
		results, err = solver.RunParallel(ctx)
		if err != nil {
			logger.Warn("search interrupted", "error", err, "finished", len(results))
		}
		if !bestOnly {
			for _, r := range results {
				if err := writeResult(out, cfg.Output, r); err != nil {
					return err
				}
			}
		}
	} else {
		for r := range solver.Results(ctx) {
			results = append(results, r)
			if bestOnly {
				continue
			}
			if err := writeResult(out, cfg.Output, r); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			logger.Warn("search interrupted", "error", err, "finished", len(results))
		}
	}

	best, ok := subsolve.Best(results)
	if !ok {
		return fmt.Errorf("no restart finished")
	}
	if bestOnly {
		return writeResult(out, cfg.Output, best)
	}
	logger.Info("best result", "restart", best.Restart, "score", best.Score, "key", best.Key.String())
	return nil
}

func writeHeapProfile(path string, logger *slog.Logger) {
	f, err := os.Create(path)
	if err != nil {
		logger.Error("create heap profile", "error", err)
		return
	}
	defer f.Close()
	if err := pprof.WriteHeapProfile(f); err != nil {
		logger.Error("write heap profile", "error", err)
	}
}

func writeResult(w io.Writer, format string, r subsolve.Result) error {
	if format == "json" {
		return json.NewEncoder(w).Encode(r)
	}
	_, err := fmt.Fprintf(w, "%s\n-----\n", r.Repr())
	return err
}

package main

import (
	"cmp"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"crosswarped.com/subsolve/internal/config"
)

type gramStat struct {
	Gram    string  `json:"gram"`
	LogProb float64 `json:"logProb"`
}

type trainSummary struct {
	Corpus     string     `json:"corpus"`
	Order      int        `json:"order"`
	Grams      int        `json:"grams"`
	Total      int        `json:"total"`
	Penalty    float64    `json:"penalty"`
	SpaceAware bool       `json:"spaceAware"`
	Top        []gramStat `json:"top,omitempty"`
}

func newTrainCmd(global *globalOptions) *cobra.Command {
	var (
		corpusPath string
		cacheDir   string
		output     string
		order      int
		penalty    float64
		spaceAware bool
		top        int
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Count a corpus and show model statistics",
		Long: `Train an n-gram model from a corpus and print its statistics and most
frequent n-grams. With --cache-dir the model is stored for later solve runs
that use the same corpus and settings.`,
		Example: `  subcli train --corpus testdata/corpus.txt --order 4 --top 20
  subcli train --corpus big.txt --cache-dir ~/.cache/subsolve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := &config.Config{}
			f := cmd.Flags()
			if f.Changed("corpus") {
				overrides.Corpus = corpusPath
			}
			if f.Changed("cache-dir") {
				overrides.CacheDir = cacheDir
			}
			if f.Changed("output") {
				overrides.Output = output
			}
			if f.Changed("order") {
				overrides.Model.Order = order
			}
			if f.Changed("penalty") {
				overrides.Model.Penalty = &penalty
			}
			overrides.Model.SpaceAware = spaceAware

			cfg, err := global.loadConfig(overrides)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)

			model, err := loadModel(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}

			summary := trainSummary{
				Corpus:     cfg.Corpus,
				Order:      model.Order(),
				Grams:      model.Len(),
				Total:      model.Total(),
				Penalty:    model.Penalty(),
				SpaceAware: model.SpaceAware(),
			}
			if top > 0 {
				summary.Top = topGrams(maps.Collect(model.Grams()), top)
			}
			return writeSummary(cmd, cfg.Output, summary)
		},
	}

	f := cmd.Flags()
	f.StringVar(&corpusPath, "corpus", "", "Training corpus file")
	f.StringVar(&cacheDir, "cache-dir", "", "Directory caching trained models")
	f.StringVarP(&output, "output", "o", "", "Output format (text, json)")
	f.IntVar(&order, "order", 0, "N-gram order (default 3)")
	f.Float64Var(&penalty, "penalty", 0, "Score of an unseen n-gram (default -10)")
	f.BoolVar(&spaceAware, "space-aware", false, "Skip n-grams containing a space when scoring")
	f.IntVar(&top, "top", 10, "Number of most frequent n-grams to show")
	return cmd
}

// topGrams returns the k most probable grams, ties broken alphabetically.
func topGrams(logp map[string]float64, k int) []gramStat {
	stats := make([]gramStat, 0, len(logp))
	for gram, p := range logp {
		stats = append(stats, gramStat{Gram: gram, LogProb: p})
	}
	slices.SortFunc(stats, func(a, b gramStat) int {
		if c := cmp.Compare(b.LogProb, a.LogProb); c != 0 {
			return c
		}
		return cmp.Compare(a.Gram, b.Gram)
	})
	return stats[:min(k, len(stats))]
}

func writeSummary(cmd *cobra.Command, format string, s trainSummary) error {
	w := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	fmt.Fprintf(w, "corpus:      %s\n", s.Corpus)
	fmt.Fprintf(w, "order:       %d\n", s.Order)
	fmt.Fprintf(w, "grams:       %d distinct, %d counted\n", s.Grams, s.Total)
	fmt.Fprintf(w, "penalty:     %g\n", s.Penalty)
	fmt.Fprintf(w, "space aware: %t\n", s.SpaceAware)
	for i, g := range s.Top {
		fmt.Fprintf(w, "%3d. %s %.4f\n", i+1, g.Gram, g.LogProb)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"crosswarped.com/subsolve/internal/config"
	"crosswarped.com/subsolve/internal/corpus"
	"crosswarped.com/subsolve/internal/modelstore"
	"crosswarped.com/subsolve/pkg/ngram"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	cfgFile string
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "subcli",
		Short: "Break monoalphabetic substitution ciphers",
		Long: `subcli recovers the plaintext and key of a monoalphabetic substitution cipher.

It counts n-grams in a reference corpus, then hill climbs over key
permutations from the identity key, keeping every swap of two key symbols
that makes the decoded text score better, and restarting when no swap has
helped for a while.

Commands:
  solve   Search for the key of a ciphertext
  encode  Encode plaintext with a key
  decode  Decode ciphertext with a key
  train   Count a corpus and show model statistics`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "Config file (default: ./.subsolve.yaml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newSolveCmd(opts),
		newEncodeCmd(),
		newDecodeCmd(),
		newTrainCmd(opts),
	)
	return root
}

// loadConfig resolves the configuration, letting the flags the user set on
// this invocation override everything else.
func (o *globalOptions) loadConfig(overrides *config.Config) (*config.Config, error) {
	if o.verbose {
		overrides.Verbose = true
	}
	return config.Load(o.cfgFile, overrides)
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// readText returns the first argument's file contents, or stdin when there
// is no argument, upper-cased with whitespace folded to single spaces.
func readText(cmd *cobra.Command, args []string) (string, error) {
	var r io.Reader = cmd.InOrStdin()
	if len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	text, err := corpus.Read(cmd.Context(), r)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(text), nil
}

// loadModel trains the configured model, going through the model cache when
// one is configured.
func loadModel(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*ngram.Model, error) {
	if cfg.Corpus == "" {
		return nil, fmt.Errorf("no corpus configured (use --corpus or SUBSOLVE_CORPUS)")
	}
	text, err := corpus.LoadFile(ctx, cfg.Corpus)
	if err != nil {
		return nil, err
	}
	settings := modelstore.Settings{
		Order:      cfg.Model.Order,
		Penalty:    cfg.Model.PenaltyValue(),
		SpaceAware: cfg.Model.SpaceAware,
	}

	if cfg.CacheDir == "" {
		logger.Debug("training model", "corpus", cfg.Corpus, "order", settings.Order)
		return ngram.Train(text, settings.Order, settings.Options()...)
	}

	store, err := modelstore.Open(modelstore.Config{Path: cfg.CacheDir, Logger: logger})
	if err != nil {
		return nil, err
	}
	defer store.Close()

	m, hit, err := store.GetOrTrain(text, settings)
	if err != nil {
		return nil, err
	}
	logger.Debug("model ready", "corpus", cfg.Corpus, "order", settings.Order, "cached", hit, "grams", m.Len())
	return m, nil
}

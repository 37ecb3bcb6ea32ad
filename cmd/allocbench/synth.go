package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/nballoc/allocbench/synth"
)

var errFraction = errors.New("fractions must be within [0, 1] and sum to at most 1")

func newSynthCmd(logger *slog.Logger, opts *globalOptions) *cobra.Command {
	var (
		seed       int64
		baseClocks uint64
		missing    float64
		corrupt    float64
	)

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Generate a synthetic results directory",
		Long: `Write a deterministic fake result file for every tuple of the sweep,
for trying out convert, summary and plot without running the benchmarks.
A fraction of tuples can be left without a file or without a timer line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSynth(cmd.Context(), logger, synthConfig{
				source:     opts.source(),
				seed:       seed,
				baseClocks: baseClocks,
				missing:    missing,
				corrupt:    corrupt,
			})
		},
	}

	flags := cmd.Flags()
	flags.Int64Var(&seed, "seed", 0,
		"Random seed (0 = use current time)")
	flags.Uint64Var(&baseClocks, "base-clocks", synth.DefaultBaseClocks,
		"Clock count of one thread at the smallest size")
	flags.Float64Var(&missing, "missing", 0,
		"Fraction of tuples left without a result file")
	flags.Float64Var(&corrupt, "corrupt", 0,
		"Fraction of tuples written without a timer line")

	return cmd
}

type synthConfig struct {
	source     sourceOptions
	seed       int64
	baseClocks uint64
	missing    float64
	corrupt    float64
}

func runSynth(ctx context.Context, logger *slog.Logger, cfg synthConfig) error {
	if cfg.missing < 0 || cfg.corrupt < 0 || cfg.missing+cfg.corrupt > 1 {
		return fmt.Errorf("--missing %g --corrupt %g: %w", cfg.missing, cfg.corrupt, errFraction)
	}

	sw, dir, err := loadSweep(cfg.source)
	if err != nil {
		return err
	}

	seed := cfg.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	logSweep(ctx, logger, "generating results", sw, dir)

	gen := synth.NewGenerator(synth.Config{
		Seed:       seed,
		BaseClocks: cfg.baseClocks,
		Missing:    cfg.missing,
		Corrupt:    cfg.corrupt,
	})

	sum, err := gen.Generate(dir, sw.Tuples())
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	logger.InfoContext(ctx, "results generated",
		slog.String("results_dir", dir),
		slog.Int64("seed", seed),
		slog.Int("written", sum.Written),
		slog.Int("missing", sum.Missing),
		slog.Int("corrupt", sum.Corrupt),
	)

	return nil
}

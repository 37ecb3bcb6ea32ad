// Package main provides the CLI entry point for allocbench, which runs
// memory allocator benchmark sweeps and turns their result files into
// tables, summaries and charts.
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/nballoc/allocbench/collect"
	"github.com/nballoc/allocbench/progress"
	"github.com/nballoc/allocbench/sweep"
)

const (
	defaultConfig = "config.sh"
	defaultOutput = "out.csv"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd(logger, level)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("allocbench failed", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	resultsDir string
	strict     bool
	quiet      bool
	verbose    bool
}

func (o *globalOptions) policy() collect.Policy {
	if o.strict {
		return collect.Strict
	}

	return collect.Lenient
}

// progress returns a bar on w, or nil when --quiet is set.
func (o *globalOptions) progress(w io.Writer) collect.Progress {
	if o.quiet {
		return nil
	}

	return progress.New(w)
}

func newRootCmd(logger *slog.Logger, level *slog.LevelVar) *cobra.Command {
	opts := &globalOptions{}

	var sqlitePath string

	root := &cobra.Command{
		Use:   "allocbench [output]",
		Short: "Memory allocator benchmark sweep tool",
		Long: `Allocbench runs allocator benchmark sweeps described by a config.sh
file and converts the per-run result files into one CSV table with a row per
(test, allocator, size, threads, run) tuple.

Without a subcommand it behaves like "allocbench convert".`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			switch {
			case opts.verbose:
				level.Set(slog.LevelDebug)
			case opts.quiet:
				level.Set(slog.LevelWarn)
			default:
				level.Set(slog.LevelInfo)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd.Context(), logger, newConvertConfig(cmd, opts, args, sqlitePath))
		},
	}

	pflags := root.PersistentFlags()
	pflags.StringVar(&opts.configPath, "config", defaultConfig,
		"Sweep configuration (config.sh, or .yaml/.yml)")
	pflags.StringVar(&opts.resultsDir, "results-dir", "",
		"Results directory (default: results_{NUM_LEVELS}_{MAX}_{MIN})")
	pflags.BoolVar(&opts.strict, "strict", false,
		"Fail without writing output if any tuple has no timer value")
	pflags.BoolVarP(&opts.quiet, "quiet", "q", false,
		"Only log warnings and errors and hide the progress bar")
	pflags.BoolVarP(&opts.verbose, "verbose", "v", false,
		"Enable debug logging")

	root.Flags().StringVar(&sqlitePath, "sqlite", "",
		"Also append the table to this SQLite database")

	root.AddCommand(
		newConvertCmd(logger, opts),
		newRunCmd(logger, opts),
		newSummaryCmd(logger, opts),
		newPlotCmd(logger, opts),
		newSynthCmd(logger, opts),
	)

	return root
}

// loadSweep loads the sweep configuration and resolves the results
// directory, which --results-dir overrides.
func loadSweep(opts sourceOptions) (sweep.Config, string, error) {
	cfg, err := sweep.Load(opts.configPath)
	if err != nil {
		return sweep.Config{}, "", err
	}

	dir := opts.resultsDir
	if dir == "" {
		dir = cfg.ResultsDir()
	}

	return cfg, dir, nil
}

// sourceOptions locates the sweep on disk.
type sourceOptions struct {
	configPath string
	resultsDir string
}

func (o *globalOptions) source() sourceOptions {
	return sourceOptions{configPath: o.configPath, resultsDir: o.resultsDir}
}

func logSweep(ctx context.Context, logger *slog.Logger, msg string, cfg sweep.Config, dir string) {
	logger.InfoContext(ctx, msg,
		slog.Any("tests", cfg.Tests),
		slog.Any("allocators", cfg.Allocators),
		slog.Any("sizes", cfg.Sizes),
		slog.Any("threads", cfg.Threads),
		slog.Any("runs", cfg.Runs),
		slog.String("results_dir", dir),
		slog.Int("tuples", cfg.Count()),
	)
}

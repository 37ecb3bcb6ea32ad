package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/nballoc/allocbench/collect"
	"github.com/nballoc/allocbench/harness"
)

func newRunCmd(logger *slog.Logger, opts *globalOptions) *cobra.Command {
	var (
		command string
		workDir string
		timeout time.Duration
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the benchmark binaries for every tuple of the sweep",
		Long: `Execute one benchmark per (test, allocator, size, threads, run) tuple
and store its standard output as the tuple's result file, ready for
"allocbench convert".

The command template may use the placeholders {test}, {alloc}, {size},
{threads} and {run}.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBenchmarks(cmd.Context(), logger, runConfig{
				source:   opts.source(),
				command:  command,
				workDir:  workDir,
				timeout:  timeout,
				force:    force,
				policy:   opts.policy(),
				progress: opts.progress(cmd.ErrOrStderr()),
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&command, "cmd", harness.DefaultCommand,
		"Benchmark command template")
	flags.StringVar(&workDir, "workdir", "",
		"Directory the benchmarks run in (default: current directory)")
	flags.DurationVar(&timeout, "timeout", 30*time.Minute,
		"Per-benchmark timeout (0 disables it)")
	flags.BoolVar(&force, "force", false,
		"Re-run tuples whose result file already exists")

	return cmd
}

type runConfig struct {
	source   sourceOptions
	command  string
	workDir  string
	timeout  time.Duration
	force    bool
	policy   collect.Policy
	progress collect.Progress
}

func runBenchmarks(ctx context.Context, logger *slog.Logger, cfg runConfig) error {
	tmpl, err := harness.ParseCommand(cfg.command)
	if err != nil {
		return fmt.Errorf("parse --cmd: %w", err)
	}

	sw, dir, err := loadSweep(cfg.source)
	if err != nil {
		return err
	}

	logSweep(ctx, logger, "starting sweep", sw, dir)

	runner := harness.NewRunner(tmpl, cfg.policy, logger)
	runner.Progress = cfg.progress

	sum, err := runner.Run(ctx, harness.RunConfig{
		ResultsDir: dir,
		WorkDir:    cfg.workDir,
		Timeout:    cfg.timeout,
		Force:      cfg.force,
	}, sw.Tuples())
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "sweep complete",
		slog.Int("ran", sum.Ran),
		slog.Int("skipped", sum.Skipped),
		slog.Int("failed", sum.Failed),
		slog.Duration("elapsed", sum.Elapsed.Round(time.Millisecond)),
	)

	return nil
}

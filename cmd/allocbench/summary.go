package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nballoc/allocbench/collect"
	"github.com/nballoc/allocbench/report"
	"github.com/nballoc/allocbench/store"
)

var errNoSweeps = errors.New("database holds no sweeps")

// rowSource selects where summary and plot read rows from: the results
// directory of the sweep, or a sweep stored by "convert --sqlite".
type rowSource struct {
	source     sourceOptions
	sqlitePath string
	sweepID    string
	policy     collect.Policy
	progress   collect.Progress
}

func bindRowSourceFlags(cmd *cobra.Command, src *rowSource) {
	cmd.Flags().StringVar(&src.sqlitePath, "sqlite", "",
		"Read rows from this SQLite database instead of the results directory")
	cmd.Flags().StringVar(&src.sweepID, "sweep", "",
		"Stored sweep to read with --sqlite (default: the latest)")
}

func (src *rowSource) fill(cmd *cobra.Command, opts *globalOptions) {
	src.source = opts.source()
	src.policy = opts.policy()
	src.progress = opts.progress(cmd.ErrOrStderr())
}

func loadRows(ctx context.Context, logger *slog.Logger, src rowSource) ([]collect.Row, error) {
	if src.sqlitePath != "" {
		return loadStoredRows(ctx, logger, src)
	}

	sw, dir, err := loadSweep(src.source)
	if err != nil {
		return nil, err
	}

	logSweep(ctx, logger, "reading results", sw, dir)

	collector := collect.NewCollector(dir, src.policy, logger)
	collector.Progress = src.progress

	res, err := collector.Collect(ctx, sw.Tuples())
	if err != nil {
		return nil, err
	}

	return res.Rows, nil
}

func loadStoredRows(ctx context.Context, logger *slog.Logger, src rowSource) ([]collect.Row, error) {
	st, err := store.Open(ctx, src.sqlitePath)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	id := src.sweepID
	if id == "" {
		sweeps, err := st.Sweeps(ctx)
		if err != nil {
			return nil, err
		}

		if len(sweeps) == 0 {
			return nil, fmt.Errorf("%s: %w", src.sqlitePath, errNoSweeps)
		}

		id = sweeps[len(sweeps)-1].ID
	}

	rows, err := st.Rows(ctx, id)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("sweep %s not found in %s", id, src.sqlitePath)
	}

	logger.InfoContext(ctx, "reading stored sweep",
		slog.String("db", src.sqlitePath),
		slog.String("sweep", id),
		slog.Int("rows", len(rows)),
	)

	return rows, nil
}

func newSummaryCmd(logger *slog.Logger, opts *globalOptions) *cobra.Command {
	var (
		src        rowSource
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize the runs of every benchmark point",
		Long: `Group rows by (test, allocator, size, threads) and report the mean,
median, standard deviation and range of the clock counts over the runs, with
each allocator compared against the fastest one at the same point.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src.fill(cmd, opts)

			return runSummary(cmd.Context(), logger, summaryConfig{
				rows:       src,
				outputJSON: outputJSON,
				out:        cmd.OutOrStdout(),
			})
		},
	}

	bindRowSourceFlags(cmd, &src)
	cmd.Flags().BoolVar(&outputJSON, "json", false,
		"Output the summary as JSON instead of a table")

	return cmd
}

type summaryConfig struct {
	rows       rowSource
	outputJSON bool
	out        io.Writer
}

func runSummary(ctx context.Context, logger *slog.Logger, cfg summaryConfig) error {
	rows, err := loadRows(ctx, logger, cfg.rows)
	if err != nil {
		return err
	}

	summaries := report.Summarize(rows)

	if cfg.outputJSON {
		if err := report.GenerateJSON(cfg.out, summaries); err != nil {
			return fmt.Errorf("generate JSON report: %w", err)
		}

		return nil
	}

	if err := report.Generate(cfg.out, summaries); err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	return nil
}

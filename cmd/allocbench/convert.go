package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nballoc/allocbench/collect"
	"github.com/nballoc/allocbench/report"
	"github.com/nballoc/allocbench/store"
)

func newConvertCmd(logger *slog.Logger, opts *globalOptions) *cobra.Command {
	var sqlitePath string

	cmd := &cobra.Command{
		Use:   "convert [output]",
		Short: "Convert a results directory into a CSV table",
		Long: `Read the result file of every tuple of the sweep, extract its
"Timer (clocks):" value and write one CSV row per tuple (default out.csv).

Missing values are written as NaN. With --strict any missing value fails the
command and no table is written.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd.Context(), logger, newConvertConfig(cmd, opts, args, sqlitePath))
		},
	}

	cmd.Flags().StringVar(&sqlitePath, "sqlite", "",
		"Also append the table to this SQLite database")

	return cmd
}

type convertConfig struct {
	source     sourceOptions
	output     string
	sqlitePath string
	policy     collect.Policy
	progress   collect.Progress
}

func newConvertConfig(cmd *cobra.Command, opts *globalOptions, args []string, sqlitePath string) convertConfig {
	output := defaultOutput
	if len(args) > 0 {
		output = args[0]
	}

	return convertConfig{
		source:     opts.source(),
		output:     output,
		sqlitePath: sqlitePath,
		policy:     opts.policy(),
		progress:   opts.progress(cmd.ErrOrStderr()),
	}
}

func runConvert(ctx context.Context, logger *slog.Logger, cfg convertConfig) error {
	sw, dir, err := loadSweep(cfg.source)
	if err != nil {
		return err
	}

	logSweep(ctx, logger, "converting results", sw, dir)

	collector := collect.NewCollector(dir, cfg.policy, logger)
	collector.Progress = cfg.progress

	res, err := collector.Collect(ctx, sw.Tuples())
	if err != nil {
		return err
	}

	if err := report.WriteCSVFile(cfg.output, res.Rows); err != nil {
		return fmt.Errorf("write %s: %w", cfg.output, err)
	}

	logger.InfoContext(ctx, "table written",
		slog.String("output", cfg.output),
		slog.Int("rows", len(res.Rows)),
		slog.Int("missing", res.Missing),
	)

	if cfg.sqlitePath == "" {
		return nil
	}

	st, err := store.Open(ctx, cfg.sqlitePath)
	if err != nil {
		return err
	}
	defer st.Close()

	stored, err := st.Append(ctx, dir, res.Rows)
	if err != nil {
		return fmt.Errorf("store sweep: %w", err)
	}

	logger.InfoContext(ctx, "sweep stored",
		slog.String("db", cfg.sqlitePath),
		slog.String("sweep", stored.ID),
	)

	return nil
}

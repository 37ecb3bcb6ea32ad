package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nballoc/allocbench/chart"
	"github.com/nballoc/allocbench/report"
)

func newPlotCmd(logger *slog.Logger, opts *globalOptions) *cobra.Command {
	var (
		src    rowSource
		outDir string
	)

	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Draw clocks-vs-threads charts",
		Long: `Write one PNG per (test, size) named <test>-sz<size>.png, plotting the
mean clock count against the thread count with one line per allocator.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src.fill(cmd, opts)

			return runPlot(cmd.Context(), logger, plotConfig{
				rows:   src,
				outDir: outDir,
			})
		},
	}

	bindRowSourceFlags(cmd, &src)
	cmd.Flags().StringVarP(&outDir, "out", "o", "plots",
		"Directory the charts are written to")

	return cmd
}

type plotConfig struct {
	rows   rowSource
	outDir string
}

func runPlot(ctx context.Context, logger *slog.Logger, cfg plotConfig) error {
	rows, err := loadRows(ctx, logger, cfg.rows)
	if err != nil {
		return err
	}

	paths, err := chart.Render(cfg.outDir, report.Summarize(rows))
	for _, p := range paths {
		logger.InfoContext(ctx, "chart written", slog.String("path", p))
	}

	return err
}

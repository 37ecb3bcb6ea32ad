// Package harness runs the allocator benchmark binaries for every tuple of
// a sweep and stores their output as result files.
package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/nballoc/allocbench/collect"
	"github.com/nballoc/allocbench/sweep"
	"github.com/nballoc/allocbench/timer"
)

// ErrFailed is returned by Run in strict mode when a benchmark fails.
var ErrFailed = errors.New("benchmark failed")

// RunConfig holds parameters shared by every execution of a sweep.
type RunConfig struct {
	ResultsDir string
	WorkDir    string
	Timeout    time.Duration
	Force      bool
}

// Summary counts what Run did.
type Summary struct {
	Ran     int
	Skipped int
	Failed  int
	Elapsed time.Duration
}

// Runner launches one benchmark binary per tuple.
type Runner struct {
	Command  Command
	Policy   collect.Policy
	Logger   *slog.Logger
	Progress collect.Progress
}

// NewRunner creates a Runner for the given command template.
func NewRunner(cmd Command, policy collect.Policy, logger *slog.Logger) *Runner {
	return &Runner{
		Command: cmd,
		Policy:  policy,
		Logger:  logger.With(slog.String("command", cmd.String())),
	}
}

// Run executes every tuple in order. Tuples whose result file already
// exists are skipped unless cfg.Force is set. A failed benchmark is logged
// and skipped under Lenient; under Strict Run stops and returns an error
// wrapping ErrFailed.
func (r *Runner) Run(ctx context.Context, cfg RunConfig, tuples []sweep.Tuple) (sum Summary, err error) {
	start := time.Now()
	defer func() { sum.Elapsed = time.Since(start) }()

	if err := os.MkdirAll(cfg.ResultsDir, 0o755); err != nil {
		return sum, fmt.Errorf("create results dir: %w", err)
	}

	if r.Progress != nil {
		defer r.Progress.Done()
	}

	for i, t := range tuples {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("run: %w", err)
		}

		ran, err := r.RunOne(ctx, cfg, t)

		switch {
		case err != nil:
			sum.Failed++

			if ctx.Err() != nil {
				return sum, fmt.Errorf("run: %w", ctx.Err())
			}

			r.Logger.ErrorContext(ctx, "benchmark failed",
				slog.String("file", t.Filename()),
				slog.String("error", err.Error()),
			)

			if r.Policy == collect.Strict {
				return sum, fmt.Errorf("%w: %s: %w", ErrFailed, t.Filename(), err)
			}

		case ran:
			sum.Ran++

		default:
			sum.Skipped++
		}

		if r.Progress != nil {
			r.Progress.Update(i+1, len(tuples))
		}
	}

	return sum, nil
}

// RunOne executes the benchmark for t and writes its stdout to the result
// file. It reports false without running anything if the file exists and
// cfg.Force is not set.
func (r *Runner) RunOne(ctx context.Context, cfg RunConfig, t sweep.Tuple) (bool, error) {
	out := collect.Path(cfg.ResultsDir, t)

	if !cfg.Force {
		if _, err := os.Stat(out); err == nil {
			r.Logger.DebugContext(ctx, "result exists, skipping",
				slog.String("file", t.Filename()),
			)

			return false, nil
		}
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	bin, args := r.Command.Expand(t)

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = cfg.WorkDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.Logger.DebugContext(ctx, "starting benchmark",
		slog.String("file", t.Filename()),
		slog.String("binary", bin),
		slog.Any("args", args),
	)

	wallStart := time.Now()

	if err := cmd.Run(); err != nil {
		return false, fmt.Errorf("%s: %w\nstderr: %s", bin, err, stderr.String())
	}

	r.Logger.DebugContext(ctx, "benchmark finished",
		slog.String("file", t.Filename()),
		slog.Duration("wall_time", time.Since(wallStart)),
	)

	if _, err := timer.Parse(bytes.NewReader(stdout.Bytes())); err != nil {
		r.Logger.WarnContext(ctx, "benchmark output has no timer line",
			slog.String("file", t.Filename()),
		)
	}

	if err := writeFile(out, stdout.Bytes()); err != nil {
		return false, err
	}

	return true, nil
}

func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("close %s: %w", path, err)
	}

	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("chmod %s: %w", path, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("rename to %s: %w", path, err)
	}

	return nil
}

package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nballoc/allocbench/sweep"
	"github.com/nballoc/allocbench/timer"
)

// Policy selects what a failed tuple does to the whole run.
type Policy int

const (
	// Lenient records Sentinel for a failed tuple and carries on. The
	// table is always complete.
	Lenient Policy = iota

	// Strict reports every failed tuple and fails the run if there was at
	// least one, so that no table is written.
	Strict
)

func (p Policy) String() string {
	switch p {
	case Lenient:
		return "lenient"
	case Strict:
		return "strict"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// Progress receives a tick after every tuple.
type Progress interface {
	Update(done, total int)
	Done()
}

// Path returns where the result file of t lives under dir.
func Path(dir string, t sweep.Tuple) string {
	return filepath.Join(dir, t.Filename())
}

// Extract returns the clock count stored in the result file of t. Failures
// are reported as *ExtractError wrapping ErrMissingFile, ErrMissingTimer or
// ErrRead.
func Extract(dir string, t sweep.Tuple) (string, error) {
	path := Path(dir, t)

	f, err := os.Open(path)
	if err != nil {
		return "", &ExtractError{Tuple: t, Path: path, Err: fmt.Errorf("%w: %w", ErrMissingFile, err)}
	}
	defer f.Close()

	v, err := timer.Parse(f)
	switch {
	case err == nil:
		return v, nil
	case errors.Is(err, timer.ErrNotFound):
		return "", &ExtractError{Tuple: t, Path: path, Err: ErrMissingTimer}
	default:
		return "", &ExtractError{Tuple: t, Path: path, Err: fmt.Errorf("%w: %w", ErrRead, err)}
	}
}

// Collector extracts the time of every tuple of a sweep.
type Collector struct {
	Dir      string
	Policy   Policy
	Logger   *slog.Logger
	Progress Progress
}

// NewCollector creates a Collector reading result files from dir.
func NewCollector(dir string, policy Policy, logger *slog.Logger) *Collector {
	return &Collector{
		Dir:    dir,
		Policy: policy,
		Logger: logger.With(slog.String("results_dir", dir)),
	}
}

// Collect extracts every tuple in order. Under Lenient it only fails on
// cancellation. Under Strict it returns the rows together with an error
// wrapping ErrIncomplete when any tuple failed.
func (c *Collector) Collect(ctx context.Context, tuples []sweep.Tuple) (*Result, error) {
	res := &Result{Rows: make([]Row, 0, len(tuples))}

	if c.Progress != nil {
		defer c.Progress.Done()
	}

	for i, t := range tuples {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("collect: %w", err)
		}

		row := Row{Tuple: t}

		v, err := Extract(c.Dir, t)
		if err != nil {
			row.Time = Sentinel
			row.Err = err
			res.Missing++
			c.report(ctx, err)
		} else {
			row.Time = v
		}

		res.Rows = append(res.Rows, row)

		if c.Progress != nil {
			c.Progress.Update(i+1, len(tuples))
		}
	}

	if c.Policy == Strict && res.Missing > 0 {
		return res, fmt.Errorf("%w: %d of %d tuples have no timer value",
			ErrIncomplete, res.Missing, len(tuples))
	}

	return res, nil
}

func (c *Collector) report(ctx context.Context, err error) {
	var ee *ExtractError
	if !errors.As(err, &ee) {
		c.Logger.ErrorContext(ctx, "extract failed", slog.String("error", err.Error()))

		return
	}

	reason := "read error"
	switch {
	case errors.Is(err, ErrMissingFile):
		reason = "file missing"
	case errors.Is(err, ErrMissingTimer):
		reason = "timer missing"
	}

	attrs := []any{
		slog.String("file", ee.Tuple.Filename()),
		slog.String("reason", reason),
	}

	if c.Policy == Strict {
		c.Logger.ErrorContext(ctx, "tuple failed", append(attrs, slog.String("error", ee.Err.Error()))...)

		return
	}

	c.Logger.WarnContext(ctx, "tuple has no value, recording "+Sentinel, attrs...)
}

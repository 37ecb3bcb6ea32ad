// Package chart plots mean clock counts against thread counts, one figure
// per test and size with one line per allocator.
package chart

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/nballoc/allocbench/report"
)

// ErrNotNumeric is returned when a thread count cannot be used as an x
// coordinate.
var ErrNotNumeric = errors.New("thread count is not numeric")

// Line is the series of one allocator.
type Line struct {
	Allocator string
	Points    plotter.XYs
}

// Figure holds the lines of one (test, size) pair.
type Figure struct {
	Test  string
	Size  string
	Lines []Line
}

// Name returns the file name Render uses for f.
func (f Figure) Name() string {
	name := f.Test + "-sz" + f.Size + ".png"

	return strings.ReplaceAll(name, string(os.PathSeparator), "_")
}

// Figures arranges summaries into figures, keeping the order in which
// tests, sizes and allocators first appear. Groups without any run are left
// out; points within a line are sorted by thread count.
func Figures(summaries []report.GroupSummary) ([]Figure, error) {
	type figKey struct{ test, size string }

	var (
		figs    []Figure
		figIdx  = make(map[figKey]int)
		lineIdx = make(map[figKey]map[string]int)
	)

	for _, s := range summaries {
		x, err := strconv.ParseFloat(s.Threads, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrNotNumeric, s.Threads)
		}

		if s.Runs == 0 {
			continue
		}

		fk := figKey{s.Test, s.Size}

		fi, ok := figIdx[fk]
		if !ok {
			fi = len(figs)
			figIdx[fk] = fi
			lineIdx[fk] = make(map[string]int)
			figs = append(figs, Figure{Test: s.Test, Size: s.Size})
		}

		li, ok := lineIdx[fk][s.Allocator]
		if !ok {
			li = len(figs[fi].Lines)
			lineIdx[fk][s.Allocator] = li
			figs[fi].Lines = append(figs[fi].Lines, Line{Allocator: s.Allocator})
		}

		line := &figs[fi].Lines[li]
		line.Points = append(line.Points, plotter.XY{X: x, Y: s.Mean})
	}

	for _, f := range figs {
		for _, l := range f.Lines {
			sort.SliceStable(l.Points, func(i, j int) bool {
				return l.Points[i].X < l.Points[j].X
			})
		}
	}

	return figs, nil
}

// Render writes one PNG per figure into outDir and returns the paths.
func Render(outDir string, summaries []report.GroupSummary) ([]string, error) {
	figs, err := Figures(summaries)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", outDir, err)
	}

	paths := make([]string, 0, len(figs))
	for _, f := range figs {
		path := filepath.Join(outDir, f.Name())
		if err := save(path, f); err != nil {
			return paths, err
		}

		paths = append(paths, path)
	}

	return paths, nil
}

func save(path string, f Figure) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s, size %s", f.Test, f.Size)
	p.X.Label.Text = "Threads"
	p.Y.Label.Text = "Clocks (mean)"
	p.Add(plotter.NewGrid())

	seen := make(map[float64]bool)
	var ticks []plot.Tick

	for i, l := range f.Lines {
		line, err := plotter.NewLine(l.Points)
		if err != nil {
			return fmt.Errorf("plot %s/%s: %w", f.Name(), l.Allocator, err)
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i)
		line.Width = vg.Points(2)

		p.Add(line)
		p.Legend.Add(l.Allocator, line)

		for _, pt := range l.Points {
			if !seen[pt.X] {
				seen[pt.X] = true
				ticks = append(ticks, plot.Tick{Value: pt.X, Label: strconv.FormatFloat(pt.X, 'f', -1, 64)})
			}
		}
	}

	p.Legend.Top = true
	p.Legend.Left = true
	p.X.Tick.Marker = plot.ConstantTicks(ticks)

	// Clock counts are integers.
	p.Y.Tick.Marker = plot.TickerFunc(func(min, max float64) []plot.Tick {
		ts := plot.DefaultTicks{}.Ticks(min, max)
		for i := range ts {
			if ts[i].Label != "" {
				ts[i].Label = fmt.Sprintf("%.0f", ts[i].Value)
			}
		}

		return ts
	})

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}

	return nil
}

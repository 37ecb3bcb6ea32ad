// Package report turns collected sweep rows into tables: the CSV the
// analysis notebooks consume, and a per-group summary for humans.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/aclements/go-moremath/stats"
	"github.com/dustin/go-humanize"

	"github.com/nballoc/allocbench/collect"
)

// GroupKey identifies the runs that repeat the same measurement.
type GroupKey struct {
	Test      string `json:"test"`
	Allocator string `json:"allocator"`
	Size      string `json:"size"`
	Threads   string `json:"threads"`
}

// GroupSummary aggregates the runs of one group. The statistics are zero
// when Runs is zero.
type GroupSummary struct {
	GroupKey

	Runs    int     `json:"runs"`
	Missing int     `json:"missing"`
	Mean    float64 `json:"mean"`
	Median  float64 `json:"median"`
	StdDev  float64 `json:"stddev"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// Summarize groups rows by everything but the run, in first-seen order.
// Rows whose time is the sentinel or not a number count as missing.
func Summarize(rows []collect.Row) []GroupSummary {
	var (
		order  []GroupKey
		values = make(map[GroupKey][]float64)
		miss   = make(map[GroupKey]int)
	)

	for _, r := range rows {
		key := GroupKey{
			Test:      r.Test,
			Allocator: r.Allocator,
			Size:      r.Size,
			Threads:   r.Threads,
		}

		if _, seen := values[key]; !seen {
			order = append(order, key)
			values[key] = nil
		}

		v, err := strconv.ParseFloat(r.Time, 64)
		if r.Missing() || err != nil || math.IsNaN(v) {
			miss[key]++

			continue
		}

		values[key] = append(values[key], v)
	}

	out := make([]GroupSummary, 0, len(order))
	for _, key := range order {
		xs := values[key]
		sum := GroupSummary{GroupKey: key, Runs: len(xs), Missing: miss[key]}

		if len(xs) > 0 {
			sample := stats.Sample{Xs: xs}
			sum.Mean = sample.Mean()
			sum.Median = sample.Quantile(0.5)
			sum.Min, sum.Max = sample.Bounds()

			if len(xs) > 1 {
				sum.StdDev = sample.StdDev()
			}
		}

		out = append(out, sum)
	}

	return out
}

// Generate writes a markdown table of the summaries. The last column
// compares each mean to the fastest allocator for the same test, size and
// thread count.
func Generate(w io.Writer, summaries []GroupSummary) error {
	if len(summaries) == 0 {
		return fmt.Errorf("no results to report")
	}

	fastest := findFastest(summaries)

	fmt.Fprintln(w, "## Allocator Benchmark Summary")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "| Test | Allocator | Size | Threads | Runs | Missing "+
		"| Mean | Median | StdDev | Min | Max | vs best |")
	fmt.Fprintln(w, "|------|-----------|------|---------|------|---------"+
		"|------|--------|--------|-----|-----|---------|")

	for _, s := range summaries {
		ratio := "-"

		best := fastest[benchPoint(s.GroupKey)]
		if s.Runs > 0 && best > 0 {
			ratio = fmt.Sprintf("%.2fx", s.Mean/best)
		}

		fmt.Fprintf(w, "| %s | %s | %s | %s | %d | %d | %s | %s | %s | %s | %s | %s |\n",
			s.Test,
			s.Allocator,
			s.Size,
			s.Threads,
			s.Runs,
			s.Missing,
			formatClocks(s.Runs, s.Mean),
			formatClocks(s.Runs, s.Median),
			formatClocks(s.Runs, s.StdDev),
			formatClocks(s.Runs, s.Min),
			formatClocks(s.Runs, s.Max),
			ratio,
		)
	}

	return nil
}

// GenerateJSON writes summaries as JSON to w.
func GenerateJSON(w io.Writer, summaries []GroupSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(summaries)
}

func benchPoint(k GroupKey) GroupKey {
	k.Allocator = ""

	return k
}

func findFastest(summaries []GroupSummary) map[GroupKey]float64 {
	fastest := make(map[GroupKey]float64)

	for _, s := range summaries {
		if s.Runs == 0 || s.Mean <= 0 {
			continue
		}

		p := benchPoint(s.GroupKey)
		if cur, ok := fastest[p]; !ok || s.Mean < cur {
			fastest[p] = s.Mean
		}
	}

	return fastest
}

func formatClocks(runs int, v float64) string {
	if runs == 0 {
		return "-"
	}

	return humanize.Comma(int64(math.Round(v)))
}

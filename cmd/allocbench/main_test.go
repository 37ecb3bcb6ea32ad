package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nballoc/allocbench/collect"
	"github.com/nballoc/allocbench/timer"
)

const testConfig = `# two allocators, five runs
TEST_list="TB_threadtest"
ALLOC_list="libc nballoc"
SIZE_list="16 4096"
THREAD_list="1 2 4"
RUN_list=$(seq 5)
MIN=16
MAX=4096
NUM_LEVELS=10
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setup writes testConfig into a fresh directory and returns the config
// path and a results directory inside it.
func setup(t *testing.T, config string) (string, string) {
	t.Helper()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.sh")
	if err := os.WriteFile(cfgPath, []byte(config), 0o644); err != nil {
		t.Fatal(err)
	}

	return cfgPath, filepath.Join(dir, "results")
}

func synthesize(t *testing.T, src sourceOptions, seed int64, missing float64) {
	t.Helper()

	err := runSynth(context.Background(), discardLogger(), synthConfig{
		source:  src,
		seed:    seed,
		missing: missing,
	})
	if err != nil {
		t.Fatalf("runSynth failed: %v", err)
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}

	return records
}

func TestConvertDeterministic(t *testing.T) {
	cfgPath, results := setup(t, testConfig)
	src := sourceOptions{configPath: cfgPath, resultsDir: results}
	synthesize(t, src, 7, 0.1)

	out := t.TempDir()
	outputs := []string{filepath.Join(out, "a.csv"), filepath.Join(out, "b.csv")}

	for _, o := range outputs {
		if err := runConvert(context.Background(), discardLogger(), convertConfig{
			source: src,
			output: o,
		}); err != nil {
			t.Fatalf("runConvert(%s) failed: %v", o, err)
		}
	}

	a, err := os.ReadFile(outputs[0])
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(outputs[1])
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(a, b) {
		t.Error("two conversions of the same directory differ")
	}

	records := readCSV(t, outputs[0])
	if want := 1 + 1*2*2*3*5; len(records) != want {
		t.Errorf("got %d records, want %d", len(records), want)
	}
}

func TestConvertSeqRuns(t *testing.T) {
	cfgPath, results := setup(t, testConfig)
	src := sourceOptions{configPath: cfgPath, resultsDir: results}
	synthesize(t, src, 1, 0)

	output := filepath.Join(t.TempDir(), "out.csv")
	if err := runConvert(context.Background(), discardLogger(), convertConfig{
		source: src,
		output: output,
	}); err != nil {
		t.Fatalf("runConvert failed: %v", err)
	}

	records := readCSV(t, output)

	var runs []string
	for _, r := range records[1:6] {
		runs = append(runs, r[4])
	}

	if diff := cmp.Diff([]string{"1", "2", "3", "4", "5"}, runs); diff != "" {
		t.Errorf("runs mismatch (-want +got):\n%s", diff)
	}

	for _, r := range records[1:] {
		if r[5] == collect.Sentinel {
			t.Errorf("complete sweep has NaN in %v", r)
		}
	}
}

func TestConvertExactTable(t *testing.T) {
	cfgPath, results := setup(t, `TEST_list=malloc
ALLOC_list="libc jemalloc"
SIZE_list=16
THREAD_list=1
RUN_list=1
MIN=16
MAX=16
NUM_LEVELS=1
`)

	if err := os.MkdirAll(results, 0o755); err != nil {
		t.Fatal(err)
	}
	body := "USING ALLOCATOR: libc\n" + timer.Line(12345) + "\n"
	if err := os.WriteFile(filepath.Join(results, "malloc-libc-sz16-TH1-R1"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	output := filepath.Join(t.TempDir(), "out.csv")
	if err := runConvert(context.Background(), discardLogger(), convertConfig{
		source: sourceOptions{configPath: cfgPath, resultsDir: results},
		output: output,
	}); err != nil {
		t.Fatalf("runConvert failed: %v", err)
	}

	got, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}

	want := "Test,Allocator,Size,Threads,Run,Time\n" +
		"malloc,libc,16,1,1,12345\n" +
		"malloc,jemalloc,16,1,1,NaN\n"

	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestConvertStrictWritesNothing(t *testing.T) {
	cfgPath, results := setup(t, testConfig)
	src := sourceOptions{configPath: cfgPath, resultsDir: results}
	synthesize(t, src, 3, 1)

	output := filepath.Join(t.TempDir(), "out.csv")
	err := runConvert(context.Background(), discardLogger(), convertConfig{
		source: src,
		output: output,
		policy: collect.Strict,
	})
	if !errors.Is(err, collect.ErrIncomplete) {
		t.Fatalf("err = %v, want ErrIncomplete", err)
	}

	if _, err := os.Stat(output); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("strict failure left %s behind (stat err %v)", output, err)
	}
}

func TestConvertMissingConfig(t *testing.T) {
	err := runConvert(context.Background(), discardLogger(), convertConfig{
		source: sourceOptions{configPath: filepath.Join(t.TempDir(), "config.sh")},
		output: filepath.Join(t.TempDir(), "out.csv"),
	})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}

func TestRootCommand(t *testing.T) {
	cfgPath, results := setup(t, testConfig)
	output := filepath.Join(t.TempDir(), "table.csv")
	db := filepath.Join(t.TempDir(), "results.db")

	execute := func(args ...string) string {
		t.Helper()

		var stdout bytes.Buffer

		root := newRootCmd(discardLogger(), new(slog.LevelVar))
		root.SetArgs(append([]string{"--config", cfgPath, "--results-dir", results, "-q"}, args...))
		root.SetOut(&stdout)
		root.SetErr(io.Discard)

		if err := root.ExecuteContext(context.Background()); err != nil {
			t.Fatalf("allocbench %v failed: %v", args, err)
		}

		return stdout.String()
	}

	execute("synth", "--seed", "11")
	execute("--sqlite", db, output)

	if records := readCSV(t, output); len(records) != 61 {
		t.Errorf("got %d records, want 61", len(records))
	}

	summary := execute("summary", "--sqlite", db)
	for _, want := range []string{"TB_threadtest", "libc", "nballoc", "4096"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}

	direct := execute("summary")
	if direct != summary {
		t.Errorf("summary from results dir differs from stored sweep:\n%s\nvs\n%s", direct, summary)
	}
}

func TestPlotWritesCharts(t *testing.T) {
	cfgPath, results := setup(t, testConfig)
	src := sourceOptions{configPath: cfgPath, resultsDir: results}
	synthesize(t, src, 5, 0)

	outDir := filepath.Join(t.TempDir(), "plots")
	if err := runPlot(context.Background(), discardLogger(), plotConfig{
		rows:   rowSource{source: src},
		outDir: outDir,
	}); err != nil {
		t.Fatalf("runPlot failed: %v", err)
	}

	for _, name := range []string{"TB_threadtest-sz16.png", "TB_threadtest-sz4096.png"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("chart %s: %v", name, err)
		}
	}
}

func TestSynthRejectsFractions(t *testing.T) {
	cfgPath, results := setup(t, testConfig)

	err := runSynth(context.Background(), discardLogger(), synthConfig{
		source:  sourceOptions{configPath: cfgPath, resultsDir: results},
		missing: 0.7,
		corrupt: 0.5,
	})
	if !errors.Is(err, errFraction) {
		t.Errorf("err = %v, want errFraction", err)
	}
}

func TestSummaryEmptyStore(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")

	err := runSummary(context.Background(), discardLogger(), summaryConfig{
		rows: rowSource{sqlitePath: db},
		out:  io.Discard,
	})
	if !errors.Is(err, errNoSweeps) {
		t.Errorf("err = %v, want errNoSweeps", err)
	}
}

// Package synth generates deterministic synthetic result directories for a
// sweep. Each file looks like the output of the threadtest benchmark, so the
// rest of the pipeline can be exercised without running any allocator.
package synth

import (
	"fmt"
	"hash/fnv"
	"io"
	"math"
	mrand "math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nballoc/allocbench/sweep"
	"github.com/nballoc/allocbench/timer"
)

// DefaultBaseClocks is the clock count of a single-threaded run of the
// reference allocator at the smallest size.
const DefaultBaseClocks = 1_000_000_000

// Config controls generation.
type Config struct {
	Seed       int64
	BaseClocks uint64

	// Missing is the fraction of tuples that get no file at all.
	Missing float64

	// Corrupt is the fraction of tuples whose file has no timer line.
	Corrupt float64
}

// Summary counts the files produced by Generate.
type Summary struct {
	Written int
	Missing int
	Corrupt int
}

// Generator produces deterministic result files from a Config.
type Generator struct {
	cfg Config
	rng *mrand.Rand
}

// NewGenerator creates a Generator from the given Config.
func NewGenerator(cfg Config) *Generator {
	if cfg.BaseClocks == 0 {
		cfg.BaseClocks = DefaultBaseClocks
	}

	return &Generator{
		cfg: cfg,
		rng: mrand.New(mrand.NewSource(cfg.Seed)),
	}
}

// Generate writes one result file per tuple into dir, creating it if
// needed.
func (g *Generator) Generate(dir string, tuples []sweep.Tuple) (Summary, error) {
	var summary Summary

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return summary, fmt.Errorf("create %s: %w", dir, err)
	}

	for _, t := range tuples {
		// Draw both values for every tuple so the stream stays aligned
		// whatever the fractions are.
		u := g.rng.Float64()
		noise := g.rng.NormFloat64()

		switch {
		case u < g.cfg.Missing:
			summary.Missing++

			continue

		case u < g.cfg.Missing+g.cfg.Corrupt:
			if err := g.writeFile(dir, t, func(w io.Writer) error {
				return writeCrash(w, t)
			}); err != nil {
				return summary, err
			}

			summary.Corrupt++

		default:
			clocks := g.Clocks(t, noise)
			if err := g.writeFile(dir, t, func(w io.Writer) error {
				return WriteResult(w, t, clocks)
			}); err != nil {
				return summary, err
			}

			summary.Written++
		}
	}

	return summary, nil
}

func (g *Generator) writeFile(dir string, t sweep.Tuple, body func(io.Writer) error) error {
	path := filepath.Join(dir, t.Filename())

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := body(f); err != nil {
		f.Close()

		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	return nil
}

// Clocks models the clock count of t. Every allocator gets a fixed factor
// derived from its name; larger sizes and more threads cost more. noise is
// a standard normal deviate scaled to 3%.
func (g *Generator) Clocks(t sweep.Tuple, noise float64) uint64 {
	c := float64(g.cfg.BaseClocks) * allocFactor(t.Allocator)

	if size, err := strconv.ParseFloat(t.Size, 64); err == nil && size > 1 {
		c *= 1 + math.Log2(size)/12
	}

	if th, err := strconv.ParseFloat(t.Threads, 64); err == nil && th > 1 {
		c *= 1 + math.Log2(th)/2
	}

	c *= 1 + 0.03*noise

	return uint64(math.Max(1, math.Round(c)))
}

func allocFactor(name string) float64 {
	h := fnv.New32a()
	h.Write([]byte(name))

	return 0.75 + float64(h.Sum32()%100)/100
}

// WriteResult writes a threadtest-style result for t with the given clock
// count.
func WriteResult(w io.Writer, t sweep.Tuple, clocks uint64) error {
	threads, err := strconv.Atoi(t.Threads)
	if err != nil || threads < 1 {
		threads = 1
	}

	const opsPerThread = 2_000_000

	if _, err := fmt.Fprintf(w, "USING ALLOCATOR: %s\n%s\n", t.Allocator, timer.Line(clocks)); err != nil {
		return err
	}

	fmt.Fprintln(w, "_______________________________________")
	fmt.Fprintf(w, "tot_ops expected: %10d\n", opsPerThread)

	for i := 0; i < threads; i++ {
		fmt.Fprintf(w, "[%d]: TOT_OPS      %10d: \t allocati: %10d ;\t dealloca: %10d ;\t failures: %10d ;\t memory  : %10d Bytes \n",
			i, opsPerThread, opsPerThread/2, opsPerThread/2, 0, 0)
	}

	fmt.Fprintln(w, "_______________________________________")
	fmt.Fprintf(w, "Total ops exp     %10d\n", opsPerThread*threads)
	fmt.Fprintf(w, "total ops done:   %10d\n", opsPerThread*threads)
	_, err = fmt.Fprintf(w, "total failures:   %10d\n", 0)

	return err
}

func writeCrash(w io.Writer, t sweep.Tuple) error {
	_, err := fmt.Fprintf(w, "USING ALLOCATOR: %s\nSegmentation fault (core dumped)\n", t.Allocator)

	return err
}

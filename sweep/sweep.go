// Package sweep describes an allocator benchmark sweep: the lists of tests,
// allocators, sizes, thread counts and runs whose Cartesian product names
// every expected result file.
package sweep

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingKey is returned when a required configuration variable is
	// not defined.
	ErrMissingKey = errors.New("missing config variable")

	// ErrEmptyList is returned when one of the five sweep lists has no
	// tokens.
	ErrEmptyList = errors.New("empty sweep list")
)

// Config is a loaded sweep configuration. It is never mutated after Load.
type Config struct {
	Tests      []string
	Allocators []string
	Sizes      []string
	Threads    []string
	Runs       []string

	// Min, Max and NumLevels only take part in naming the results
	// directory, so they are kept verbatim.
	Min       string
	Max       string
	NumLevels string
}

// Tuple is one point of the sweep.
type Tuple struct {
	Test      string
	Allocator string
	Size      string
	Threads   string
	Run       string
}

// Validate reports the first empty list, if any.
func (c Config) Validate() error {
	lists := []struct {
		name string
		vals []string
	}{
		{"TEST_list", c.Tests},
		{"ALLOC_list", c.Allocators},
		{"SIZE_list", c.Sizes},
		{"THREAD_list", c.Threads},
		{"RUN_list", c.Runs},
	}

	for _, l := range lists {
		if len(l.vals) == 0 {
			return fmt.Errorf("%w: %s", ErrEmptyList, l.name)
		}
	}

	return nil
}

// ResultsDir returns the directory name the benchmark scripts store their
// output in: results_{NUM_LEVELS}_{MAX}_{MIN}.
func (c Config) ResultsDir() string {
	return fmt.Sprintf("results_%s_%s_%s", c.NumLevels, c.Max, c.Min)
}

// Count returns the number of tuples in the sweep.
func (c Config) Count() int {
	return len(c.Tests) * len(c.Allocators) * len(c.Sizes) *
		len(c.Threads) * len(c.Runs)
}

// Tuples enumerates the sweep. See Product.
func (c Config) Tuples() []Tuple {
	return Product(c.Tests, c.Allocators, c.Sizes, c.Threads, c.Runs)
}

// Product returns the ordered Cartesian product of the five lists. The test
// is the outermost loop and the run the innermost. Repeated tokens yield
// repeated tuples.
func Product(tests, allocs, sizes, threads, runs []string) []Tuple {
	n := len(tests) * len(allocs) * len(sizes) * len(threads) * len(runs)
	out := make([]Tuple, 0, n)

	for _, test := range tests {
		for _, alloc := range allocs {
			for _, size := range sizes {
				for _, th := range threads {
					for _, run := range runs {
						out = append(out, Tuple{
							Test:      test,
							Allocator: alloc,
							Size:      size,
							Threads:   th,
							Run:       run,
						})
					}
				}
			}
		}
	}

	return out
}

// Filename returns the name the benchmark scripts give the output of t:
// test-alloc-szSIZE-THthreads-Rrun.
func (t Tuple) Filename() string {
	return t.Test + "-" + t.Allocator + "-sz" + t.Size + "-TH" + t.Threads + "-R" + t.Run
}

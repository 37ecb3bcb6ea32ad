// Package collect reads the timer value of every tuple in a sweep out of its
// result file.
package collect

import (
	"errors"
	"fmt"

	"github.com/nballoc/allocbench/sweep"
)

// Sentinel is recorded as the time of a tuple whose value is unavailable.
const Sentinel = "NaN"

var (
	// ErrMissingFile means the result file could not be opened.
	ErrMissingFile = errors.New("missing result file")

	// ErrMissingTimer means the result file has no timer line.
	ErrMissingTimer = errors.New("missing timer")

	// ErrRead means the result file could be opened but not read.
	ErrRead = errors.New("read result file")

	// ErrIncomplete is returned in Strict mode when any tuple failed.
	ErrIncomplete = errors.New("incomplete sweep")
)

// ExtractError describes why the time of one tuple is unavailable.
type ExtractError struct {
	Tuple sweep.Tuple
	Path  string
	Err   error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// Row is one line of the output table.
type Row struct {
	sweep.Tuple

	// Time is the clock count as printed by the benchmark, or Sentinel.
	Time string

	// Err is set when Time is Sentinel. It is never serialized.
	Err error
}

// Missing reports whether the row carries the sentinel.
func (r Row) Missing() bool { return r.Err != nil }

// Result holds the rows of a sweep in enumeration order.
type Result struct {
	Rows    []Row
	Missing int
}

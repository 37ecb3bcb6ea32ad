// Package timer reads the clock count that the allocator benchmarks print
// when they finish, e.g.
//
//	Timer  (clocks): 1849201176
//
// The line is treated as a small text protocol with one rule:
//
//	timer-line = *OCTET "Timer" 1*WSP "(clocks):" *WSP 1*DIGIT *OCTET
//	WSP        = SP / HTAB
//
// The first line in a file that satisfies the rule wins. Lines that start
// the rule but break it are skipped, not reported.
package timer

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrNotFound is returned by Parse when no timer line is present.
var ErrNotFound = errors.New("no timer line")

const (
	keyword = "Timer"
	unit    = "(clocks):"
)

// Parse scans r for the first timer line and returns its clock count
// verbatim. Lines are not limited in length.
func Parse(r io.Reader) (string, error) {
	br := bufio.NewReader(r)

	for {
		line, err := br.ReadBytes('\n')
		if v, ok := ParseLine(line); ok {
			return v, nil
		}

		switch {
		case err == io.EOF:
			return "", ErrNotFound
		case err != nil:
			return "", fmt.Errorf("read: %w", err)
		}
	}
}

// ParseLine applies the timer rule to a single line.
func ParseLine(line []byte) (string, bool) {
	for {
		i := bytes.Index(line, []byte(keyword))
		if i < 0 {
			return "", false
		}

		line = line[i+len(keyword):]
		if v, ok := parseRest(line); ok {
			return v, true
		}
	}
}

// parseRest matches 1*WSP "(clocks):" *WSP 1*DIGIT after the keyword.
func parseRest(b []byte) (string, bool) {
	n := spaces(b)
	if n == 0 {
		return "", false
	}
	b = b[n:]

	if !bytes.HasPrefix(b, []byte(unit)) {
		return "", false
	}
	b = b[len(unit):]
	b = b[spaces(b):]

	end := 0
	for end < len(b) && b[end] >= '0' && b[end] <= '9' {
		end++
	}
	if end == 0 {
		return "", false
	}

	return string(b[:end]), true
}

func spaces(b []byte) int {
	n := 0
	for n < len(b) && (b[n] == ' ' || b[n] == '\t') {
		n++
	}

	return n
}

// Line renders a canonical timer line for v, in the layout the benchmarks
// print.
func Line(v uint64) string {
	return fmt.Sprintf("%s  %s %d", keyword, unit, v)
}

// Package progress draws a single-line progress bar on a terminal.
package progress

import (
	"fmt"
	"io"
	"strings"
)

// Width is the number of cells in the bar.
const Width = 50

// Bar redraws itself in place with a carriage return:
//
//	[=========================                         ] 12/24
type Bar struct {
	w     io.Writer
	drawn bool
}

// New returns a Bar drawing to w. A nil w yields a Bar that draws nothing.
func New(w io.Writer) *Bar {
	return &Bar{w: w}
}

// Update redraws the bar for done out of total steps.
func (b *Bar) Update(done, total int) {
	if b == nil || b.w == nil || total <= 0 {
		return
	}

	fmt.Fprint(b.w, "\r"+Render(done, total))
	b.drawn = true
}

// Done terminates the bar line.
func (b *Bar) Done() {
	if b == nil || b.w == nil || !b.drawn {
		return
	}

	fmt.Fprintln(b.w)
	b.drawn = false
}

// Render returns the bar text for done out of total steps.
func Render(done, total int) string {
	if total <= 0 {
		total = 1
	}
	done = min(max(done, 0), total)

	filled := Width * done / total

	return fmt.Sprintf("[%s%s] %d/%d",
		strings.Repeat("=", filled),
		strings.Repeat(" ", Width-filled),
		done, total,
	)
}

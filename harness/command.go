package harness

import (
	"errors"
	"strings"

	"github.com/nballoc/allocbench/sweep"
)

// DefaultCommand runs the benchmark binary built for a test/allocator pair
// with the thread count and object size it expects on its command line.
const DefaultCommand = "./{test}-{alloc} {threads} {size}"

// ErrEmptyCommand is returned by ParseCommand for a blank template.
var ErrEmptyCommand = errors.New("empty command template")

// Command is a command line template. Each word may contain the
// placeholders {test}, {alloc}, {size}, {threads} and {run}.
type Command struct {
	words []string
}

// ParseCommand splits a template on whitespace.
func ParseCommand(tmpl string) (Command, error) {
	words := strings.Fields(tmpl)
	if len(words) == 0 {
		return Command{}, ErrEmptyCommand
	}

	return Command{words: words}, nil
}

// String returns the template.
func (c Command) String() string {
	return strings.Join(c.words, " ")
}

// Expand resolves the template for t and returns the binary and its
// arguments.
func (c Command) Expand(t sweep.Tuple) (string, []string) {
	r := strings.NewReplacer(
		"{test}", t.Test,
		"{alloc}", t.Allocator,
		"{size}", t.Size,
		"{threads}", t.Threads,
		"{run}", t.Run,
	)

	out := make([]string, len(c.words))
	for i, w := range c.words {
		out[i] = r.Replace(w)
	}

	return out[0], out[1:]
}

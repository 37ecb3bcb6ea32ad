package sweep

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// seqExpr matches the command substitutions config.sh files use to spell
// out run numbers: $(seq N), $(seq A B) and their backtick forms.
var seqExpr = regexp.MustCompile(
	`\$\(\s*seq\s+(\d+)(?:\s+(\d+))?\s*\)|` + "`" + `\s*seq\s+(\d+)(?:\s+(\d+))?\s*` + "`",
)

// ExpandSeq replaces every seq substitution in s with the explicit
// space-separated sequence it would print, as seq(1) does: seq N counts
// from 1 and seq 0 prints nothing. An empty RUN_list is later rejected by
// Validate; older converters turned "$(seq 0)" into the single run "0"
// instead, which the benchmark scripts never produce.
func ExpandSeq(s string) (string, error) {
	var firstErr error

	out := seqExpr.ReplaceAllStringFunc(s, func(m string) string {
		sub := seqExpr.FindStringSubmatch(m)

		a, b := sub[1], sub[2]
		if a == "" {
			a, b = sub[3], sub[4]
		}

		first, last := "1", a
		if b != "" {
			first, last = a, b
		}

		seq, err := sequence(first, last)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("expand %q: %w", m, err)
		}

		return seq
	})

	if firstErr != nil {
		return "", firstErr
	}

	return out, nil
}

func sequence(first, last string) (string, error) {
	lo, err := strconv.Atoi(first)
	if err != nil {
		return "", err
	}

	hi, err := strconv.Atoi(last)
	if err != nil {
		return "", err
	}

	if hi < lo {
		return "", nil
	}

	nums := make([]string, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		nums = append(nums, strconv.Itoa(i))
	}

	return strings.Join(nums, " "), nil
}

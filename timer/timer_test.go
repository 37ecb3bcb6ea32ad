package timer

import (
	"errors"
	"strings"
	"testing"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{"Timer (clocks): 12345", "12345", true},
		{"Timer  (clocks): 1849201176", "1849201176", true},
		{"Timer\t(clocks):\t42", "42", true},
		{"Timer (clocks):7", "7", true},
		{"  [bench] Timer (clocks): 99 cycles", "99", true},
		{"Timer (clocks): 12a", "12", true},
		{"Timer(clocks): 1", "", false},
		{"Timer (clocks): ", "", false},
		{"Timer (cycles): 12", "", false},
		{"timer (clocks): 12", "", false},
		{"Timer (clocks): x Timer (clocks): 5", "5", true},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseLine([]byte(tt.line))
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseLine(%q) = %q, %v; want %q, %v",
				tt.line, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseFirstMatchWins(t *testing.T) {
	input := strings.Join([]string{
		"USING ALLOCATOR: nballoc",
		"Timer  (clocks): 111",
		"_______________________________________",
		"Timer  (clocks): 222",
	}, "\n")

	got, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got != "111" {
		t.Errorf("Parse = %q, want 111", got)
	}
}

func TestParseNotFound(t *testing.T) {
	_, err := Parse(strings.NewReader("USING ALLOCATOR: libc\ntotal allocs: 10\n"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLineRoundTrip(t *testing.T) {
	got, ok := ParseLine([]byte(Line(1849201176)))
	if !ok || got != "1849201176" {
		t.Errorf("ParseLine(Line(1849201176)) = %q, %v", got, ok)
	}
}

func TestParseAfterLongLine(t *testing.T) {
	input := strings.Repeat("x", 2<<20) + "\n" + Line(42) + "\n"

	got, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got != "42" {
		t.Errorf("Parse = %q, want 42", got)
	}
}

func TestParseLastLineWithoutNewline(t *testing.T) {
	got, err := Parse(strings.NewReader("USING ALLOCATOR: libc\nTimer (clocks): 7"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got != "7" {
		t.Errorf("Parse = %q, want 7", got)
	}
}

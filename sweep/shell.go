package sweep

import (
	"fmt"
	"io"
	"strings"
)

// A SyntaxError reports a malformed assignment in a shell-style config.
type SyntaxError struct {
	FileName string
	Line     int
	Msg      string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.FileName, e.Line, e.Msg)
}

// ParseVars reads the variable assignments of a config.sh file without
// executing it. Recognized statements are NAME=value, optionally prefixed by
// export, where value may mix bare, 'single' and "double" quoted parts.
// $NAME and ${NAME} expand from earlier assignments in the same file;
// command substitutions are kept verbatim. Any other statement is skipped.
func ParseVars(r io.Reader, fileName string) (map[string]string, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileName, err)
	}

	if fileName == "" {
		fileName = "<config>"
	}

	p := &shellParser{
		src:  string(src),
		line: 1,
		file: fileName,
		vars: make(map[string]string),
	}

	if err := p.parse(); err != nil {
		return nil, err
	}

	return p.vars, nil
}

// ParseShell parses a config.sh file into a Config.
func ParseShell(r io.Reader, fileName string) (Config, error) {
	vars, err := ParseVars(r, fileName)
	if err != nil {
		return Config{}, err
	}

	return FromVars(vars)
}

// FromVars maps config.sh variables onto a Config.
func FromVars(vars map[string]string) (Config, error) {
	get := func(key string) (string, error) {
		v, ok := vars[key]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrMissingKey, key)
		}

		return v, nil
	}

	var (
		cfg  Config
		vals = make(map[string]string, 8)
	)

	for _, key := range []string{
		"TEST_list", "ALLOC_list", "SIZE_list", "THREAD_list", "RUN_list",
		"MIN", "MAX", "NUM_LEVELS",
	} {
		v, err := get(key)
		if err != nil {
			return Config{}, err
		}

		vals[key] = v
	}

	runs, err := ExpandSeq(vals["RUN_list"])
	if err != nil {
		return Config{}, fmt.Errorf("RUN_list: %w", err)
	}

	cfg.Tests = strings.Fields(vals["TEST_list"])
	cfg.Allocators = strings.Fields(vals["ALLOC_list"])
	cfg.Sizes = strings.Fields(vals["SIZE_list"])
	cfg.Threads = strings.Fields(vals["THREAD_list"])
	cfg.Runs = strings.Fields(runs)
	cfg.Min = strings.TrimSpace(vals["MIN"])
	cfg.Max = strings.TrimSpace(vals["MAX"])
	cfg.NumLevels = strings.TrimSpace(vals["NUM_LEVELS"])

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

type shellParser struct {
	src  string
	pos  int
	line int
	file string
	vars map[string]string
}

func (p *shellParser) eof() bool { return p.pos >= len(p.src) }

func (p *shellParser) peek() byte { return p.src[p.pos] }

func (p *shellParser) errorf(line int, format string, args ...any) error {
	return &SyntaxError{FileName: p.file, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func (p *shellParser) parse() error {
	for {
		p.skipBlank()
		if p.eof() {
			return nil
		}

		if p.peek() == '#' {
			p.skipLine()

			continue
		}

		name, ok := p.assignment()
		if !ok {
			p.skipLine()

			continue
		}

		val, err := p.value()
		if err != nil {
			return err
		}

		p.vars[name] = val
	}
}

func (p *shellParser) skipBlank() {
	for !p.eof() {
		switch p.peek() {
		case '\n':
			p.line++
		case ' ', '\t', '\r', ';':
		default:
			return
		}
		p.pos++
	}
}

func (p *shellParser) skipSpaces() {
	for !p.eof() && (p.peek() == ' ' || p.peek() == '\t') {
		p.pos++
	}
}

func (p *shellParser) skipLine() {
	for !p.eof() && p.peek() != '\n' {
		p.pos++
	}
}

// assignment consumes "[export ]NAME=" and returns NAME. On failure the
// position is left untouched.
func (p *shellParser) assignment() (string, bool) {
	start := p.pos

	if strings.HasPrefix(p.src[p.pos:], "export") {
		rest := p.src[p.pos+len("export"):]
		if len(rest) > 0 && (rest[0] == ' ' || rest[0] == '\t') {
			p.pos += len("export")
			p.skipSpaces()
		}
	}

	name := p.ident()
	if name == "" || p.eof() || p.peek() != '=' {
		p.pos = start

		return "", false
	}

	p.pos++

	return name, true
}

func (p *shellParser) ident() string {
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if c == '_' || isLetter(c) || (p.pos > start && isDigit(c)) {
			p.pos++

			continue
		}

		break
	}

	return p.src[start:p.pos]
}

func (p *shellParser) value() (string, error) {
	var b strings.Builder

	for !p.eof() {
		switch c := p.peek(); c {
		case ' ', '\t', '\r', '\n', ';':
			return b.String(), nil

		case '\'':
			start := p.line
			p.pos++

			end := strings.IndexByte(p.src[p.pos:], '\'')
			if end < 0 {
				return "", p.errorf(start, "unterminated single quote")
			}

			lit := p.src[p.pos : p.pos+end]
			p.line += strings.Count(lit, "\n")
			b.WriteString(lit)
			p.pos += end + 1

		case '"':
			if err := p.doubleQuoted(&b); err != nil {
				return "", err
			}

		case '\\':
			p.pos++
			if p.eof() {
				break
			}

			if p.peek() == '\n' {
				p.line++
			} else {
				b.WriteByte(p.peek())
			}
			p.pos++

		case '$', '`':
			if err := p.substitution(&b); err != nil {
				return "", err
			}

		default:
			b.WriteByte(c)
			p.pos++
		}
	}

	return b.String(), nil
}

func (p *shellParser) doubleQuoted(b *strings.Builder) error {
	start := p.line
	p.pos++

	for !p.eof() {
		switch c := p.peek(); c {
		case '"':
			p.pos++

			return nil

		case '\\':
			p.pos++
			if p.eof() {
				continue
			}

			switch n := p.peek(); n {
			case '$', '`', '"', '\\':
				b.WriteByte(n)
			case '\n':
				p.line++
			default:
				b.WriteByte('\\')
				b.WriteByte(n)
			}
			p.pos++

		case '$', '`':
			if err := p.substitution(b); err != nil {
				return err
			}

		case '\n':
			p.line++
			b.WriteByte(c)
			p.pos++

		default:
			b.WriteByte(c)
			p.pos++
		}
	}

	return p.errorf(start, "unterminated double quote")
}

// substitution handles a '$' or '`' at the current position. Variable
// references are expanded; command substitutions are copied through.
func (p *shellParser) substitution(b *strings.Builder) error {
	start := p.line

	if p.peek() == '`' {
		end := strings.IndexByte(p.src[p.pos+1:], '`')
		if end < 0 {
			return p.errorf(start, "unterminated command substitution")
		}

		lit := p.src[p.pos : p.pos+end+2]
		p.line += strings.Count(lit, "\n")
		b.WriteString(lit)
		p.pos += len(lit)

		return nil
	}

	p.pos++ // '$'
	if p.eof() {
		b.WriteByte('$')

		return nil
	}

	switch c := p.peek(); {
	case c == '(':
		depth := 0
		from := p.pos - 1

		for ; !p.eof(); p.pos++ {
			switch p.peek() {
			case '(':
				depth++
			case ')':
				depth--
			case '\n':
				p.line++
			}

			if depth == 0 {
				p.pos++
				b.WriteString(p.src[from:p.pos])

				return nil
			}
		}

		return p.errorf(start, "unterminated command substitution")

	case c == '{':
		end := strings.IndexByte(p.src[p.pos:], '}')
		if end < 0 {
			return p.errorf(start, "unterminated ${")
		}

		name := p.src[p.pos+1 : p.pos+end]
		p.pos += end + 1
		b.WriteString(p.vars[name])

		return nil

	case c == '_' || isLetter(c):
		b.WriteString(p.vars[p.ident()])

		return nil

	default:
		b.WriteByte('$')

		return nil
	}
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

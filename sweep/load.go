package sweep

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a sweep configuration from path. Files ending in .yaml or .yml
// are decoded as YAML; anything else is parsed as a config.sh file.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(f)
	default:
		return ParseShell(f, path)
	}
}

// yamlConfig mirrors the config.sh variables in YAML form:
//
//	tests: [threadtest, linux-scalability]
//	allocators: [libc, nballoc]
//	sizes: [16, 4096]
//	threads: "1 2 4 8"
//	runs: $(seq 5)
//	min: 8
//	max: 4096
//	num_levels: 10
type yamlConfig struct {
	Tests      tokenList `yaml:"tests"`
	Allocators tokenList `yaml:"allocators"`
	Sizes      tokenList `yaml:"sizes"`
	Threads    tokenList `yaml:"threads"`
	Runs       tokenList `yaml:"runs"`
	Min        scalar    `yaml:"min"`
	Max        scalar    `yaml:"max"`
	NumLevels  scalar    `yaml:"num_levels"`
}

// tokenList accepts either a YAML sequence or a whitespace-separated
// string, the latter subject to seq expansion.
type tokenList []string

func (l *tokenList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		s, err := ExpandSeq(value.Value)
		if err != nil {
			return err
		}
		*l = strings.Fields(s)

	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: list items must be scalars", item.Line)
			}
			out = append(out, item.Value)
		}
		*l = out

	default:
		return fmt.Errorf("line %d: expected a list or a string", value.Line)
	}

	return nil
}

type scalar string

func (s *scalar) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar", value.Line)
	}
	*s = scalar(value.Value)

	return nil
}

// LoadYAML decodes a YAML sweep configuration from r.
func LoadYAML(r io.Reader) (Config, error) {
	var raw yamlConfig
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return Config{}, fmt.Errorf("decode yaml config: %w", err)
	}

	for _, s := range []struct {
		key string
		val scalar
	}{
		{"min", raw.Min},
		{"max", raw.Max},
		{"num_levels", raw.NumLevels},
	} {
		if s.val == "" {
			return Config{}, fmt.Errorf("%w: %s", ErrMissingKey, s.key)
		}
	}

	cfg := Config{
		Tests:      raw.Tests,
		Allocators: raw.Allocators,
		Sizes:      raw.Sizes,
		Threads:    raw.Threads,
		Runs:       raw.Runs,
		Min:        string(raw.Min),
		Max:        string(raw.Max),
		NumLevels:  string(raw.NumLevels),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

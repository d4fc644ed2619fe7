package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-harness/testfile"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

const (
	InputExt  = ".in"
	OutputExt = ".out"
)

// ErrBadPattern is returned for test sources that are not a usable path or
// glob pattern.
var ErrBadPattern = errors.New("invalid test source pattern")

// SourceKind names the layout a test source was loaded from.
type SourceKind string

const (
	SourcePaired   SourceKind = "paired"
	SourceDocument SourceKind = "document"
	SourceYAML     SourceKind = "yaml"
)

// Registry loads and holds the test cases of a catalog run.
type Registry struct {
	config Config
	kind   SourceKind
	cases  []types.TestCase
	mu     sync.RWMutex
}

// Config contains registry configuration
type Config struct {
	Log log.Logger
	// Source is a directory of paired files, a glob matching input files, a
	// test document, or a YAML catalog.
	Source string
}

// NewRegistry creates a new registry instance and loads its source.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Source == "" {
		return nil, fmt.Errorf("test source is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	r := &Registry{
		config: cfg,
	}
	if err := r.load(cfg.Source); err != nil {
		return nil, fmt.Errorf("failed to load test source: %w", err)
	}

	cfg.Log.Debug("Registry loaded", "kind", r.kind, "len(cases)", len(r.cases))
	return r, nil
}

func (r *Registry) load(source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if hasGlobMeta(source) {
		if _, err := filepath.Match(source, ""); err != nil {
			return fmt.Errorf("%w %q: %v", ErrBadPattern, source, err)
		}
		r.kind = SourcePaired
		return r.loadPaired(source)
	}

	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("reading test source: %w", err)
	}

	switch {
	case info.IsDir():
		r.kind = SourcePaired
		return r.loadPaired(filepath.Join(source, "*"+InputExt))
	case isYAML(source):
		r.kind = SourceYAML
		cases, err := loadYAML(source)
		if err != nil {
			return err
		}
		r.cases = cases
	default:
		r.kind = SourceDocument
		cases, err := testfile.ParseFile(source)
		if err != nil {
			return err
		}
		r.cases = cases
	}
	return nil
}

// loadPaired loads every <name>.in matched by pattern together with its
// sibling <name>.out. Inputs without an output, and files that cannot be
// read, are logged and skipped.
func (r *Registry) loadPaired(pattern string) error {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrBadPattern, pattern, err)
	}

	for _, inputPath := range matches {
		if filepath.Ext(inputPath) != InputExt {
			continue
		}
		base := strings.TrimSuffix(inputPath, InputExt)
		outputPath := base + OutputExt

		input, err := os.ReadFile(inputPath)
		if err != nil {
			r.config.Log.Error("Skipping unreadable input file", "path", inputPath, "err", err)
			continue
		}
		output, err := os.ReadFile(outputPath)
		if errors.Is(err, os.ErrNotExist) {
			r.config.Log.Error("Input file has no corresponding output", "input", inputPath, "output", outputPath)
			continue
		}
		if err != nil {
			r.config.Log.Error("Skipping unreadable output file", "path", outputPath, "err", err)
			continue
		}

		r.cases = append(r.cases, types.NewTestCase(filepath.Base(base), input, output))
	}
	return nil
}

// GetTestCases returns the loaded test cases.
func (r *Registry) GetTestCases() []types.TestCase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cases
}

// Kind returns the layout the source was loaded from.
func (r *Registry) Kind() SourceKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.kind
}

func hasGlobMeta(path string) bool {
	return strings.ContainsAny(path, "*?[")
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// catalogFile is the YAML catalog layout. A missing input or output key
// means the field is absent.
type catalogFile struct {
	Tests []struct {
		Name   string  `yaml:"name"`
		Input  *string `yaml:"input"`
		Output *string `yaml:"output"`
	} `yaml:"tests"`
}

func loadYAML(path string) ([]types.TestCase, error) {
	log.Debug("Reading test catalog", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	var catalog catalogFile
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}

	cases := make([]types.TestCase, 0, len(catalog.Tests))
	for i, entry := range catalog.Tests {
		tc := types.TestCase{Name: entry.Name}
		if tc.Name == "" {
			tc.Name = fmt.Sprintf("test-%d", i)
		}
		if entry.Input != nil {
			tc = tc.WithInput([]byte(*entry.Input))
		}
		if entry.Output != nil {
			tc = tc.WithOutput([]byte(*entry.Output))
		}
		cases = append(cases, tc)
	}
	return cases, nil
}

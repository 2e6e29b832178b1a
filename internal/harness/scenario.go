package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Entities is a CUE file or directory declaring the entities.
	// Relative paths are resolved against the scenario file location.
	Entities string `yaml:"entities"`

	// Secret enables graph_cipher requests.
	Secret string `yaml:"secret,omitempty"`

	// Keys seeds the graph-key store before the cases run.
	Keys map[string]string `yaml:"keys,omitempty"`

	// Cases run in order against the same resolver, so later cases see
	// cache entries populated by earlier ones.
	Cases []Case `yaml:"cases"`
}

// Case is one request compiled against one entity.
type Case struct {
	Name    string            `yaml:"name"`
	Entity  string            `yaml:"entity"`
	Request map[string]string `yaml:"request"`

	// Expect is optional; a case without it only has to compile.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect lists what a case must produce. Every map is keyed by dotted load
// path, "" being the root plan. Only the listed paths are checked.
type Expect struct {
	// Error is the expected error code. When set, nothing else is checked.
	Error string `yaml:"error,omitempty"`

	Graph    string              `yaml:"graph,omitempty"`
	Strategy string              `yaml:"strategy,omitempty"`
	Select   map[string][]string `yaml:"select,omitempty"`
	Injected map[string][]string `yaml:"injected,omitempty"`
	Loads    map[string][]string `yaml:"loads,omitempty"`
	Counts   map[string][]string `yaml:"counts,omitempty"`
	Sums     map[string][]string `yaml:"sums,omitempty"`
	Window   map[string]Window   `yaml:"window,omitempty"`

	// SQLContains lists fragments the rendered root statement must contain.
	SQLContains []string `yaml:"sql_contains,omitempty"`
}

// Window is an expected offset/limit pair. A path mapped to the zero
// Window must carry no window at all.
type Window struct {
	Offset int `yaml:"offset"`
	Limit  int `yaml:"limit"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML, resolving the entities path against
// basePath.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "case:" vs "cases:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Entities != "" && !filepath.IsAbs(scenario.Entities) && basePath != "" {
		scenario.Entities = filepath.Join(basePath, scenario.Entities)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", dir)
	}

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Entities == "" {
		return fmt.Errorf("entities is required")
	}
	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(s.Cases))
	for i, c := range s.Cases {
		if c.Name == "" {
			return fmt.Errorf("case %d: name is required", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("case %d: duplicate name %q", i, c.Name)
		}
		seen[c.Name] = true
		if c.Entity == "" {
			return fmt.Errorf("case %q: entity is required", c.Name)
		}
	}
	return nil
}

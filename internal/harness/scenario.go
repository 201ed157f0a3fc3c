package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/restbridge/internal/registry"
)

// Scenario defines a conformance scenario: a sequence of compile steps
// checked against expected output and cross-step assertions.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Now freezes the compiler clock (RFC 3339). Defaults to DefaultNow.
	Now string `yaml:"now,omitempty"`

	// Registry is a directory of CUE resource definitions, relative to the
	// scenario file. Empty uses the embedded registry.
	Registry string `yaml:"registry,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step compiles one payload.
type Step struct {
	Name      string         `yaml:"name"`
	Resource  string         `yaml:"resource"`
	Operation string         `yaml:"operation"`
	Payload   map[string]any `yaml:"payload,omitempty"`

	// Advance moves the frozen clock forward before the step compiles
	// (a Go duration such as "72h").
	Advance string `yaml:"advance,omitempty"`

	// Expect is matched exactly against the compiled output. Empty
	// fields are not checked.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected output of a step.
type ExpectClause struct {
	Target string         `yaml:"target,omitempty"`
	Wire   map[string]any `yaml:"wire,omitempty"`
	Query  string         `yaml:"query,omitempty"`
}

// Assertion validates one or more step results.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Step names the step checked by the single-step assertions.
	Step string `yaml:"step,omitempty"`

	// Wire holds the entries that must be present (wire_contains).
	Wire map[string]any `yaml:"wire,omitempty"`

	// Keys lists wire keys that must be missing (wire_absent).
	Keys []string `yaml:"keys,omitempty"`

	// Contains is a substring of the query string (query_contains).
	Contains string `yaml:"contains,omitempty"`

	// Steps names the steps compared by same_hash.
	Steps []string `yaml:"steps,omitempty"`
}

// Assertion type constants.
const (
	AssertWireContains  = "wire_contains"
	AssertWireAbsent    = "wire_absent"
	AssertQueryContains = "query_contains"
	AssertSameHash      = "same_hash"
)

// DefaultNow is the frozen clock used when a scenario sets none.
var DefaultNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

var validOperations = map[string]bool{
	string(registry.OpList):          true,
	string(registry.OpOne):           true,
	string(registry.OpManyReference): true,
	string(registry.OpCreate):        true,
	string(registry.OpUpdate):        true,
	string(registry.OpDelete):        true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Registry != "" && !filepath.IsAbs(scenario.Registry) {
		scenario.Registry = filepath.Join(filepath.Dir(path), scenario.Registry)
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
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	sort.Strings(paths)

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

// clock returns the frozen time for the scenario.
func (s *Scenario) clock() (time.Time, error) {
	if s.Now == "" {
		return DefaultNow, nil
	}
	return time.Parse(time.RFC3339, s.Now)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if _, err := s.clock(); err != nil {
		return fmt.Errorf("now: %w", err)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	names := make(map[string]bool, len(s.Steps))
	for i, step := range s.Steps {
		if step.Name == "" {
			return fmt.Errorf("step %d: name is required", i)
		}
		if names[step.Name] {
			return fmt.Errorf("step %d: duplicate name %q", i, step.Name)
		}
		names[step.Name] = true

		if step.Resource == "" {
			return fmt.Errorf("step %q: resource is required", step.Name)
		}
		if !validOperations[step.Operation] {
			return fmt.Errorf("step %q: invalid operation %q", step.Name, step.Operation)
		}
		if step.Advance != "" {
			if d, err := time.ParseDuration(step.Advance); err != nil || d < 0 {
				return fmt.Errorf("step %q: invalid advance %q", step.Name, step.Advance)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a, names); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}

	return nil
}

func validateAssertion(a Assertion, steps map[string]bool) error {
	switch a.Type {
	case AssertWireContains:
		if len(a.Wire) == 0 {
			return fmt.Errorf("wire_contains requires wire")
		}
	case AssertWireAbsent:
		if len(a.Keys) == 0 {
			return fmt.Errorf("wire_absent requires keys")
		}
	case AssertQueryContains:
		if a.Contains == "" {
			return fmt.Errorf("query_contains requires contains")
		}
	case AssertSameHash:
		if len(a.Steps) < 2 {
			return fmt.Errorf("same_hash requires at least two steps")
		}
		for _, name := range a.Steps {
			if !steps[name] {
				return fmt.Errorf("unknown step %q", name)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown type %q", a.Type)
	}

	if !steps[a.Step] {
		return fmt.Errorf("%s: unknown step %q", a.Type, a.Step)
	}
	return nil
}

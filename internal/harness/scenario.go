package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines an expectation scenario.
// Scenarios compile rules from a rule directory and assert on the compiled
// constraints and on the catalog the run is recorded in.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Rules is the directory of CUE rule files to load.
	// Relative paths are resolved against the scenario file location.
	Rules string `yaml:"rules"`

	// DSL selects the builder style for rules that do not set their own:
	// "pattern" (default) or "flow".
	DSL string `yaml:"dsl,omitempty"`

	// LenientScopelessCalls mirrors the compiler option of the same name.
	LenientScopelessCalls bool `yaml:"lenient_scopeless_calls,omitempty"`

	// Flow lists the rules to compile, in order, with their expectations.
	// Index ids are shared across steps.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the compiled constraints and the catalog.
	// Supported types: constraint_contains, index_order, index_count, catalog_row
	Assertions []Assertion `yaml:"assertions"`

	// RunID is an optional fixed catalog run id.
	// If empty, defaults to "test-run-default" for deterministic golden file comparison.
	RunID string `yaml:"run_id,omitempty"`
}

// FlowStep compiles one rule and optionally validates the outcome.
type FlowStep struct {
	// Compile is the id of the rule to compile.
	Compile string `yaml:"compile"`

	// Expect specifies the expected outcome.
	// If nil, the step must compile without error.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a compile step.
type ExpectClause struct {
	// Error is the expected error code (e.g. "E202", "E112").
	// Empty means the rule must compile.
	Error string `yaml:"error,omitempty"`

	// Constraints lists expected fields per constraint, by ordinal.
	// This is a subset match - only specified fields are validated, and
	// constraints beyond the list are not checked.
	Constraints []map[string]interface{} `yaml:"constraints,omitempty"`
}

// Assertion validates the compiled constraints or the catalog.
type Assertion struct {
	// Type specifies the assertion type:
	// - "constraint_contains": some constraint matches Match
	// - "index_order": Constraints received ascending index ids
	// - "index_count": exactly Count constraints have index Kind
	// - "catalog_row": query Table and verify expected values
	Type string `yaml:"type"`

	// Rule restricts constraint_contains and index_count to one rule.
	Rule string `yaml:"rule,omitempty"`

	// Match holds the expected constraint fields (used by constraint_contains).
	// Subset match - only specified fields are validated.
	Match map[string]interface{} `yaml:"match,omitempty"`

	// Kind is "alpha", "beta" or "none" (used by index_count).
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected number of constraints (used by index_count).
	Count int `yaml:"count,omitempty"`

	// Constraints names constraints as "<rule>/<ordinal>" (used by index_order).
	Constraints []string `yaml:"constraints,omitempty"`

	// Table is the catalog table name (used by catalog_row).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (used by catalog_row).
	// All fields must match exactly.
	Where map[string]interface{} `yaml:"where,omitempty"`

	// Expect contains expected column values (used by catalog_row).
	// Subset match - only specified fields are validated.
	Expect map[string]interface{} `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertConstraintContains = "constraint_contains"
	AssertIndexOrder         = "index_order"
	AssertIndexCount         = "index_count"
	AssertCatalogRow         = "catalog_row"
)

// LoadScenario reads and parses a scenario YAML file, resolving the rules
// directory relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the rules directory relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve the rules path BEFORE validation
	if scenario.Rules != "" && !filepath.IsAbs(scenario.Rules) && basePath != "" {
		scenario.Rules = filepath.Join(basePath, scenario.Rules)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if _, err := os.Stat(scenario.Rules); os.IsNotExist(err) {
		return nil, fmt.Errorf("invalid scenario: rules directory not found: %s", scenario.Rules)
	}

	return scenario, nil
}

// ParseScenario decodes scenario YAML without touching the filesystem.
// Unknown fields are rejected.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Rules == "" {
		return fmt.Errorf("rules directory is required")
	}

	switch s.DSL {
	case "", "pattern", "flow":
	default:
		return fmt.Errorf("dsl must be pattern or flow, got %q", s.DSL)
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if step.Compile == "" {
			return fmt.Errorf("flow[%d]: compile is required", i)
		}
		if step.Expect != nil && step.Expect.Error != "" && len(step.Expect.Constraints) > 0 {
			return fmt.Errorf("flow[%d].expect: error and constraints are mutually exclusive", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertConstraintContains:
		if len(a.Match) == 0 {
			return fmt.Errorf("assertions[%d]: match is required for constraint_contains", index)
		}
	case AssertIndexOrder:
		if len(a.Constraints) < 2 {
			return fmt.Errorf("assertions[%d]: at least two constraints are required for index_order", index)
		}
	case AssertIndexCount:
		switch a.Kind {
		case "alpha", "beta", KindNone:
		default:
			return fmt.Errorf("assertions[%d]: kind must be alpha, beta or none for index_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for index_count", index)
		}
	case AssertCatalogRow:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for catalog_row", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for catalog_row", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

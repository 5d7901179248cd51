package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/ruleidx/internal/ir"
)

// CatalogSnapshot captures the compiled constraints of a scenario run.
// Hash-derived fields (expr ids and emissions) are left out so snapshots
// stay readable and stable across hash domain changes.
type CatalogSnapshot struct {
	ScenarioName string            `json:"scenario_name"`
	RunID        string            `json:"run_id,omitempty"`
	Constraints  []ConstraintEvent `json:"constraints"`
}

// toCanonicalMap converts a CatalogSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s *CatalogSnapshot) toCanonicalMap() map[string]any {
	constraints := make([]any, len(s.Constraints))
	for i, ev := range s.Constraints {
		constraints[i] = ev.fields(false)
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"constraints":   constraints,
	}
	if s.RunID != "" {
		result["run_id"] = s.RunID
	}
	return result
}

// RunWithGolden executes a scenario and compares the compiled constraints
// against a golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the output doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	return assertSnapshot(t, scenario.Name, CatalogSnapshot{
		ScenarioName: scenario.Name,
		RunID:        result.RunID,
		Constraints:  result.Events,
	})
}

// AssertGolden compares the given result's constraints against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	return assertSnapshot(t, scenarioName, CatalogSnapshot{
		ScenarioName: scenarioName,
		RunID:        result.RunID,
		Constraints:  result.Events,
	})
}

// Snapshot returns the canonical JSON snapshot of a result, as stored in
// golden files.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := CatalogSnapshot{
		ScenarioName: scenarioName,
		RunID:        result.RunID,
		Constraints:  result.Events,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

func assertSnapshot(t *testing.T, name string, snapshot CatalogSnapshot) error {
	t.Helper()

	data, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)

	return nil
}

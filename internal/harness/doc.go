// Package harness runs expectation scenarios against the constraint
// compiler.
//
// The harness loads rule files, compiles the rules a scenario names, checks
// each compiled constraint against the scenario's expectations, records the
// run in a fresh in-memory index catalog and evaluates assertions over the
// compiled constraints and the catalog.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	rules: path/to/rules-dir
//	dsl: pattern
//	flow:
//	  - compile: adults
//	    expect:
//	      constraints:
//	        - kind: alpha
//	          key_type: int
//	          right_value: "18"
//	  - compile: broken
//	    expect:
//	      error: E202
//	assertions:
//	  - type: constraint_contains
//	    rule: adults
//	    match: { kind: beta, extractor: "$other -> $other.age" }
//	  - type: index_count
//	    kind: alpha
//	    count: 2
//	  - type: catalog_row
//	    table: constraints
//	    where: { rule_id: adults, ordinal: 0 }
//	    expect: { index_kind: alpha }
//
// The rules path is resolved relative to the scenario file.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - constraint_contains: some compiled constraint matches the given fields
//   - index_order: the named constraints received ascending index ids
//   - index_count: exactly N constraints have the given index kind
//   - catalog_row: queries the catalog and verifies expected values
//
// # Deterministic Testing
//
// Every scenario runs with a fixed run id and an index id sequence starting
// at 1, against an isolated in-memory SQLite catalog, so repeated runs
// produce identical snapshots for golden file comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/people.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness

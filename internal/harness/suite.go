package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// ScenarioNotFoundError is returned when a referenced scenario path doesn't exist.
type ScenarioNotFoundError struct {
	ScenarioPath string
	ResolvedPath string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario %q does not exist (resolved to: %s)", e.ScenarioPath, e.ResolvedPath)
}

// ExpandScenarios resolves scenario arguments to scenario files.
//
// A file argument is used as is. A directory expands to its *.yaml and
// *.yml files, sorted, without recursing. Relative paths are resolved
// against baseDir when it is non-empty.
func ExpandScenarios(args []string, baseDir string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		resolved := arg
		if !filepath.IsAbs(resolved) && baseDir != "" {
			resolved = filepath.Join(baseDir, resolved)
		}

		info, err := os.Stat(resolved)
		if os.IsNotExist(err) {
			return nil, &ScenarioNotFoundError{ScenarioPath: arg, ResolvedPath: resolved}
		}
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", resolved, err)
		}
		if !info.IsDir() {
			paths = append(paths, resolved)
			continue
		}

		entries, err := os.ReadDir(resolved)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", resolved, err)
		}
		var found []string
		for _, entry := range entries {
			ext := filepath.Ext(entry.Name())
			if !entry.IsDir() && (ext == ".yaml" || ext == ".yml") {
				found = append(found, filepath.Join(resolved, entry.Name()))
			}
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	return paths, nil
}

// SuiteResult summarizes a run over many scenarios.
type SuiteResult struct {
	TotalScenarios int            `json:"total_scenarios"`
	Passed         int            `json:"passed"`
	Failed         int            `json:"failed"`
	Failures       []SuiteFailure `json:"failures,omitempty"`
}

// SuiteFailure represents one failed scenario.
type SuiteFailure struct {
	Scenario     string   `json:"scenario,omitempty"`
	ScenarioPath string   `json:"scenario_path"`
	Error        string   `json:"error"`
	Details      []string `json:"details,omitempty"`
}

// RunSuite loads and runs every scenario in paths, in order.
//
// For each scenario file:
// 1. Load the scenario (rules resolve relative to the file)
// 2. Run it via RunContext
// 3. Collect and report results
//
// A scenario that fails to load or run counts as failed; the suite keeps
// going. The returned error is reserved for a cancelled context.
func RunSuite(ctx context.Context, paths []string, logger *slog.Logger) (*SuiteResult, error) {
	result := &SuiteResult{}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.TotalScenarios++

		scenario, err := LoadScenario(path)
		if err != nil {
			result.fail(SuiteFailure{
				ScenarioPath: path,
				Error:        fmt.Sprintf("failed to load scenario: %v", err),
			})
			continue
		}

		runResult, err := RunContext(ctx, scenario, logger)
		if err != nil {
			result.fail(SuiteFailure{
				Scenario:     scenario.Name,
				ScenarioPath: path,
				Error:        fmt.Sprintf("scenario execution failed: %v", err),
			})
			continue
		}

		if !runResult.Pass {
			result.fail(SuiteFailure{
				Scenario:     scenario.Name,
				ScenarioPath: path,
				Error:        "scenario assertions failed",
				Details:      runResult.Errors,
			})
			continue
		}

		result.Passed++
	}

	return result, nil
}

func (r *SuiteResult) fail(f SuiteFailure) {
	r.Failed++
	r.Failures = append(r.Failures, f)
}

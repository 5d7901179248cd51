package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ruleidx/internal/store"
)

// compiledCatalog compiles peopleRules into a fresh catalog and returns its path.
func compiledCatalog(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	_, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), writeRules(t, peopleRules), "--db", dbPath)
	require.NoError(t, err)
	return dbPath
}

func catalogJSON(t *testing.T, args ...string) CatalogResult {
	t.Helper()
	output, err := execute(NewCatalogCommand(&RootOptions{Format: "json"}), args...)
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   CatalogResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestCatalogText(t *testing.T) {
	dbPath := compiledCatalog(t)

	output, err := execute(NewCatalogCommand(&RootOptions{Format: "text"}), dbPath)
	require.NoError(t, err)

	assert.Contains(t, output, "Runs:")
	assert.Contains(t, output, "dsl=pattern rules=2 constraints=5 indexed=4 max_index_id=4")
	assert.Contains(t, output, "adults/0  alpha #1 int.age GREATER_THAN")
	assert.Contains(t, output, "adults/2  not indexed")
	assert.Contains(t, output, "_this.age > 18")
	assert.Contains(t, output, "Alpha:       3")
	assert.Contains(t, output, "Beta:        1")
	assert.Contains(t, output, "Unindexed:   1")
	assert.NotContains(t, output, "fingerprint:")
}

func TestCatalogTextVerbose(t *testing.T) {
	dbPath := compiledCatalog(t)

	output, err := execute(NewCatalogCommand(&RootOptions{Format: "text", Verbose: true}), dbPath, "--rule", "heavy")
	require.NoError(t, err)

	assert.Contains(t, output, "fingerprint: ")
	assert.Contains(t, output, "right value: (long) 10")
	assert.Contains(t, output, `right value: new BigDecimal("100")`)
	assert.NotContains(t, output, "adults/")
}

func TestCatalogJSON(t *testing.T) {
	dbPath := compiledCatalog(t)

	result := catalogJSON(t, dbPath)
	require.Len(t, result.Runs, 1)
	require.Len(t, result.Constraints, 5)
	assert.Equal(t, CatalogStats{
		Runs:        1,
		Constraints: 5,
		Alpha:       3,
		Beta:        1,
		Unindexed:   1,
		MaxIndexID:  4,
	}, result.Stats)

	assert.Equal(t, "adults", result.Constraints[0].RuleID)
	assert.Equal(t, "_this -> _this.age", result.Constraints[0].LeftExtractor)
}

func TestCatalogFilters(t *testing.T) {
	dbPath := compiledCatalog(t)

	testCases := []struct {
		name  string
		args  []string
		count int
	}{
		{"kind alpha", []string{"--kind", "alpha"}, 3},
		{"kind beta", []string{"--kind", "beta"}, 1},
		{"kind none", []string{"--kind", "none"}, 1},
		{"rule", []string{"--rule", "heavy"}, 2},
		{"rule and kind", []string{"--rule", "adults", "--kind", "alpha"}, 1},
		{"unknown rule", []string{"--rule", "nobody"}, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := catalogJSON(t, append([]string{dbPath}, tc.args...)...)
			assert.Len(t, result.Constraints, tc.count)
		})
	}
}

func TestCatalogRunFilter(t *testing.T) {
	dbPath := compiledCatalog(t)
	// Second run in the same catalog.
	_, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), writeRules(t, peopleRules), "--db", dbPath)
	require.NoError(t, err)

	all := catalogJSON(t, dbPath)
	require.Len(t, all.Runs, 2)
	assert.Len(t, all.Constraints, 10)
	assert.Equal(t, int64(8), all.Stats.MaxIndexID)

	second := all.Runs[1]
	one := catalogJSON(t, dbPath, "--run", second.ID)
	require.Len(t, one.Runs, 1)
	assert.Equal(t, second, one.Runs[0])
	require.Len(t, one.Constraints, 5)
	for _, rec := range one.Constraints {
		assert.Equal(t, second.ID, rec.RunID)
		assert.Equal(t, store.ConstraintKey(second.ID, rec.RuleID, rec.Ordinal), rec.ID)
	}
}

func TestCatalogUnknownRun(t *testing.T) {
	dbPath := compiledCatalog(t)

	_, err := execute(NewCatalogCommand(&RootOptions{Format: "text"}), dbPath, "--run", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "run not found: missing")
}

func TestCatalogInvalidKind(t *testing.T) {
	dbPath := compiledCatalog(t)

	_, err := execute(NewCatalogCommand(&RootOptions{Format: "text"}), dbPath, "--kind", "gamma")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "kind must be alpha, beta or none")
}

func TestCatalogDatabaseNotFound(t *testing.T) {
	_, err := execute(NewCatalogCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")
}

func TestCatalogEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	output, err := execute(NewCatalogCommand(&RootOptions{Format: "text"}), dbPath)
	require.NoError(t, err)
	assert.Contains(t, output, "No runs recorded.")
}

func TestCatalogStats(t *testing.T) {
	stats := catalogStats(
		[]store.Run{{MaxIndexID: 4}, {MaxIndexID: 9}},
		[]store.ConstraintRecord{{IndexKind: "alpha"}, {IndexKind: "beta"}, {}},
	)
	assert.Equal(t, CatalogStats{Runs: 2, Constraints: 3, Alpha: 1, Beta: 1, Unindexed: 1, MaxIndexID: 9}, stats)
}

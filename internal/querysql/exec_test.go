package querysql_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ruleidx/internal/ir"
	"github.com/roach88/ruleidx/internal/queryir"
	"github.com/roach88/ruleidx/internal/querysql"
	"github.com/roach88/ruleidx/internal/store"
)

// seededCatalog opens an in-memory catalog holding two runs. Constraint
// rows are inserted out of order so the ORDER BY is observable.
func seededCatalog(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	rec := func(run, rule string, ordinal int, kind string) store.ConstraintRecord {
		return store.ConstraintRecord{
			ID:          store.ConstraintKey(run, rule, ordinal),
			RunID:       run,
			RuleID:      rule,
			Ordinal:     ordinal,
			Source:      "_this.age > 18",
			Fingerprint: "fp",
			IndexKind:   kind,
		}
	}
	require.NoError(t, st.RecordRun(ctx, store.Run{ID: "run-2", DSL: "flow"}, []store.ConstraintRecord{
		rec("run-2", "heavy", 0, "alpha"),
	}))
	require.NoError(t, st.RecordRun(ctx, store.Run{ID: "run-1", DSL: "pattern"}, []store.ConstraintRecord{
		rec("run-1", "heavy", 10, "alpha"),
		rec("run-1", "heavy", 2, ""),
		rec("run-1", "adults", 0, "beta"),
	}))
	return st
}

// queryColumn compiles q, runs it against st and collects column 0 as text.
func queryColumn(t *testing.T, st *store.Store, q queryir.Query) []string {
	t.Helper()
	sql, params, err := querysql.NewSQLCompiler().Compile(q)
	require.NoError(t, err)

	rows, err := st.DB().QueryContext(context.Background(), sql, params...)
	require.NoError(t, err, "sql: %s", sql)
	defer rows.Close()

	cols, err := rows.Columns()
	require.NoError(t, err)

	var out []string
	for rows.Next() {
		dest := make([]any, len(cols))
		var first string
		dest[0] = &first
		for i := 1; i < len(cols); i++ {
			dest[i] = new(any)
		}
		require.NoError(t, rows.Scan(dest...))
		out = append(out, first)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestCompiledSQLRunsOnSQLite(t *testing.T) {
	st := seededCatalog(t)

	t.Run("runs ordered by id", func(t *testing.T) {
		got := queryColumn(t, st, queryir.Select{
			From:     "runs",
			Bindings: map[string]string{"id": "id"},
		})
		assert.Equal(t, []string{"run-1", "run-2"}, got)
	})

	t.Run("constraints ordered by run, rule and numeric ordinal", func(t *testing.T) {
		got := queryColumn(t, st, queryir.Select{
			From:     "constraints",
			Bindings: map[string]string{"id": "id"},
		})
		assert.Equal(t, []string{
			"run-1/adults/0",
			"run-1/heavy/2",
			"run-1/heavy/10",
			"run-2/heavy/0",
		}, got)
	})

	t.Run("filtered", func(t *testing.T) {
		got := queryColumn(t, st, queryir.Select{
			From:     "constraints",
			Bindings: map[string]string{"id": "id"},
			Filter: queryir.And{Predicates: []queryir.Predicate{
				queryir.Equals{Field: "rule_id", Value: ir.String("heavy")},
				queryir.Equals{Field: "index_kind", Value: ir.String("alpha")},
			}},
		})
		assert.Equal(t, []string{"run-1/heavy/10", "run-2/heavy/0"}, got)
	})

	t.Run("join on run", func(t *testing.T) {
		got := queryColumn(t, st, queryir.Join{
			Left: queryir.Select{
				From:     "constraints",
				Bindings: map[string]string{"id": "id"},
			},
			Right: queryir.Select{
				From:     "runs",
				Bindings: map[string]string{"dsl": "dsl"},
				Filter:   queryir.Equals{Field: "dsl", Value: ir.String("pattern")},
			},
			On: queryir.BoundEquals{Field: "constraints.run_id", BoundVar: "runs.id"},
		})
		assert.Equal(t, []string{"run-1/adults/0", "run-1/heavy/2", "run-1/heavy/10"}, got)
	})
}

func TestListRunsRunsOnSQLite(t *testing.T) {
	st := seededCatalog(t)

	runs, err := st.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "run-2", runs[1].ID)
}

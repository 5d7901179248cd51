package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/ruleidx/internal/ir"
	"github.com/roach88/ruleidx/internal/queryir"
	"github.com/roach88/ruleidx/internal/querysql"
)

// Filter narrows ListConstraints. Empty fields match everything.
type Filter struct {
	RunID  string
	RuleID string

	// Kind is "alpha", "beta" or "none" (not indexed).
	Kind string
}

// Predicate converts f to a queryir predicate, nil when f is empty.
func (f Filter) Predicate() queryir.Predicate {
	var preds []queryir.Predicate
	if f.RunID != "" {
		preds = append(preds, queryir.Equals{Field: "run_id", Value: ir.String(f.RunID)})
	}
	if f.RuleID != "" {
		preds = append(preds, queryir.Equals{Field: "rule_id", Value: ir.String(f.RuleID)})
	}
	switch f.Kind {
	case "":
	case "none":
		preds = append(preds, queryir.Equals{Field: "index_kind", Value: ir.String(string(ir.IndexNone))})
	default:
		preds = append(preds, queryir.Equals{Field: "index_kind", Value: ir.String(f.Kind)})
	}
	switch len(preds) {
	case 0:
		return nil
	case 1:
		return preds[0]
	default:
		return queryir.And{Predicates: preds}
	}
}

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	var run Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, dsl, rule_count, constraint_count, indexed_count, max_index_id
		FROM runs
		WHERE id = ?
	`, id).Scan(&run.ID, &run.DSL, &run.RuleCount, &run.ConstraintCount, &run.IndexedCount, &run.MaxIndexID)
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// ListRuns returns all runs, oldest first.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, dsl, rule_count, constraint_count, indexed_count, max_index_id
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.DSL, &run.RuleCount, &run.ConstraintCount, &run.IndexedCount, &run.MaxIndexID); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// MaxIndexID returns the largest index id recorded, or 0 for an empty
// catalog.
func (s *Store) MaxIndexID(ctx context.Context) (int64, error) {
	var maxID int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(index_id), 0) FROM constraints`).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("max index id: %w", err)
	}
	return maxID, nil
}

// ListConstraints returns the constraint records matching f, ordered by
// run, rule and ordinal.
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListConstraints(ctx context.Context, f Filter) ([]ConstraintRecord, error) {
	bindings := make(map[string]string)
	for _, col := range queryir.CatalogColumns["constraints"] {
		bindings[col] = col
	}
	rows, err := s.QueryCatalog(ctx, queryir.Select{
		From:     "constraints",
		Filter:   f.Predicate(),
		Bindings: bindings,
	})
	if err != nil {
		return nil, err
	}

	records := make([]ConstraintRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := recordFromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// QueryCatalog compiles q with querysql and returns each row as a map from
// result name to value. Text columns are strings, integer columns int64.
func (s *Store) QueryCatalog(ctx context.Context, q queryir.Query) ([]map[string]any, error) {
	query, params, err := querysql.NewSQLCompiler().Compile(q)
	if err != nil {
		return nil, fmt.Errorf("compile catalog query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	return scanMaps(rows)
}

func scanMaps(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	out := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func recordFromRow(row map[string]any) (ConstraintRecord, error) {
	text := func(col string) string {
		s, _ := row[col].(string)
		return s
	}
	integer := func(col string) int64 {
		n, _ := row[col].(int64)
		return n
	}

	bindings, err := unmarshalBindings(text("bindings"))
	if err != nil {
		return ConstraintRecord{}, fmt.Errorf("constraint %s: %w", text("id"), err)
	}
	return ConstraintRecord{
		ID:            text("id"),
		RunID:         text("run_id"),
		RuleID:        text("rule_id"),
		Ordinal:       int(integer("ordinal")),
		Source:        text("source"),
		ExprID:        text("expr_id"),
		Fingerprint:   text("fingerprint"),
		Normalized:    text("normalized"),
		Bindings:      bindings,
		Emission:      text("emission"),
		IndexID:       integer("index_id"),
		IndexKind:     text("index_kind"),
		KeyType:       text("key_type"),
		Op:            text("op"),
		FieldName:     text("field_name"),
		LeftExtractor: text("left_extractor"),
		Extractor:     text("extractor"),
		RightValue:    text("right_value"),
	}, nil
}

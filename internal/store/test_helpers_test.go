package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/ruleidx/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// alphaConstraint builds "_this.age > 18" indexed as alpha index id.
func alphaConstraint(id int64) *ir.CompiledConstraint {
	age := ir.Field(ir.This(), "age")
	return &ir.CompiledConstraint{
		Source:         "age > 18",
		ExprID:         "0123456789abcdef",
		NormalizedExpr: &ir.Lambda{Params: []string{ir.ThisName}, Body: &ir.Binary{Op: ir.OpGt, Left: age, Right: ir.Lit(ir.LitInt, "18")}},
		Index: &ir.IndexDescriptor{
			ID:            id,
			Kind:          ir.IndexAlpha,
			KeyType:       ir.Primitive(ir.PrimInt),
			Op:            ir.RelGT,
			FieldName:     "age",
			LeftExtractor: &ir.Lambda{Params: []string{ir.ThisName}, Body: age},
			RightValue:    ir.Lit(ir.LitInt, "18"),
		},
	}
}

// betaConstraint builds "_this.age > $other.age" indexed as beta index id.
func betaConstraint(id int64) *ir.CompiledConstraint {
	age := ir.Field(ir.This(), "age")
	other := ir.Field(ir.NewName("$other"), "age")
	return &ir.CompiledConstraint{
		Source:         "age > $other.age",
		ExprID:         "fedcba9876543210",
		NormalizedExpr: &ir.Lambda{Params: []string{ir.ThisName, "$other"}, Body: &ir.Binary{Op: ir.OpGt, Left: age, Right: other}},
		Index: &ir.IndexDescriptor{
			ID:            id,
			Kind:          ir.IndexBeta,
			KeyType:       ir.Primitive(ir.PrimInt),
			Op:            ir.RelGT,
			FieldName:     "age",
			LeftExtractor: &ir.Lambda{Params: []string{ir.ThisName}, Body: age},
			Extractor:     &ir.Lambda{Params: []string{"$other"}, Body: other},
		},
	}
}

// plainConstraint builds a constraint with no index and one binding.
func plainConstraint() *ir.CompiledConstraint {
	call := ir.Call(ir.This(), "isActive")
	return &ir.CompiledConstraint{
		Source:         "isActive()",
		ExprID:         "00000000000000aa",
		NormalizedExpr: &ir.Lambda{Params: []string{ir.ThisName}, Body: call},
		Bindings: []ir.BindingExpr{{
			Variable: "$active",
			Type:     ir.Primitive(ir.PrimBoolean),
			Expr:     &ir.Lambda{Params: []string{ir.ThisName}, Body: call},
		}},
	}
}

// createTestRecord creates an alpha record with minimal required fields.
func createTestRecord(runID, ruleID string, ordinal int) ConstraintRecord {
	return ConstraintRecord{
		ID:          ConstraintKey(runID, ruleID, ordinal),
		RunID:       runID,
		RuleID:      ruleID,
		Ordinal:     ordinal,
		Source:      "age > 18",
		Fingerprint: "test-fingerprint",
		IndexID:     1,
		IndexKind:   string(ir.IndexAlpha),
	}
}

// mustRecord flattens cc or fails the test.
func mustRecord(t *testing.T, runID, ruleID string, ordinal int, cc *ir.CompiledConstraint) ConstraintRecord {
	t.Helper()
	rec, err := NewConstraintRecord(runID, ruleID, ordinal, cc)
	if err != nil {
		t.Fatalf("NewConstraintRecord() failed: %v", err)
	}
	return rec
}

// seedCatalog records one run with an alpha, a beta and an unindexed
// constraint across two rules.
func seedCatalog(t *testing.T, s *Store, runID string) {
	t.Helper()
	records := []ConstraintRecord{
		mustRecord(t, runID, "adults", 0, alphaConstraint(1)),
		mustRecord(t, runID, "adults", 1, betaConstraint(2)),
		mustRecord(t, runID, "active", 0, plainConstraint()),
	}
	run := Run{ID: runID, DSL: "pattern", RuleCount: 2, ConstraintCount: 3, IndexedCount: 2, MaxIndexID: 2}
	if err := s.RecordRun(t.Context(), run, records); err != nil {
		t.Fatalf("RecordRun() failed: %v", err)
	}
}

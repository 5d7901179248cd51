package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/ruleidx/internal/ir"
)

// Run is one compile run.
type Run struct {
	ID              string `json:"id"`
	DSL             string `json:"dsl"`
	RuleCount       int    `json:"rule_count"`
	ConstraintCount int    `json:"constraint_count"`
	IndexedCount    int    `json:"indexed_count"`
	MaxIndexID      int64  `json:"max_index_id"`
}

// BindingRecord is a stored binding. Expressions are printed source text.
type BindingRecord struct {
	Variable string `json:"variable"`
	Type     string `json:"type,omitempty"`
	Expr     string `json:"expr,omitempty"`
	Emission string `json:"emission,omitempty"`
}

// ConstraintRecord is one catalog row: a compiled constraint and its index
// decision, flattened to text. IndexKind is empty and IndexID is 0 for
// constraints that were not indexed.
type ConstraintRecord struct {
	ID            string          `json:"id"`
	RunID         string          `json:"run_id"`
	RuleID        string          `json:"rule_id"`
	Ordinal       int             `json:"ordinal"`
	Source        string          `json:"source"`
	ExprID        string          `json:"expr_id,omitempty"`
	Fingerprint   string          `json:"fingerprint"`
	Normalized    string          `json:"normalized,omitempty"`
	Bindings      []BindingRecord `json:"bindings,omitempty"`
	Emission      string          `json:"emission,omitempty"`
	IndexID       int64           `json:"index_id,omitempty"`
	IndexKind     string          `json:"index_kind,omitempty"`
	KeyType       string          `json:"key_type,omitempty"`
	Op            string          `json:"op,omitempty"`
	FieldName     string          `json:"field_name,omitempty"`
	LeftExtractor string          `json:"left_extractor,omitempty"`
	Extractor     string          `json:"extractor,omitempty"`
	RightValue    string          `json:"right_value,omitempty"`
}

// ConstraintKey returns the catalog id "<run>/<rule>/<ordinal>".
func ConstraintKey(runID, ruleID string, ordinal int) string {
	return fmt.Sprintf("%s/%s/%d", runID, ruleID, ordinal)
}

// NewConstraintRecord flattens a compiled constraint into a catalog row.
func NewConstraintRecord(runID, ruleID string, ordinal int, cc *ir.CompiledConstraint) (ConstraintRecord, error) {
	fp, err := ir.Fingerprint(cc)
	if err != nil {
		return ConstraintRecord{}, fmt.Errorf("constraint record: %w", err)
	}

	rec := ConstraintRecord{
		ID:          ConstraintKey(runID, ruleID, ordinal),
		RunID:       runID,
		RuleID:      ruleID,
		Ordinal:     ordinal,
		Source:      cc.Source,
		ExprID:      cc.ExprID,
		Fingerprint: fp,
	}
	if cc.NormalizedExpr != nil {
		rec.Normalized = ir.Print(cc.NormalizedExpr)
	}
	if cc.Emission != nil {
		rec.Emission = ir.Print(cc.Emission)
	}
	for _, b := range cc.Bindings {
		br := BindingRecord{Variable: b.Variable}
		if b.Type.IsSet() {
			br.Type = b.Type.String()
		}
		if b.Expr != nil {
			br.Expr = ir.Print(b.Expr)
		}
		if b.Emission != nil {
			br.Emission = ir.Print(b.Emission)
		}
		rec.Bindings = append(rec.Bindings, br)
	}

	if idx := cc.Index; idx != nil {
		rec.IndexID = idx.ID
		rec.IndexKind = string(idx.Kind)
		rec.KeyType = idx.KeyType.String()
		rec.Op = string(idx.Op)
		rec.FieldName = idx.FieldName
		if idx.LeftExtractor != nil {
			rec.LeftExtractor = ir.Print(idx.LeftExtractor)
		}
		if idx.Extractor != nil {
			rec.Extractor = ir.Print(idx.Extractor)
		}
		if idx.RightValue != nil {
			rec.RightValue = ir.Print(idx.RightValue)
		}
	}
	return rec, nil
}

// marshalBindings converts bindings to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalBindings(bindings []BindingRecord) (string, error) {
	arr := make([]any, 0, len(bindings))
	for _, b := range bindings {
		m := map[string]any{"variable": b.Variable}
		if b.Type != "" {
			m["type"] = b.Type
		}
		if b.Expr != "" {
			m["expr"] = b.Expr
		}
		if b.Emission != "" {
			m["emission"] = b.Emission
		}
		arr = append(arr, m)
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal bindings: %w", err)
	}
	return string(data), nil
}

// unmarshalBindings parses stored bindings. An empty array yields nil.
func unmarshalBindings(data string) ([]BindingRecord, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var out []BindingRecord
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal bindings: %w", err)
	}
	return out, nil
}

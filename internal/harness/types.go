package harness

import (
	"errors"

	"github.com/roach88/ruleidx/internal/compiler"
	"github.com/roach88/ruleidx/internal/ir"
)

// KindNone marks a constraint that was compiled without an index.
const KindNone = "none"

// ConstraintEvent is one compiled constraint, or one failed compile step,
// flattened to printed text.
type ConstraintEvent struct {
	Rule          string   `json:"rule"`
	Ordinal       int      `json:"ordinal"`
	Source        string   `json:"source,omitempty"`
	ExprID        string   `json:"expr_id,omitempty"`
	Normalized    string   `json:"normalized,omitempty"`
	Kind          string   `json:"kind,omitempty"`
	KeyType       string   `json:"key_type,omitempty"`
	Op            string   `json:"op,omitempty"`
	Field         string   `json:"field,omitempty"`
	IndexID       int64    `json:"index_id,omitempty"`
	LeftExtractor string   `json:"left_extractor,omitempty"`
	Extractor     string   `json:"extractor,omitempty"`
	RightValue    string   `json:"right_value,omitempty"`
	Bindings      []string `json:"bindings,omitempty"`
	Emission      string   `json:"emission,omitempty"`

	// Error is the error code of a failed step. Set only on failure events.
	Error string `json:"error,omitempty"`
}

// newConstraintEvent flattens cc, the ordinal-th constraint of rule.
func newConstraintEvent(rule string, ordinal int, cc *ir.CompiledConstraint) ConstraintEvent {
	ev := ConstraintEvent{
		Rule:    rule,
		Ordinal: ordinal,
		Source:  cc.Source,
		ExprID:  cc.ExprID,
		Kind:    KindNone,
	}
	if cc.NormalizedExpr != nil {
		ev.Normalized = ir.Print(cc.NormalizedExpr)
	}
	if cc.Emission != nil {
		ev.Emission = ir.Print(cc.Emission)
	}
	for _, b := range cc.Bindings {
		ev.Bindings = append(ev.Bindings, b.Variable+" = "+ir.Print(b.Expr))
	}
	if idx := cc.Index; idx != nil {
		ev.Kind = string(idx.Kind)
		ev.KeyType = idx.KeyType.String()
		ev.Op = string(idx.Op)
		ev.Field = idx.FieldName
		ev.IndexID = idx.ID
		if idx.LeftExtractor != nil {
			ev.LeftExtractor = ir.Print(idx.LeftExtractor)
		}
		if idx.Extractor != nil {
			ev.Extractor = ir.Print(idx.Extractor)
		}
		if idx.RightValue != nil {
			ev.RightValue = ir.Print(idx.RightValue)
		}
	}
	return ev
}

// fields returns the event as a map keyed like the scenario expectations.
// Hash-derived fields are included only when withHashes is set.
func (e ConstraintEvent) fields(withHashes bool) map[string]any {
	m := map[string]any{
		"rule":    e.Rule,
		"ordinal": int64(e.Ordinal),
	}
	put := func(key, val string) {
		if val != "" {
			m[key] = val
		}
	}
	put("source", e.Source)
	put("normalized", e.Normalized)
	put("kind", e.Kind)
	put("key_type", e.KeyType)
	put("op", e.Op)
	put("field", e.Field)
	put("left_extractor", e.LeftExtractor)
	put("extractor", e.Extractor)
	put("right_value", e.RightValue)
	put("error", e.Error)
	if e.IndexID != 0 {
		m["index_id"] = e.IndexID
	}
	if len(e.Bindings) > 0 {
		bindings := make([]any, len(e.Bindings))
		for i, b := range e.Bindings {
			bindings[i] = b
		}
		m["bindings"] = bindings
	}
	if withHashes {
		put("expr_id", e.ExprID)
		put("emission", e.Emission)
	}
	return m
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// RunID is the catalog run the scenario was recorded under.
	RunID string `json:"run_id"`

	// Events holds every compiled constraint and failed step, in flow order.
	Events []ConstraintEvent `json:"events"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Events: []ConstraintEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEvent appends a compiled constraint to the result.
func (r *Result) AddEvent(ev ConstraintEvent) {
	r.Events = append(r.Events, ev)
}

// AddFailure appends a failed compile step for rule.
func (r *Result) AddFailure(rule, code string) {
	r.Events = append(r.Events, ConstraintEvent{Rule: rule, Error: code})
}

// ruleEvents returns the events of rule, in ordinal order.
func (r *Result) ruleEvents(rule string) []ConstraintEvent {
	var out []ConstraintEvent
	for _, ev := range r.Events {
		if ev.Rule == rule {
			out = append(out, ev)
		}
	}
	return out
}

// errorCode extracts the code of a compile, validation or load error.
func errorCode(err error) string {
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		return ce.Code
	}
	var le *compiler.LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return compiler.ErrCodeGeneric
}

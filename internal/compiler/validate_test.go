package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ruleidx/internal/ir"
)

func validRule() *ir.RuleSpec {
	return &ir.RuleSpec{
		ID:  "adults",
		DSL: "pattern",
		Declarations: []ir.Declaration{
			{Name: "$other", Type: ir.Reference("Person")},
		},
		Constraints: []ir.ParsedConstraint{ageOver18(), ageOverOther()},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestValidateValidRule(t *testing.T) {
	assert.Empty(t, Validate(validRule()))
	assert.Empty(t, Validate(*validRule()))
}

func TestValidateUnsupportedType(t *testing.T) {
	errs := Validate("nope")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedIRType, errs[0].Code)
}

func TestValidateRuleErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ir.RuleSpec)
		want   string
	}{
		{"empty id", func(r *ir.RuleSpec) { r.ID = "  " }, ErrRuleIDEmpty},
		{"bad dsl", func(r *ir.RuleSpec) { r.DSL = "exec-model" }, ErrInvalidDSL},
		{"duplicate declaration", func(r *ir.RuleSpec) {
			r.Declarations = append(r.Declarations, ir.Declaration{Name: "$other"})
		}, ErrDuplicateDeclaration},
		{"empty declaration name", func(r *ir.RuleSpec) {
			r.Declarations = append(r.Declarations, ir.Declaration{Name: ""})
		}, ErrInvalidDeclaration},
		{"reserved declaration name", func(r *ir.RuleSpec) {
			r.Declarations = append(r.Declarations, ir.Declaration{Name: ir.ThisName})
		}, ErrInvalidDeclaration},
		{"no constraints", func(r *ir.RuleSpec) { r.Constraints = nil }, ErrNoConstraints},
		{"invalid variant", func(r *ir.RuleSpec) { r.Constraints[0].Variant = ir.VariantInvalid }, ErrInvalidVariant},
		{"missing left", func(r *ir.RuleSpec) { r.Constraints[0].Left = nil }, ErrMissingLeftOperand},
		{"undefined declaration", func(r *ir.RuleSpec) { r.Declarations = nil }, ErrUndefinedDeclaration},
		{"subject as declaration", func(r *ir.RuleSpec) {
			r.Constraints[0].UsedDeclarations = []string{ir.ThisName}
		}, ErrSubjectInDeclarations},
		{"no expression", func(r *ir.RuleSpec) { r.Constraints[0].Expr = nil }, ErrInvalidExpression},
		{"multiple with binding", func(r *ir.RuleSpec) {
			r.Constraints[0].Variant = ir.VariantMultiple
			r.Constraints[0].ExprBinding = "$x"
		}, ErrMultipleWithBinding},
		{"bad literal kind", func(r *ir.RuleSpec) {
			r.Constraints[0].Right.Expr = ir.Lit("octal", "17")
		}, ErrInvalidLiteralKind},
		{"unification without name", func(r *ir.RuleSpec) {
			r.Constraints[0].Unification = &ir.Unification{}
		}, ErrUnificationNameMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRule()
			tt.mutate(r)
			errs := Validate(r)
			assert.Contains(t, codes(errs), tt.want)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	r := validRule()
	r.ID = ""
	r.DSL = "nope"
	r.Constraints[1].UsedDeclarations = []string{"$ghost"}

	errs := Validate(r)
	assert.ElementsMatch(t, []string{ErrRuleIDEmpty, ErrInvalidDSL, ErrUndefinedDeclaration}, codes(errs))
}

func TestValidateBindingsIntroduceDeclarations(t *testing.T) {
	r := validRule()
	r.Declarations = nil
	r.Constraints = []ir.ParsedConstraint{
		{
			Variant:     ir.VariantSingle,
			Source:      "$other := _this",
			Expr:        ir.This(),
			Unification: &ir.Unification{Name: "$other"},
		},
		ageOverOther(),
	}
	assert.Empty(t, Validate(r))

	// Declared too late: a later binding is not visible to earlier constraints.
	r.Constraints[0], r.Constraints[1] = r.Constraints[1], r.Constraints[0]
	assert.Contains(t, codes(Validate(r)), ErrUndefinedDeclaration)
}

func TestValidationErrorMessage(t *testing.T) {
	r := validRule()
	r.Constraints[0].Left = nil

	errs := Validate(r)
	require.NotEmpty(t, errs)
	msg := errs[0].Error()
	assert.Contains(t, msg, "[E111]")
	assert.Contains(t, msg, "constraints[0].left")
	assert.Contains(t, msg, `(constraint "age > 18")`)
}

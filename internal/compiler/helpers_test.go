package compiler

import (
	"github.com/roach88/ruleidx/internal/ir"
)

// thisField returns the typed projection `_this.<field>`.
func thisField(field string, t ir.SemanticType) *ir.TypedExpression {
	return &ir.TypedExpression{Expr: ir.Field(ir.This(), field), Type: t, FieldName: field}
}

func typed(e ir.Expr, t ir.SemanticType) *ir.TypedExpression {
	return &ir.TypedExpression{Expr: e, Type: t}
}

// comparison builds a single constraint `left <op> right`.
func comparison(source string, op ir.BinaryOp, left, right *ir.TypedExpression, uses ...string) ir.ParsedConstraint {
	return ir.ParsedConstraint{
		Variant:              ir.VariantSingle,
		Source:               source,
		Expr:                 &ir.Binary{Op: op, Left: left.Expr, Right: right.Expr},
		Left:                 left,
		Right:                right,
		UsedDeclarations:     uses,
		DecodeConstraintKind: ir.DecodeRelational(op),
	}
}

// ageOver18 is `age > 18`.
func ageOver18() ir.ParsedConstraint {
	return comparison("age > 18", ir.OpGt,
		thisField("age", ir.Primitive(ir.PrimInt)),
		typed(ir.Lit(ir.LitInt, "18"), ir.Primitive(ir.PrimInt)))
}

// ageOverOther is `age > $other.age`.
func ageOverOther() ir.ParsedConstraint {
	return comparison("age > $other.age", ir.OpGt,
		thisField("age", ir.Primitive(ir.PrimInt)),
		typed(ir.Field(ir.NewName("$other"), "age"), ir.Primitive(ir.PrimInt)),
		"$other")
}

func personScope() *MapScope {
	return NewMapScope(ir.Declaration{Name: "$other", Type: ir.Reference("Person"), Pattern: "Person"})
}

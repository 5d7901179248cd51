package compiler

import (
	"strconv"

	"github.com/roach88/ruleidx/internal/ir"
)

// DSLReceiver is the receiver of pattern-style builder calls.
const DSLReceiver = "D"

// ExpressionBuilder assembles the builder-call expression an emitter prints
// for a compiled constraint or binding.
//
// The two implementations are stateless; one is chosen per compilation
// context by NewExpressionBuilder.
type ExpressionBuilder interface {
	BuildConstraint(cc *ir.CompiledConstraint) ir.Expr
	BuildBinding(b ir.BindingExpr) ir.Expr
}

// NewExpressionBuilder returns the pattern-style builder when patternDSL is
// set, and the flow-style builder otherwise.
func NewExpressionBuilder(patternDSL bool) ExpressionBuilder {
	if patternDSL {
		return PatternBuilder{}
	}
	return FlowBuilder{}
}

// PatternBuilder emits `D.expr(...).indexedBy(...).reactOn(...)` chains.
type PatternBuilder struct{}

// BuildConstraint implements ExpressionBuilder.
func (PatternBuilder) BuildConstraint(cc *ir.CompiledConstraint) ir.Expr {
	if cc.NormalizedExpr == nil {
		return nil
	}
	call := ir.Call(ir.NewName(DSLReceiver), "expr", ir.Lit(ir.LitString, cc.ExprID), cc.NormalizedExpr)
	if cc.Index == nil {
		return call
	}
	call = indexedBy(call, cc.Index)
	if cc.Index.FieldName != "" {
		call = ir.Call(call, "reactOn", ir.Lit(ir.LitString, cc.Index.FieldName))
	}
	return call
}

// BuildBinding implements ExpressionBuilder.
func (PatternBuilder) BuildBinding(b ir.BindingExpr) ir.Expr {
	return ir.Call(ir.Call(ir.NewName(DSLReceiver), "bind", ir.NewName(b.Variable)), "as", b.Expr)
}

// FlowBuilder emits unqualified `expr(...).indexedBy(...)` chains.
type FlowBuilder struct{}

// BuildConstraint implements ExpressionBuilder.
func (FlowBuilder) BuildConstraint(cc *ir.CompiledConstraint) ir.Expr {
	if cc.NormalizedExpr == nil {
		return nil
	}
	call := ir.Call(nil, "expr", ir.Lit(ir.LitString, cc.ExprID), cc.NormalizedExpr)
	if cc.Index == nil {
		return call
	}
	return indexedBy(call, cc.Index)
}

// BuildBinding implements ExpressionBuilder.
func (FlowBuilder) BuildBinding(b ir.BindingExpr) ir.Expr {
	return ir.Call(ir.Call(nil, "bind", ir.NewName(b.Variable)), "as", b.Expr)
}

// indexedBy appends the index arguments shared by both styles:
// key class, constraint type, index id, left extractor and either the
// alpha right value or the beta right extractor.
func indexedBy(call ir.Expr, idx *ir.IndexDescriptor) *ir.MethodCall {
	var left, right ir.Expr = ir.NullLit(), ir.NullLit()
	if idx.LeftExtractor != nil {
		left = idx.LeftExtractor
	}
	switch {
	case idx.Extractor != nil:
		right = idx.Extractor
	case idx.RightValue != nil:
		right = idx.RightValue
	}
	return ir.Call(call, "indexedBy",
		ir.Field(ir.NewName(idx.KeyType.String()), "class"),
		ir.Field(ir.NewName("ConstraintType"), string(idx.Op)),
		ir.Lit(ir.LitInt, strconv.FormatInt(idx.ID, 10)),
		left,
		right,
	)
}

// Package narrow rewrites the right operand of a comparison so that its
// runtime type matches the comparison's key type.
//
// The coercions form a fixed table keyed on (target class, source shape).
// Narrow evaluates the table once, in order, and applies the first row that
// matches. Decimal text is handled with apd; binary floats are never used,
// so literal text is preserved exactly.
package narrow

import (
	"github.com/cockroachdb/apd/v3"

	"github.com/roach88/ruleidx/internal/ir"
)

// Rule is one row of the coercion table.
type Rule struct {
	Name   string
	target func(ir.SemanticType) bool
	source func(ir.TypedExpression, ir.SemanticType) bool
	apply  func(ir.TypedExpression) ir.Expr
}

// Rule names, in table order.
const (
	RuleNullLiteral       = "null-literal"
	RuleToDouble          = "to-double"
	RuleDoubleToLong      = "double-to-long"
	RuleToLong            = "to-long"
	RuleDecimalLiteral    = "decimal-literal"
	RuleBigIntegerLiteral = "biginteger-literal"
	RuleLiteralToDecimal  = "literal-to-bigdecimal"
	RuleLiteralToBigInt   = "literal-to-biginteger"
	RuleNameToDecimal     = "name-to-bigdecimal"
	RuleNameToBigInt      = "name-to-biginteger"
	RuleUnchanged         = "unchanged"
)

var table = []Rule{
	{
		Name:   RuleNullLiteral,
		target: anyTarget,
		source: func(src ir.TypedExpression, _ ir.SemanticType) bool { return isLiteral(src.Expr, ir.LitNull) },
		apply:  unchanged,
	},
	{
		Name:   RuleToDouble,
		target: ir.SemanticType.IsDouble,
		source: anySource,
		apply:  func(src ir.TypedExpression) ir.Expr { return &ir.Cast{Type: ir.Primitive(ir.PrimDouble), Expr: src.Expr} },
	},
	{
		Name:   RuleDoubleToLong,
		target: ir.SemanticType.IsLong,
		source: func(src ir.TypedExpression, _ ir.SemanticType) bool { return src.Type.IsDouble() },
		apply:  func(src ir.TypedExpression) ir.Expr { return ir.Call(src.Expr, "longValue") },
	},
	{
		Name:   RuleToLong,
		target: ir.SemanticType.IsLong,
		source: anySource,
		apply:  func(src ir.TypedExpression) ir.Expr { return &ir.Cast{Type: ir.Primitive(ir.PrimLong), Expr: src.Expr} },
	},
	{
		Name:   RuleDecimalLiteral,
		target: anyTarget,
		source: func(src ir.TypedExpression, _ ir.SemanticType) bool { return isLiteral(src.Expr, ir.LitDecimal) },
		apply: func(src ir.TypedExpression) ir.Expr {
			text := src.Expr.(*ir.Literal).Text
			if canonical, ok := decimalText(text); ok {
				text = canonical
			}
			return construct(ir.BigDecimalType(), text)
		},
	},
	{
		Name:   RuleBigIntegerLiteral,
		target: isKind(ir.TypeBigInteger),
		source: func(src ir.TypedExpression, _ ir.SemanticType) bool { return isLiteral(src.Expr, ir.LitBigInteger) },
		apply: func(src ir.TypedExpression) ir.Expr {
			return construct(ir.BigIntegerType(), src.Expr.(*ir.Literal).Text)
		},
	},
	{
		Name:   RuleLiteralToDecimal,
		target: isKind(ir.TypeBigDecimal),
		source: numericLiteral(decimalText),
		apply: func(src ir.TypedExpression) ir.Expr {
			text, _ := decimalText(src.Expr.(*ir.Literal).Text)
			return construct(ir.BigDecimalType(), text)
		},
	},
	{
		Name:   RuleLiteralToBigInt,
		target: isKind(ir.TypeBigInteger),
		source: numericLiteral(integerText),
		apply: func(src ir.TypedExpression) ir.Expr {
			text, _ := integerText(src.Expr.(*ir.Literal).Text)
			return construct(ir.BigIntegerType(), text)
		},
	},
	{
		Name:   RuleNameToDecimal,
		target: isKind(ir.TypeBigDecimal),
		source: nameNotOf(ir.TypeBigDecimal),
		apply:  wrapIn(ir.BigDecimalType()),
	},
	{
		Name:   RuleNameToBigInt,
		target: isKind(ir.TypeBigInteger),
		source: nameNotOf(ir.TypeBigInteger),
		apply:  wrapIn(ir.BigIntegerType()),
	},
}

// Narrow rewrites src so that it evaluates to target.
// Expressions no row applies to are returned unchanged. Narrow never fails:
// numeric literal text that does not parse as a decimal is left as is.
func Narrow(src ir.TypedExpression, target ir.SemanticType) ir.Expr {
	return RuleFor(src, target).apply(src)
}

// RuleFor returns the table row Narrow applies for (src, target).
func RuleFor(src ir.TypedExpression, target ir.SemanticType) Rule {
	if src.Expr == nil {
		return fallthroughRule
	}
	for _, r := range table {
		if r.target(target) && r.source(src, target) {
			return r
		}
	}
	return fallthroughRule
}

var fallthroughRule = Rule{
	Name:   RuleUnchanged,
	target: anyTarget,
	source: anySource,
	apply:  unchanged,
}

func anyTarget(ir.SemanticType) bool { return true }

func anySource(ir.TypedExpression, ir.SemanticType) bool { return true }

func unchanged(src ir.TypedExpression) ir.Expr { return src.Expr }

func isKind(k ir.TypeKind) func(ir.SemanticType) bool {
	return func(t ir.SemanticType) bool { return t.Kind == k }
}

func isLiteral(e ir.Expr, kind ir.LiteralKind) bool {
	lit, ok := e.(*ir.Literal)
	return ok && lit.Kind == kind
}

// numericLiteral matches numeric literals whose text canon accepts.
func numericLiteral(canon func(string) (string, bool)) func(ir.TypedExpression, ir.SemanticType) bool {
	return func(src ir.TypedExpression, _ ir.SemanticType) bool {
		lit, ok := src.Expr.(*ir.Literal)
		if !ok || !lit.IsNumeric() {
			return false
		}
		_, ok = canon(lit.Text)
		return ok
	}
}

func nameNotOf(k ir.TypeKind) func(ir.TypedExpression, ir.SemanticType) bool {
	return func(src ir.TypedExpression, _ ir.SemanticType) bool {
		_, ok := src.Expr.(*ir.Name)
		return ok && src.Type.Kind != k
	}
}

func wrapIn(t ir.SemanticType) func(ir.TypedExpression) ir.Expr {
	return func(src ir.TypedExpression) ir.Expr {
		return &ir.New{Type: t, Args: []ir.Expr{src.Expr}}
	}
}

// construct builds `new T("<text>")`.
func construct(t ir.SemanticType, text string) ir.Expr {
	return &ir.New{Type: t, Args: []ir.Expr{ir.Lit(ir.LitString, text)}}
}

// parseDecimal parses literal text as an exact finite decimal.
func parseDecimal(text string) (*apd.Decimal, bool) {
	d, _, err := apd.NewFromString(text)
	if err != nil || d.Form != apd.Finite {
		return nil, false
	}
	return d, true
}

// decimalText returns the canonical scientific-string form of text,
// keeping its scale ("1.50" stays "1.50", "1e3" becomes "1E+3").
func decimalText(text string) (string, bool) {
	d, ok := parseDecimal(text)
	if !ok {
		return "", false
	}
	return d.String(), true
}

// integerText returns the integral part of text in plain notation,
// truncated toward zero.
func integerText(text string) (string, bool) {
	d, ok := parseDecimal(text)
	if !ok {
		return "", false
	}
	var integ apd.Decimal
	d.Modf(&integ, nil)
	if integ.IsZero() {
		return "0", true
	}
	return integ.Text('f'), true
}

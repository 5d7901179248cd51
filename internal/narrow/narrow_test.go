package narrow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ruleidx/internal/ir"
)

func typed(e ir.Expr, t ir.SemanticType) ir.TypedExpression {
	return ir.TypedExpression{Expr: e, Type: t}
}

func TestNarrowTable(t *testing.T) {
	age := ir.Field(ir.NewName("$other"), "age")
	salary := ir.NewName("$salary")

	tests := []struct {
		name     string
		src      ir.TypedExpression
		target   ir.SemanticType
		rule     string
		expected string
	}{
		{"null to double", typed(ir.NullLit(), ir.SemanticType{}), ir.Primitive(ir.PrimDouble), RuleNullLiteral, "null"},
		{"null to BigDecimal", typed(ir.NullLit(), ir.SemanticType{}), ir.BigDecimalType(), RuleNullLiteral, "null"},
		{"int field to double", typed(age, ir.Primitive(ir.PrimInt)), ir.Primitive(ir.PrimDouble), RuleToDouble, "(double) $other.age"},
		{"to boxed Double", typed(age, ir.Boxed(ir.PrimInt)), ir.Boxed(ir.PrimDouble), RuleToDouble, "(double) $other.age"},
		{"double to long", typed(age, ir.Boxed(ir.PrimDouble)), ir.Boxed(ir.PrimLong), RuleDoubleToLong, "$other.age.longValue()"},
		{"primitive double to long", typed(age, ir.Primitive(ir.PrimDouble)), ir.Primitive(ir.PrimLong), RuleDoubleToLong, "$other.age.longValue()"},
		{"int to long", typed(age, ir.Primitive(ir.PrimInt)), ir.Boxed(ir.PrimLong), RuleToLong, "(long) $other.age"},
		{"int to primitive long", typed(age, ir.Primitive(ir.PrimInt)), ir.Primitive(ir.PrimLong), RuleToLong, "(long) $other.age"},
		{"long to long", typed(age, ir.Boxed(ir.PrimLong)), ir.Boxed(ir.PrimLong), RuleToLong, "(long) $other.age"},
		{"decimal literal to BigDecimal", typed(ir.Lit(ir.LitDecimal, "3.14"), ir.BigDecimalType()), ir.BigDecimalType(), RuleDecimalLiteral, `new BigDecimal("3.14")`},
		{"decimal literal exponent canonicalized", typed(ir.Lit(ir.LitDecimal, "1e3"), ir.BigDecimalType()), ir.BigDecimalType(), RuleDecimalLiteral, `new BigDecimal("1E+3")`},
		{"decimal literal trailing zeros kept", typed(ir.Lit(ir.LitDecimal, "2.500"), ir.BigDecimalType()), ir.BigDecimalType(), RuleDecimalLiteral, `new BigDecimal("2.500")`},
		{"decimal literal to int", typed(ir.Lit(ir.LitDecimal, "0.1"), ir.BigDecimalType()), ir.Primitive(ir.PrimInt), RuleDecimalLiteral, `new BigDecimal("0.1")`},
		{"biginteger literal", typed(ir.Lit(ir.LitBigInteger, "123456789012345678901234567890"), ir.BigIntegerType()), ir.BigIntegerType(), RuleBigIntegerLiteral, `new BigInteger("123456789012345678901234567890")`},
		{"double literal to BigDecimal", typed(ir.Lit(ir.LitDouble, "3.14"), ir.Primitive(ir.PrimDouble)), ir.BigDecimalType(), RuleLiteralToDecimal, `new BigDecimal("3.14")`},
		{"trailing zeros kept", typed(ir.Lit(ir.LitDouble, "1.50"), ir.Primitive(ir.PrimDouble)), ir.BigDecimalType(), RuleLiteralToDecimal, `new BigDecimal("1.50")`},
		{"exponent canonicalized", typed(ir.Lit(ir.LitDouble, "1e3"), ir.Primitive(ir.PrimDouble)), ir.BigDecimalType(), RuleLiteralToDecimal, `new BigDecimal("1E+3")`},
		{"small exponent", typed(ir.Lit(ir.LitDouble, "0.0000001"), ir.Primitive(ir.PrimDouble)), ir.BigDecimalType(), RuleLiteralToDecimal, `new BigDecimal("1E-7")`},
		{"biginteger literal to BigDecimal", typed(ir.Lit(ir.LitBigInteger, "10"), ir.BigIntegerType()), ir.BigDecimalType(), RuleLiteralToDecimal, `new BigDecimal("10")`},
		{"int literal to BigInteger", typed(ir.Lit(ir.LitInt, "42"), ir.Primitive(ir.PrimInt)), ir.BigIntegerType(), RuleLiteralToBigInt, `new BigInteger("42")`},
		{"double literal truncated", typed(ir.Lit(ir.LitDouble, "12.99"), ir.Primitive(ir.PrimDouble)), ir.BigIntegerType(), RuleLiteralToBigInt, `new BigInteger("12")`},
		{"negative truncated toward zero", typed(ir.Lit(ir.LitDouble, "-12.99"), ir.Primitive(ir.PrimDouble)), ir.BigIntegerType(), RuleLiteralToBigInt, `new BigInteger("-12")`},
		{"negative fraction is zero", typed(ir.Lit(ir.LitDouble, "-0.5"), ir.Primitive(ir.PrimDouble)), ir.BigIntegerType(), RuleLiteralToBigInt, `new BigInteger("0")`},
		{"exponent expanded", typed(ir.Lit(ir.LitDouble, "1.5e3"), ir.Primitive(ir.PrimDouble)), ir.BigIntegerType(), RuleLiteralToBigInt, `new BigInteger("1500")`},
		{"name to BigDecimal", typed(salary, ir.Primitive(ir.PrimInt)), ir.BigDecimalType(), RuleNameToDecimal, "new BigDecimal($salary)"},
		{"untyped name to BigDecimal", typed(salary, ir.SemanticType{}), ir.BigDecimalType(), RuleNameToDecimal, "new BigDecimal($salary)"},
		{"name to BigInteger", typed(salary, ir.Boxed(ir.PrimLong)), ir.BigIntegerType(), RuleNameToBigInt, "new BigInteger($salary)"},
		{"BigDecimal name unchanged", typed(salary, ir.BigDecimalType()), ir.BigDecimalType(), RuleUnchanged, "$salary"},
		{"BigInteger name unchanged", typed(salary, ir.BigIntegerType()), ir.BigIntegerType(), RuleUnchanged, "$salary"},
		{"field to BigDecimal unchanged", typed(age, ir.Primitive(ir.PrimInt)), ir.BigDecimalType(), RuleUnchanged, "$other.age"},
		{"int to int unchanged", typed(age, ir.Primitive(ir.PrimInt)), ir.Primitive(ir.PrimInt), RuleUnchanged, "$other.age"},
		{"string literal unchanged", typed(ir.Lit(ir.LitString, "x"), ir.Reference("String")), ir.BigDecimalType(), RuleUnchanged, `"x"`},
		{"hex literal unchanged", typed(ir.Lit(ir.LitInt, "0x1F"), ir.Primitive(ir.PrimInt)), ir.BigDecimalType(), RuleUnchanged, "0x1F"},
		{"reference target unchanged", typed(age, ir.Reference("Address")), ir.Reference("Address"), RuleUnchanged, "$other.age"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.rule, RuleFor(tt.src, tt.target).Name)
			assert.Equal(t, tt.expected, ir.Print(Narrow(tt.src, tt.target)))
		})
	}
}

func TestNarrowDoubleToLongIsCallNotCast(t *testing.T) {
	x := ir.NewName("$x")

	out := Narrow(typed(x, ir.Boxed(ir.PrimDouble)), ir.Boxed(ir.PrimLong))
	call, ok := out.(*ir.MethodCall)
	require.True(t, ok, "expected a narrowing call, got %T", out)
	assert.Equal(t, "longValue", call.Name)
	assert.Same(t, x, call.Scope)

	out = Narrow(typed(x, ir.Boxed(ir.PrimLong)), ir.Boxed(ir.PrimLong))
	cast, ok := out.(*ir.Cast)
	require.True(t, ok, "expected a cast, got %T", out)
	assert.Equal(t, ir.Primitive(ir.PrimLong), cast.Type)
}

func TestNarrowDecimalLiteralIsExactAndIdempotent(t *testing.T) {
	src := typed(ir.Lit(ir.LitDouble, "3.14"), ir.Primitive(ir.PrimDouble))

	first := Narrow(src, ir.BigDecimalType())
	require.Equal(t, `new BigDecimal("3.14")`, ir.Print(first))

	second := Narrow(typed(first, ir.BigDecimalType()), ir.BigDecimalType())
	assert.Equal(t, ir.Print(first), ir.Print(second))
	assert.Equal(t, RuleUnchanged, RuleFor(typed(first, ir.BigDecimalType()), ir.BigDecimalType()).Name)
}

func TestNarrowNullIsIdentity(t *testing.T) {
	null := ir.NullLit()
	targets := []ir.SemanticType{
		ir.Primitive(ir.PrimDouble),
		ir.Boxed(ir.PrimLong),
		ir.BigDecimalType(),
		ir.BigIntegerType(),
		ir.Reference("Person"),
		ir.Unknown(),
	}
	for _, target := range targets {
		assert.Same(t, null, Narrow(typed(null, ir.SemanticType{}), target), target.String())
	}
}

func TestNarrowDoesNotMutateSource(t *testing.T) {
	lit := ir.Lit(ir.LitDouble, "2.50")
	Narrow(typed(lit, ir.Primitive(ir.PrimDouble)), ir.BigIntegerType())
	assert.Equal(t, "2.50", lit.Text)
	assert.Equal(t, ir.LitDouble, lit.Kind)
}

func TestNarrowNilExpression(t *testing.T) {
	assert.Nil(t, Narrow(ir.TypedExpression{}, ir.BigDecimalType()))
}

func TestTableOrder(t *testing.T) {
	names := make([]string, 0, len(table))
	for _, r := range table {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{
		RuleNullLiteral, RuleToDouble, RuleDoubleToLong, RuleToLong,
		RuleDecimalLiteral, RuleBigIntegerLiteral, RuleLiteralToDecimal,
		RuleLiteralToBigInt, RuleNameToDecimal, RuleNameToBigInt,
	}, names)
}

package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ruleidx/internal/ir"
	"github.com/roach88/ruleidx/internal/testutil"
)

func newTestAnalyzer(opts Options) (*Analyzer, *testutil.SequenceIDs) {
	ids := testutil.NewSequenceIDs()
	return NewAnalyzer(personScope(), ids, opts), ids
}

func TestAnalyzeAlpha(t *testing.T) {
	a, _ := newTestAnalyzer(Options{})
	pc := ageOver18()

	idx, err := a.Analyze(&pc)
	require.NoError(t, err)
	require.NotNil(t, idx)

	assert.Equal(t, ir.IndexAlpha, idx.Kind)
	assert.Equal(t, ir.Primitive(ir.PrimInt), idx.KeyType)
	assert.Equal(t, ir.RelGT, idx.Op)
	assert.Equal(t, "age", idx.FieldName)
	assert.Equal(t, int64(1), idx.ID)
	assert.Equal(t, "_this -> _this.age", ir.Print(idx.LeftExtractor))
	assert.Equal(t, "18", ir.Print(idx.RightValue))
	assert.Nil(t, idx.Extractor)
}

func TestAnalyzeAlphaForEveryOperator(t *testing.T) {
	for _, op := range []ir.BinaryOp{ir.OpEq, ir.OpNe, ir.OpGt, ir.OpGe, ir.OpLt, ir.OpLe} {
		t.Run(string(op), func(t *testing.T) {
			a, _ := newTestAnalyzer(Options{})
			pc := comparison("name "+string(op)+" \"x\"", op,
				thisField("name", ir.Reference("String")),
				typed(ir.Lit(ir.LitString, "x"), ir.Reference("String")))

			idx, err := a.Analyze(&pc)
			require.NoError(t, err)
			require.NotNil(t, idx)
			assert.Equal(t, ir.IndexAlpha, idx.Kind)
			assert.Equal(t, ir.DecodeRelational(op), idx.Op)
		})
	}
}

func TestAnalyzeAlphaNarrowsRightValue(t *testing.T) {
	a, _ := newTestAnalyzer(Options{})
	pc := comparison("salary > 1000.50", ir.OpGt,
		thisField("salary", ir.BigDecimalType()),
		typed(ir.Lit(ir.LitDouble, "1000.50"), ir.Primitive(ir.PrimDouble)))

	idx, err := a.Analyze(&pc)
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, ir.BigDecimalType(), idx.KeyType)
	assert.Equal(t, `new BigDecimal("1000.50")`, ir.Print(idx.RightValue))
}

func TestAnalyzeBeta(t *testing.T) {
	a, _ := newTestAnalyzer(Options{})
	pc := ageOverOther()

	idx, err := a.Analyze(&pc)
	require.NoError(t, err)
	require.NotNil(t, idx)

	assert.Equal(t, ir.IndexBeta, idx.Kind)
	assert.Equal(t, ir.Primitive(ir.PrimInt), idx.KeyType)
	require.NotNil(t, idx.Extractor)
	assert.Equal(t, []string{"$other"}, idx.Extractor.Params)
	assert.Equal(t, "$other -> $other.age", ir.Print(idx.Extractor))
	assert.Nil(t, idx.RightValue)
}

func TestAnalyzeBetaNarrowsExtractor(t *testing.T) {
	a, _ := newTestAnalyzer(Options{})
	pc := comparison("weight == $other.weight", ir.OpEq,
		thisField("weight", ir.Boxed(ir.PrimLong)),
		typed(ir.Field(ir.NewName("$other"), "weight"), ir.Boxed(ir.PrimDouble)),
		"$other")

	idx, err := a.Analyze(&pc)
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, "$other -> $other.weight.longValue()", ir.Print(idx.Extractor))
}

func TestAnalyzeBetaMethodCallOnName(t *testing.T) {
	a, _ := newTestAnalyzer(Options{})
	pc := comparison("age > $other.getAge()", ir.OpGt,
		thisField("age", ir.Primitive(ir.PrimInt)),
		typed(ir.Call(ir.NewName("$other"), "getAge"), ir.Primitive(ir.PrimInt)),
		"$other")

	idx, err := a.Analyze(&pc)
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, ir.IndexBeta, idx.Kind)
	assert.Equal(t, "$other -> $other.getAge()", ir.Print(idx.Extractor))
}

func TestAnalyzeBetaBareName(t *testing.T) {
	a, _ := newTestAnalyzer(Options{})
	pc := comparison("age > $other", ir.OpGt,
		thisField("age", ir.Primitive(ir.PrimInt)),
		typed(ir.NewName("$other"), ir.Primitive(ir.PrimInt)),
		"$other")

	idx, err := a.Analyze(&pc)
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, ir.IndexBeta, idx.Kind)
}

func TestAnalyzeNotIndexable(t *testing.T) {
	nestedCall := ir.Call(ir.Call(ir.NewName("$other"), "getAddress"), "getAgeComputed")

	tests := []struct {
		name string
		pc   func() ir.ParsedConstraint
	}{
		{"no decode kind", func() ir.ParsedConstraint {
			pc := ageOver18()
			pc.DecodeConstraintKind = ir.RelNone
			return pc
		}},
		{"no field name", func() ir.ParsedConstraint {
			pc := ageOver18()
			pc.Left = typed(ir.Call(ir.This(), "computeAge"), ir.Primitive(ir.PrimInt))
			return pc
		}},
		{"bare subject", func() ir.ParsedConstraint {
			pc := ageOver18()
			pc.Left = &ir.TypedExpression{Expr: ir.This(), Type: ir.Reference("Person"), FieldName: "this"}
			return pc
		}},
		{"receiver is a call", func() ir.ParsedConstraint {
			return comparison("age > $other.getAddress().getAgeComputed()", ir.OpGt,
				thisField("age", ir.Primitive(ir.PrimInt)),
				typed(nestedCall, ir.Primitive(ir.PrimInt)),
				"$other")
		}},
		{"receiver not in scope", func() ir.ParsedConstraint {
			return comparison("age > $stranger.age", ir.OpGt,
				thisField("age", ir.Primitive(ir.PrimInt)),
				typed(ir.Field(ir.NewName("$stranger"), "age"), ir.Primitive(ir.PrimInt)),
				"$stranger")
		}},
		{"receiver is enclosed", func() ir.ParsedConstraint {
			return comparison("age > ($other.age)", ir.OpGt,
				thisField("age", ir.Primitive(ir.PrimInt)),
				typed(&ir.Enclosed{Inner: ir.Field(ir.NewName("$other"), "age")}, ir.Primitive(ir.PrimInt)),
				"$other")
		}},
		{"two declarations", func() ir.ParsedConstraint {
			return comparison("age > $other.age + $third.age", ir.OpGt,
				thisField("age", ir.Primitive(ir.PrimInt)),
				typed(ir.Field(ir.NewName("$other"), "age"), ir.Primitive(ir.PrimInt)),
				"$other", "$third")
		}},
		{"one declaration without right operand", func() ir.ParsedConstraint {
			pc := ageOverOther()
			pc.Right = nil
			return pc
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ids := newTestAnalyzer(Options{})
			pc := tt.pc()
			idx, err := a.Analyze(&pc)
			require.NoError(t, err)
			assert.Nil(t, idx)
			assert.Equal(t, int64(0), ids.Current(), "no id is drawn for a non-indexable constraint")
		})
	}
}

func TestAnalyzeNestedReferenceFlipsBetaToNone(t *testing.T) {
	a, _ := newTestAnalyzer(Options{})

	direct := ageOverOther()
	idx, err := a.Analyze(&direct)
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, ir.IndexBeta, idx.Kind)

	nested := ageOverOther()
	nested.Right = typed(ir.Field(ir.Call(ir.NewName("$other"), "getSelf"), "age"), ir.Primitive(ir.PrimInt))
	idx, err = a.Analyze(&nested)
	require.NoError(t, err)
	assert.Nil(t, idx)
}

func TestAnalyzeScopelessCall(t *testing.T) {
	pc := comparison("age > computeAge()", ir.OpGt,
		thisField("age", ir.Primitive(ir.PrimInt)),
		typed(ir.Call(nil, "computeAge"), ir.Primitive(ir.PrimInt)),
		"$other")

	t.Run("strict", func(t *testing.T) {
		a, _ := newTestAnalyzer(Options{})
		_, err := a.Analyze(&pc)
		require.Error(t, err)
		assert.True(t, IsStructuralDefect(err))

		var ce *CompileError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, ErrCodeMissingCallScope, ce.Code)
		assert.Contains(t, err.Error(), "computeAge")
		assert.Contains(t, err.Error(), "age > computeAge()")
	})

	t.Run("lenient", func(t *testing.T) {
		a, _ := newTestAnalyzer(Options{LenientScopelessCalls: true})
		idx, err := a.Analyze(&pc)
		require.NoError(t, err)
		assert.Nil(t, idx)
	})

	t.Run("alpha never inspects the right receiver", func(t *testing.T) {
		a, _ := newTestAnalyzer(Options{})
		alpha := pc
		alpha.UsedDeclarations = nil
		idx, err := a.Analyze(&alpha)
		require.NoError(t, err)
		require.NotNil(t, idx)
		assert.Equal(t, ir.IndexAlpha, idx.Kind)
	})
}

func TestAnalyzeIndexType(t *testing.T) {
	t.Run("falls back to right type", func(t *testing.T) {
		a, _ := newTestAnalyzer(Options{})
		pc := ageOver18()
		pc.Left = thisField("age", ir.SemanticType{})
		idx, err := a.Analyze(&pc)
		require.NoError(t, err)
		require.NotNil(t, idx)
		assert.Equal(t, ir.Primitive(ir.PrimInt), idx.KeyType)
	})

	t.Run("erases generics", func(t *testing.T) {
		a, _ := newTestAnalyzer(Options{})
		pc := comparison("tags == $tags", ir.OpEq,
			thisField("tags", ir.Reference("List<String>")),
			typed(ir.NewName("$tags"), ir.Reference("List<String>")))
		idx, err := a.Analyze(&pc)
		require.NoError(t, err)
		require.NotNil(t, idx)
		assert.Equal(t, ir.Reference("List"), idx.KeyType)
	})

	t.Run("no type is a structural defect", func(t *testing.T) {
		a, ids := newTestAnalyzer(Options{})
		pc := ageOver18()
		pc.Left = thisField("age", ir.SemanticType{})
		pc.Right = typed(ir.Lit(ir.LitInt, "18"), ir.SemanticType{})
		_, err := a.Analyze(&pc)
		require.Error(t, err)
		assert.True(t, IsStructuralDefect(err))
		assert.Contains(t, err.Error(), ErrCodeNoIndexType)
		assert.Contains(t, err.Error(), "age > 18")
		assert.Equal(t, int64(0), ids.Current())
	})
}

func TestAnalyzeMissingLeftOperand(t *testing.T) {
	a, _ := newTestAnalyzer(Options{})
	pc := ageOver18()
	pc.Left = nil

	_, err := a.Analyze(&pc)
	require.Error(t, err)
	assert.True(t, IsStructuralDefect(err))
	assert.False(t, IsUnsupported(err))
}

func TestAnalyzeDrawsFreshIDs(t *testing.T) {
	a, _ := newTestAnalyzer(Options{})

	first := ageOver18()
	second := ageOverOther()
	idx1, err := a.Analyze(&first)
	require.NoError(t, err)
	idx2, err := a.Analyze(&second)
	require.NoError(t, err)

	assert.Equal(t, int64(1), idx1.ID)
	assert.Equal(t, int64(2), idx2.ID)
}

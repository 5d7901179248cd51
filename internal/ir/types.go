package ir

import (
	"strings"
)

// TypeKind classifies a SemanticType. The zero value means "no type".
type TypeKind int

const (
	TypeAbsent TypeKind = iota
	TypePrimitive
	TypeBoxed
	TypeBigDecimal
	TypeBigInteger
	TypeReference
	TypeUnknown
)

// PrimitiveKind names a primitive (or its boxed counterpart).
type PrimitiveKind string

const (
	PrimBoolean PrimitiveKind = "boolean"
	PrimByte    PrimitiveKind = "byte"
	PrimChar    PrimitiveKind = "char"
	PrimShort   PrimitiveKind = "short"
	PrimInt     PrimitiveKind = "int"
	PrimLong    PrimitiveKind = "long"
	PrimFloat   PrimitiveKind = "float"
	PrimDouble  PrimitiveKind = "double"
)

// boxedNames maps primitive kinds to their boxed class names.
var boxedNames = map[PrimitiveKind]string{
	PrimBoolean: "Boolean",
	PrimByte:    "Byte",
	PrimChar:    "Character",
	PrimShort:   "Short",
	PrimInt:     "Integer",
	PrimLong:    "Long",
	PrimFloat:   "Float",
	PrimDouble:  "Double",
}

// SemanticType is the statically known type of an expression.
//
// Construct with Primitive, Boxed, BigDecimalType, BigIntegerType,
// Reference or Unknown. The zero value is an absent type (IsSet is false),
// which is distinct from Unknown.
type SemanticType struct {
	Kind TypeKind
	Prim PrimitiveKind // TypePrimitive and TypeBoxed only
	Name string        // TypeReference only
}

// Primitive returns a primitive type.
func Primitive(k PrimitiveKind) SemanticType {
	return SemanticType{Kind: TypePrimitive, Prim: k}
}

// Boxed returns a boxed primitive type.
func Boxed(k PrimitiveKind) SemanticType {
	return SemanticType{Kind: TypeBoxed, Prim: k}
}

// BigDecimalType returns the arbitrary-precision decimal type.
func BigDecimalType() SemanticType {
	return SemanticType{Kind: TypeBigDecimal}
}

// BigIntegerType returns the arbitrary-precision integer type.
func BigIntegerType() SemanticType {
	return SemanticType{Kind: TypeBigInteger}
}

// Reference returns a named reference type.
func Reference(name string) SemanticType {
	return SemanticType{Kind: TypeReference, Name: name}
}

// Unknown returns the unknown type.
func Unknown() SemanticType {
	return SemanticType{Kind: TypeUnknown}
}

// IsSet reports whether a type is present.
func (t SemanticType) IsSet() bool {
	return t.Kind != TypeAbsent
}

// Raw returns the erased form of t: generic arguments of a reference are
// dropped, every other type is returned unchanged.
func (t SemanticType) Raw() SemanticType {
	if t.Kind != TypeReference {
		return t
	}
	if i := strings.IndexByte(t.Name, '<'); i >= 0 {
		return Reference(t.Name[:i])
	}
	return t
}

// Is reports whether t is the primitive or boxed form of k.
func (t SemanticType) Is(k PrimitiveKind) bool {
	return (t.Kind == TypePrimitive || t.Kind == TypeBoxed) && t.Prim == k
}

// IsDouble reports whether t is double or Double.
func (t SemanticType) IsDouble() bool {
	return t.Is(PrimDouble)
}

// IsLong reports whether t is long or Long.
func (t SemanticType) IsLong() bool {
	return t.Is(PrimLong)
}

// String returns the source-level name of the type.
func (t SemanticType) String() string {
	switch t.Kind {
	case TypePrimitive:
		return string(t.Prim)
	case TypeBoxed:
		return boxedNames[t.Prim]
	case TypeBigDecimal:
		return "BigDecimal"
	case TypeBigInteger:
		return "BigInteger"
	case TypeReference:
		return t.Name
	case TypeUnknown:
		return "?"
	default:
		return ""
	}
}

// ParseType parses a source-level type name.
// Accepts primitives ("int"), boxed names ("Integer", "java.lang.Integer"),
// "BigDecimal"/"BigInteger" (optionally java.math qualified), "?" for
// unknown, and anything else as a reference. The empty string is absent.
func ParseType(s string) SemanticType {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return SemanticType{}
	case "?":
		return Unknown()
	case "BigDecimal", "java.math.BigDecimal":
		return BigDecimalType()
	case "BigInteger", "java.math.BigInteger":
		return BigIntegerType()
	}
	for k, boxed := range boxedNames {
		switch s {
		case string(k):
			return Primitive(k)
		case boxed, "java.lang." + boxed:
			return Boxed(k)
		}
	}
	return Reference(s)
}

// TypedExpression pairs an expression with its statically known type.
//
// FieldName is set only when Expr is a direct field projection of the
// implicit subject (`_this.age`), which is what makes a constraint
// field-shaped and therefore a candidate for indexing.
type TypedExpression struct {
	Expr      Expr
	Type      SemanticType
	FieldName string
}

// Variant tags the shape of a parse result. The zero value is invalid.
type Variant int

const (
	VariantInvalid Variant = iota
	VariantSingle
	VariantMultiple
)

// String returns the variant name.
func (v Variant) String() string {
	switch v {
	case VariantSingle:
		return "single"
	case VariantMultiple:
		return "multiple"
	default:
		return "invalid"
	}
}

// RelationalOp is the decoded comparison kind of a constraint.
type RelationalOp string

const (
	RelNone RelationalOp = ""
	RelEQ   RelationalOp = "EQUAL"
	RelNE   RelationalOp = "NOT_EQUAL"
	RelGT   RelationalOp = "GREATER_THAN"
	RelGE   RelationalOp = "GREATER_OR_EQUAL"
	RelLT   RelationalOp = "LESS_THAN"
	RelLE   RelationalOp = "LESS_OR_EQUAL"
)

// relationalOps maps comparison operators to decoded kinds.
var relationalOps = map[BinaryOp]RelationalOp{
	OpEq: RelEQ,
	OpNe: RelNE,
	OpGt: RelGT,
	OpGe: RelGE,
	OpLt: RelLT,
	OpLe: RelLE,
}

// DecodeRelational returns the decoded kind for a comparison operator,
// or RelNone for any other operator.
func DecodeRelational(op BinaryOp) RelationalOp {
	return relationalOps[op]
}

// ParseRelational accepts either an operator ("<=") or a decoded kind
// name ("LESS_OR_EQUAL", "LE"). Unrecognized input returns false.
func ParseRelational(s string) (RelationalOp, bool) {
	if op, ok := relationalOps[BinaryOp(s)]; ok {
		return op, true
	}
	switch strings.ToUpper(s) {
	case "EQ", string(RelEQ):
		return RelEQ, true
	case "NE", string(RelNE):
		return RelNE, true
	case "GT", string(RelGT):
		return RelGT, true
	case "GE", string(RelGE):
		return RelGE, true
	case "LT", string(RelLT):
		return RelLT, true
	case "LE", string(RelLE):
		return RelLE, true
	}
	return RelNone, false
}

// Unification names a variable unified with the right-hand side.
type Unification struct {
	Name string
	Type SemanticType
}

// ParsedConstraint is one parsed comparison or binding, as produced by the
// parser. Left must be present whenever DecodeConstraintKind is set.
// UsedDeclarations never contains the implicit subject.
type ParsedConstraint struct {
	Variant Variant
	Source  string // original constraint text, for diagnostics
	Expr    Expr   // whole constraint expression

	Left  *TypedExpression
	Right *TypedExpression

	UsedDeclarations       []string
	UsedDeclarationsOnLeft []string

	DecodeConstraintKind RelationalOp
	ExprBinding          string
	IsStatic             bool
	SkipSubjectAsParam   bool
	Unification          *Unification
}

// IsValidExpression reports whether the constraint carries a well-formed
// expression: the whole expression is present and each side that is
// present has an expression.
func (pc *ParsedConstraint) IsValidExpression() bool {
	if pc.Expr == nil {
		return false
	}
	if pc.Left != nil && pc.Left.Expr == nil {
		return false
	}
	if pc.Right != nil && pc.Right.Expr == nil {
		return false
	}
	return true
}

// Declaration is a named binding visible to later constraints of a rule.
type Declaration struct {
	Name    string
	Type    SemanticType
	Pattern string // pattern type the declaration was bound on, if any
}

// IndexKind tells which network node an index is built for.
type IndexKind string

const (
	IndexNone  IndexKind = ""
	IndexAlpha IndexKind = "alpha"
	IndexBeta  IndexKind = "beta"
)

// IndexDescriptor describes an index built from a single constraint.
//
// Alpha indexes carry RightValue, the narrowed right operand compared
// against the field. Beta indexes carry Extractor, a one-parameter lambda
// over the joined declaration.
type IndexDescriptor struct {
	ID            int64
	Kind          IndexKind
	KeyType       SemanticType
	Op            RelationalOp
	FieldName     string
	LeftExtractor *Lambda
	Extractor     *Lambda
	RightValue    Expr
}

// BindingExpr binds a variable to an expression evaluated against the
// subject and the declarations it uses. Expr is a Lambda unless the
// constraint is static.
type BindingExpr struct {
	Variable string
	Type     SemanticType
	Expr     Expr
	Emission Expr
}

// CompiledConstraint is the result of compiling one constraint.
// The caller owns it exclusively.
type CompiledConstraint struct {
	Source         string
	ExprID         string
	NormalizedExpr Expr
	Index          *IndexDescriptor
	Bindings       []BindingExpr
	Emission       Expr
}

// Binding returns the first binding produced, if any.
func (cc *CompiledConstraint) Binding() (BindingExpr, bool) {
	if len(cc.Bindings) == 0 {
		return BindingExpr{}, false
	}
	return cc.Bindings[0], true
}

// IndexKind returns the index kind, IndexNone when not indexed.
func (cc *CompiledConstraint) IndexKind() IndexKind {
	if cc.Index == nil {
		return IndexNone
	}
	return cc.Index.Kind
}

// RuleSpec is a rule as loaded from a rule file: its declarations and the
// parsed constraints to compile, in declaration order.
type RuleSpec struct {
	ID           string
	DSL          string // "pattern" or "flow"
	Declarations []Declaration
	Constraints  []ParsedConstraint
}

// ValidDSLs defines allowed builder styles.
var ValidDSLs = map[string]bool{
	"pattern": true,
	"flow":    true,
}

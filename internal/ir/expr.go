package ir

// ThisName is the identifier of the implicit subject of a pattern.
// A constraint written as `age > 18` is parsed as `_this.age > 18`.
const ThisName = "_this"

// Expr is a sealed interface representing an expression tree node.
//
// Node types:
//   - Name: a bare identifier (declaration, local, or the subject)
//   - FieldAccess: scope.field
//   - MethodCall: scope.name(args...), scope may be nil
//   - Literal: a literal with its exact source text
//   - Cast: (type) expr
//   - New: new Type(args...)
//   - Binary: left op right
//   - Enclosed: (inner)
//   - Lambda: (params...) -> body
type Expr interface {
	exprNode() // Sealed - only these types implement it
}

// Name is a bare identifier reference.
type Name struct {
	Ident string
}

func (*Name) exprNode() {}

// FieldAccess is a field-style projection of Scope.
type FieldAccess struct {
	Scope Expr
	Field string
}

func (*FieldAccess) exprNode() {}

// MethodCall is a method-style call. Scope is nil for unqualified calls.
type MethodCall struct {
	Scope Expr
	Name  string
	Args  []Expr
}

func (*MethodCall) exprNode() {}

// LiteralKind classifies a literal.
type LiteralKind string

const (
	LitInt        LiteralKind = "int"
	LitLong       LiteralKind = "long"
	LitFloat      LiteralKind = "float"
	LitDouble     LiteralKind = "double"
	LitDecimal    LiteralKind = "decimal"    // 3.14B
	LitBigInteger LiteralKind = "biginteger" // 10I
	LitString     LiteralKind = "string"
	LitChar       LiteralKind = "char"
	LitBool       LiteralKind = "bool"
	LitNull       LiteralKind = "null"
)

// ValidLiteralKinds defines the allowed literal kinds.
var ValidLiteralKinds = map[LiteralKind]bool{
	LitInt: true, LitLong: true, LitFloat: true, LitDouble: true,
	LitDecimal: true, LitBigInteger: true, LitString: true, LitChar: true,
	LitBool: true, LitNull: true,
}

// Literal is a literal value. Text holds the exact source text without
// type suffix or quotes; numeric text is never round-tripped through floats.
type Literal struct {
	Kind LiteralKind
	Text string
}

func (*Literal) exprNode() {}

// IsNumeric reports whether the literal denotes a number.
func (l *Literal) IsNumeric() bool {
	switch l.Kind {
	case LitInt, LitLong, LitFloat, LitDouble, LitDecimal, LitBigInteger:
		return true
	}
	return false
}

// Cast is an explicit conversion to Type.
type Cast struct {
	Type SemanticType
	Expr Expr
}

func (*Cast) exprNode() {}

// New constructs a value of Type from Args.
type New struct {
	Type SemanticType
	Args []Expr
}

func (*New) exprNode() {}

// BinaryOp is a binary operator token.
type BinaryOp string

const (
	OpEq  BinaryOp = "=="
	OpNe  BinaryOp = "!="
	OpGt  BinaryOp = ">"
	OpGe  BinaryOp = ">="
	OpLt  BinaryOp = "<"
	OpLe  BinaryOp = "<="
	OpAnd BinaryOp = "&&"
	OpOr  BinaryOp = "||"
	OpAdd BinaryOp = "+"
	OpSub BinaryOp = "-"
	OpMul BinaryOp = "*"
	OpDiv BinaryOp = "/"
)

// Binary is a binary operation.
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (*Binary) exprNode() {}

// Enclosed is a parenthesized expression.
type Enclosed struct {
	Inner Expr
}

func (*Enclosed) exprNode() {}

// Lambda is an anonymous function with untyped parameters.
type Lambda struct {
	Params []string
	Body   Expr
}

func (*Lambda) exprNode() {}

// NewName returns a Name node.
func NewName(ident string) *Name {
	return &Name{Ident: ident}
}

// This returns a reference to the implicit subject.
func This() *Name {
	return &Name{Ident: ThisName}
}

// Field returns scope.field.
func Field(scope Expr, field string) *FieldAccess {
	return &FieldAccess{Scope: scope, Field: field}
}

// Call returns scope.name(args...).
func Call(scope Expr, name string, args ...Expr) *MethodCall {
	return &MethodCall{Scope: scope, Name: name, Args: args}
}

// Lit returns a literal of the given kind.
func Lit(kind LiteralKind, text string) *Literal {
	return &Literal{Kind: kind, Text: text}
}

// NullLit returns the null literal.
func NullLit() *Literal {
	return &Literal{Kind: LitNull, Text: "null"}
}

// IsThis reports whether e is a bare reference to the implicit subject.
func IsThis(e Expr) bool {
	n, ok := e.(*Name)
	return ok && n.Ident == ThisName
}

// ContainsThis reports whether the subject is referenced anywhere in e.
func ContainsThis(e Expr) bool {
	found := false
	Walk(e, func(n Expr) bool {
		if IsThis(n) {
			found = true
		}
		return !found
	})
	return found
}

// Walk visits e and its children depth-first. Returning false from fn
// stops descent into the current node's children.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *Name, *Literal:
	case *FieldAccess:
		Walk(n.Scope, fn)
	case *MethodCall:
		Walk(n.Scope, fn)
		for _, a := range n.Args {
			Walk(a, fn)
		}
	case *Cast:
		Walk(n.Expr, fn)
	case *New:
		for _, a := range n.Args {
			Walk(a, fn)
		}
	case *Binary:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *Enclosed:
		Walk(n.Inner, fn)
	case *Lambda:
		Walk(n.Body, fn)
	}
}

// LeftOperand returns the leftmost operand of a binary chain, or e itself.
// For `_this.age > 18 && _this.age < 65` it returns `_this.age`.
func LeftOperand(e Expr) Expr {
	for {
		switch n := e.(type) {
		case *Binary:
			e = n.Left
		case *Enclosed:
			e = n.Inner
		default:
			return e
		}
	}
}

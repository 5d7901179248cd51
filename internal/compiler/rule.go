package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/ruleidx/internal/ir"
)

// CompileRule parses a CUE value into a RuleSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the rule struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`rule: "adult": { ... }`)
//	spec, err := CompileRule(v.LookupPath(cue.ParsePath(`rule."adult"`)))
//
// Expressions are written as already-parsed trees:
//
//	{name: "$p"}                        $p
//	{field: "age"}                      _this.age
//	{field: "age", of: {name: "$p"}}    $p.age
//	{call: "size", on: {...}, args: []} receiver.size()
//	{literal: "3.14", kind: "decimal"}  3.14B
//	{binary: ">", left: {...}, right: {...}}
//	{enclosed: {...}}, {cast: "long", expr: {...}}, {new: "BigDecimal", args: [...]}
func CompileRule(v cue.Value) (*ir.RuleSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.RuleSpec{}

	// e.g., `rule: "adult-check": { ... }` → id is "adult-check"
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.ID = strings.Trim(labels[len(labels)-1].String(), `"`)
	}

	var err error
	if spec.DSL, err = optionalString(v, "dsl"); err != nil {
		return nil, err
	}

	spec.Declarations, err = parseDeclarations(v)
	if err != nil {
		return nil, err
	}

	constraintsVal := v.LookupPath(cue.ParsePath("constraints"))
	if !constraintsVal.Exists() {
		return nil, &CompileError{
			Code:    ErrCodeDecode,
			Field:   "constraints",
			Message: "constraints are required",
			Pos:     v.Pos(),
		}
	}
	iter, err := constraintsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		pc, err := parseConstraint(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("constraints[%d]: %w", i, err)
		}
		spec.Constraints = append(spec.Constraints, pc)
	}

	return spec, nil
}

// CompileRuleSpec compiles every constraint of spec in order, against a
// scope seeded with the rule's declarations.
//
// A rule's own dsl field takes precedence over opts.PatternDSL.
func CompileRuleSpec(spec *ir.RuleSpec, opts Options) ([]*ir.CompiledConstraint, error) {
	switch spec.DSL {
	case "pattern":
		opts.PatternDSL = true
	case "flow":
		opts.PatternDSL = false
	}

	c := New(NewMapScope(spec.Declarations...), opts)
	out := make([]*ir.CompiledConstraint, 0, len(spec.Constraints))
	for i, pc := range spec.Constraints {
		cc, err := c.Compile(pc)
		if err != nil {
			return nil, fmt.Errorf("rule %s constraint %d: %w", spec.ID, i, err)
		}
		out = append(out, cc)
	}
	return out, nil
}

// parseDeclarations reads `declarations: {"$p": "Person"}`. A declaration
// may also be a struct `{type: "Person", pattern: "Person"}`.
func parseDeclarations(v cue.Value) ([]ir.Declaration, error) {
	declVal := v.LookupPath(cue.ParsePath("declarations"))
	if !declVal.Exists() {
		return nil, nil
	}

	iter, err := declVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var decls []ir.Declaration
	for iter.Next() {
		name := strings.Trim(iter.Label(), `"`)
		val := iter.Value()

		decl := ir.Declaration{Name: name}
		if val.IncompleteKind() == cue.StringKind {
			typeName, err := val.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			decl.Type = ir.ParseType(typeName)
		} else {
			typeName, err := optionalString(val, "type")
			if err != nil {
				return nil, err
			}
			decl.Type = ir.ParseType(typeName)
			if decl.Pattern, err = optionalString(val, "pattern"); err != nil {
				return nil, err
			}
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

// parseConstraint decodes one constraint struct.
func parseConstraint(v cue.Value) (ir.ParsedConstraint, error) {
	var pc ir.ParsedConstraint

	variant, err := optionalString(v, "variant")
	if err != nil {
		return pc, err
	}
	switch variant {
	case "", "single":
		pc.Variant = ir.VariantSingle
	case "multiple":
		pc.Variant = ir.VariantMultiple
	default:
		// Left for Validate and Compile to reject.
		pc.Variant = ir.VariantInvalid
	}

	if pc.Left, err = parseTyped(v, "left"); err != nil {
		return pc, err
	}
	if pc.Right, err = parseTyped(v, "right"); err != nil {
		return pc, err
	}

	op, err := optionalString(v, "op")
	if err != nil {
		return pc, err
	}
	if op != "" {
		kind, ok := ir.ParseRelational(op)
		if !ok {
			return pc, &CompileError{
				Code:    ErrCodeDecode,
				Field:   "op",
				Message: fmt.Sprintf("unknown relational operator %q", op),
				Pos:     v.LookupPath(cue.ParsePath("op")).Pos(),
			}
		}
		pc.DecodeConstraintKind = kind
	}

	if exprVal := v.LookupPath(cue.ParsePath("expr")); exprVal.Exists() {
		if pc.Expr, err = parseExpr(exprVal); err != nil {
			return pc, err
		}
	} else if pc.Left != nil && pc.Right != nil && pc.DecodeConstraintKind != ir.RelNone {
		pc.Expr = &ir.Binary{Op: binaryOpFor(pc.DecodeConstraintKind), Left: pc.Left.Expr, Right: pc.Right.Expr}
	}

	if pc.UsedDeclarations, err = optionalStrings(v, "uses"); err != nil {
		return pc, err
	}
	if pc.UsedDeclarationsOnLeft, err = optionalStrings(v, "uses_left"); err != nil {
		return pc, err
	}
	if pc.ExprBinding, err = optionalString(v, "binding"); err != nil {
		return pc, err
	}
	if pc.IsStatic, err = optionalBool(v, "static"); err != nil {
		return pc, err
	}
	if pc.SkipSubjectAsParam, err = optionalBool(v, "skip_this"); err != nil {
		return pc, err
	}

	if uniVal := v.LookupPath(cue.ParsePath("unification")); uniVal.Exists() {
		name, err := optionalString(uniVal, "name")
		if err != nil {
			return pc, err
		}
		typeName, err := optionalString(uniVal, "type")
		if err != nil {
			return pc, err
		}
		pc.Unification = &ir.Unification{Name: name, Type: ir.ParseType(typeName)}
	}

	pc.Source, err = optionalString(v, "source")
	if err != nil {
		return pc, err
	}
	if pc.Source == "" && pc.Expr != nil {
		pc.Source = ir.Print(pc.Expr)
	}

	return pc, nil
}

// parseTyped decodes `{expr, type, field}`. When field is omitted and expr
// is a projection of the subject, the field name is inferred.
func parseTyped(v cue.Value, key string) (*ir.TypedExpression, error) {
	val := v.LookupPath(cue.ParsePath(key))
	if !val.Exists() {
		return nil, nil
	}

	te := &ir.TypedExpression{}
	if exprVal := val.LookupPath(cue.ParsePath("expr")); exprVal.Exists() {
		expr, err := parseExpr(exprVal)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		te.Expr = expr
	}

	typeName, err := optionalString(val, "type")
	if err != nil {
		return nil, err
	}
	te.Type = ir.ParseType(typeName)

	fieldVal := val.LookupPath(cue.ParsePath("field"))
	if fieldVal.Exists() {
		if te.FieldName, err = fieldVal.String(); err != nil {
			return nil, formatCUEError(err)
		}
	} else if fa, ok := te.Expr.(*ir.FieldAccess); ok && ir.IsThis(fa.Scope) {
		te.FieldName = fa.Field
	}
	return te, nil
}

// parseExpr decodes an expression tree. A bare string is a name.
func parseExpr(v cue.Value) (ir.Expr, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if v.IncompleteKind() == cue.StringKind {
		name, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.NewName(name), nil
	}

	has := func(key string) bool { return v.LookupPath(cue.ParsePath(key)).Exists() }
	switch {
	case has("name"):
		name, err := optionalString(v, "name")
		if err != nil {
			return nil, err
		}
		return ir.NewName(name), nil

	case has("field"):
		field, err := optionalString(v, "field")
		if err != nil {
			return nil, err
		}
		var scope ir.Expr = ir.This()
		if has("of") {
			if scope, err = parseExpr(v.LookupPath(cue.ParsePath("of"))); err != nil {
				return nil, err
			}
		}
		return ir.Field(scope, field), nil

	case has("call"):
		name, err := optionalString(v, "call")
		if err != nil {
			return nil, err
		}
		call := &ir.MethodCall{Name: name}
		if has("on") {
			if call.Scope, err = parseExpr(v.LookupPath(cue.ParsePath("on"))); err != nil {
				return nil, err
			}
		}
		if call.Args, err = parseExprList(v, "args"); err != nil {
			return nil, err
		}
		return call, nil

	case has("literal"):
		return parseLiteral(v)

	case has("binary"):
		op, err := optionalString(v, "binary")
		if err != nil {
			return nil, err
		}
		left, err := parseExpr(v.LookupPath(cue.ParsePath("left")))
		if err != nil {
			return nil, err
		}
		right, err := parseExpr(v.LookupPath(cue.ParsePath("right")))
		if err != nil {
			return nil, err
		}
		return &ir.Binary{Op: ir.BinaryOp(op), Left: left, Right: right}, nil

	case has("enclosed"):
		inner, err := parseExpr(v.LookupPath(cue.ParsePath("enclosed")))
		if err != nil {
			return nil, err
		}
		return &ir.Enclosed{Inner: inner}, nil

	case has("cast"):
		typeName, err := optionalString(v, "cast")
		if err != nil {
			return nil, err
		}
		inner, err := parseExpr(v.LookupPath(cue.ParsePath("expr")))
		if err != nil {
			return nil, err
		}
		return &ir.Cast{Type: ir.ParseType(typeName), Expr: inner}, nil

	case has("new"):
		typeName, err := optionalString(v, "new")
		if err != nil {
			return nil, err
		}
		args, err := parseExprList(v, "args")
		if err != nil {
			return nil, err
		}
		return &ir.New{Type: ir.ParseType(typeName), Args: args}, nil

	default:
		return nil, &CompileError{
			Code:    ErrCodeDecode,
			Field:   "expr",
			Message: "expression must have one of name, field, call, literal, binary, enclosed, cast, new",
			Pos:     v.Pos(),
		}
	}
}

// parseLiteral decodes `{literal, kind}`. Literal text should be a string
// so numeric text is kept exactly; integers are accepted as a shorthand.
// Floats are forbidden since their text would not survive decoding.
func parseLiteral(v cue.Value) (ir.Expr, error) {
	litVal := v.LookupPath(cue.ParsePath("literal"))
	kind, err := optionalString(v, "kind")
	if err != nil {
		return nil, err
	}

	var text string
	switch litVal.IncompleteKind() {
	case cue.NullKind:
		return ir.NullLit(), nil
	case cue.StringKind:
		if text, err = litVal.String(); err != nil {
			return nil, formatCUEError(err)
		}
		if kind == "" {
			kind = string(ir.LitString)
		}
	case cue.IntKind:
		n, err := litVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		text = strconv.FormatInt(n, 10)
		if kind == "" {
			kind = string(ir.LitInt)
		}
	case cue.BoolKind:
		b, err := litVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		text = strconv.FormatBool(b)
		if kind == "" {
			kind = string(ir.LitBool)
		}
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Code:    ErrCodeDecode,
			Field:   "literal",
			Message: "float literals are forbidden - write the literal text as a string with a kind",
			Pos:     litVal.Pos(),
		}
	default:
		return nil, &CompileError{
			Code:    ErrCodeDecode,
			Field:   "literal",
			Message: fmt.Sprintf("unsupported literal kind: %v", litVal.IncompleteKind()),
			Pos:     litVal.Pos(),
		}
	}

	if !ir.ValidLiteralKinds[ir.LiteralKind(kind)] {
		return nil, &CompileError{
			Code:    ErrCodeDecode,
			Field:   "kind",
			Message: fmt.Sprintf("unknown literal kind %q", kind),
			Pos:     v.Pos(),
		}
	}
	if ir.LiteralKind(kind) == ir.LitNull {
		return ir.NullLit(), nil
	}
	return ir.Lit(ir.LiteralKind(kind), text), nil
}

func parseExprList(v cue.Value, key string) ([]ir.Expr, error) {
	listVal := v.LookupPath(cue.ParsePath(key))
	if !listVal.Exists() {
		return nil, nil
	}
	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []ir.Expr
	for iter.Next() {
		e, err := parseExpr(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// binaryOpFor maps a decoded relational kind back to its operator.
func binaryOpFor(kind ir.RelationalOp) ir.BinaryOp {
	for _, op := range []ir.BinaryOp{ir.OpEq, ir.OpNe, ir.OpGt, ir.OpGe, ir.OpLt, ir.OpLe} {
		if ir.DecodeRelational(op) == kind {
			return op
		}
	}
	return ir.OpEq
}

func optionalString(v cue.Value, key string) (string, error) {
	val := v.LookupPath(cue.ParsePath(key))
	if !val.Exists() {
		return "", nil
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, key string) (bool, error) {
	val := v.LookupPath(cue.ParsePath(key))
	if !val.Exists() {
		return false, nil
	}
	b, err := val.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func optionalStrings(v cue.Value, key string) ([]string, error) {
	val := v.LookupPath(cue.ParsePath(key))
	if !val.Exists() {
		return nil, nil
	}
	iter, err := val.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

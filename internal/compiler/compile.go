package compiler

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/ruleidx/internal/ir"
)

// Options configures a Compiler.
type Options struct {
	// PatternDSL selects the pattern-style builder; otherwise flow-style.
	PatternDSL bool

	// LenientScopelessCalls turns a receiverless method call on the right
	// operand during beta analysis into "not indexable" instead of a
	// structural defect.
	LenientScopelessCalls bool

	// IDs supplies index ids. Defaults to a fresh IndexIDGenerator.
	IDs IDSource

	// Logger receives index decisions at debug level. Defaults to discard.
	Logger *slog.Logger
}

// Compiler turns parsed constraints into compiled constraints.
//
// Compile runs synchronously and keeps no state between calls apart from
// the id source and the declarations unification adds to the scope.
type Compiler struct {
	scope    DeclarationScope
	analyzer *Analyzer
	builder  ExpressionBuilder
	logger   *slog.Logger
}

// New creates a compiler resolving declarations in scope.
func New(scope DeclarationScope, opts Options) *Compiler {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.IDs == nil {
		opts.IDs = NewIndexIDGenerator()
	}
	return &Compiler{
		scope:    scope,
		analyzer: NewAnalyzer(scope, opts.IDs, opts),
		builder:  NewExpressionBuilder(opts.PatternDSL),
		logger:   opts.Logger,
	}
}

// Compile compiles one parsed constraint.
//
// Single constraints may produce a unification binding or a normalized
// expression with an optional index, plus an expression binding. Multiple
// constraints only produce the normalized expression. Any other variant is
// rejected with ErrCodeUnsupportedShape.
func (c *Compiler) Compile(pc ir.ParsedConstraint) (*ir.CompiledConstraint, error) {
	switch pc.Variant {
	case ir.VariantSingle:
		return c.compileSingle(&pc)
	case ir.VariantMultiple:
		return c.compileMultiple(&pc)
	default:
		return nil, &CompileError{
			Code:       ErrCodeUnsupportedShape,
			Field:      "variant",
			Message:    fmt.Sprintf("unknown constraint variant %d", int(pc.Variant)),
			Constraint: pc.Source,
		}
	}
}

func (c *Compiler) compileSingle(pc *ir.ParsedConstraint) (*ir.CompiledConstraint, error) {
	cc := &ir.CompiledConstraint{Source: pc.Source}

	if pc.Unification != nil {
		b := c.unificationBinding(pc)
		cc.Bindings = append(cc.Bindings, b)
		c.scope.AddDeclaration(ir.Declaration{Name: b.Variable, Type: b.Type})
		c.logger.Debug("unification", "constraint", pc.Source, "variable", b.Variable)
	} else if pc.IsValidExpression() {
		if err := c.compileExpression(pc, cc); err != nil {
			return nil, err
		}
	}

	if pc.ExprBinding != "" {
		b := c.exprBinding(pc)
		cc.Bindings = append(cc.Bindings, b)
		c.scope.AddDeclaration(ir.Declaration{Name: b.Variable, Type: b.Type})
	}
	return cc, nil
}

func (c *Compiler) compileMultiple(pc *ir.ParsedConstraint) (*ir.CompiledConstraint, error) {
	cc := &ir.CompiledConstraint{Source: pc.Source}
	if pc.IsValidExpression() {
		if err := c.compileExpression(pc, cc); err != nil {
			return nil, err
		}
	}
	return cc, nil
}

// compileExpression fills the normalized expression, the index decision
// and the emission of cc.
func (c *Compiler) compileExpression(pc *ir.ParsedConstraint, cc *ir.CompiledConstraint) error {
	idx, err := c.analyzer.Analyze(pc)
	if err != nil {
		return err
	}

	body := pc.Expr
	if enc, ok := body.(*ir.Enclosed); ok {
		body = enc.Inner
	}
	cc.ExprID = ir.ExprID(pc.Expr)
	cc.NormalizedExpr = wrapConstraint(pc, pc.UsedDeclarations, body)
	cc.Index = idx
	cc.Emission = c.builder.BuildConstraint(cc)

	if idx == nil {
		c.logger.Debug("not indexed", "constraint", pc.Source)
	}
	return nil
}

// unificationBinding binds the unification variable to the right operand.
func (c *Compiler) unificationBinding(pc *ir.ParsedConstraint) ir.BindingExpr {
	body := pc.Expr
	typ := pc.Unification.Type
	if pc.Right != nil && pc.Right.Expr != nil {
		body = pc.Right.Expr
		if !typ.IsSet() {
			typ = pc.Right.Type
		}
	}
	b := ir.BindingExpr{
		Variable: pc.Unification.Name,
		Type:     typ,
		Expr:     wrapConstraint(pc, pc.UsedDeclarations, body),
	}
	b.Emission = c.builder.BuildBinding(b)
	return b
}

// exprBinding binds the constraint's binding name to its left operand.
// An enclosed constraint binds its inner expression instead.
func (c *Compiler) exprBinding(pc *ir.ParsedConstraint) ir.BindingExpr {
	b := ir.BindingExpr{Variable: pc.ExprBinding}
	switch {
	case isEnclosed(pc.Expr):
		b.Expr = wrapConstraint(pc, pc.UsedDeclarations, pc.Expr.(*ir.Enclosed).Inner)
	case pc.Left != nil && pc.Left.Expr != nil:
		b.Type = pc.Left.Type
		b.Expr = wrapConstraint(pc, pc.UsedDeclarationsOnLeft, ir.LeftOperand(pc.Left.Expr))
	default:
		b.Expr = wrapConstraint(pc, pc.UsedDeclarationsOnLeft, pc.Expr)
	}
	b.Emission = c.builder.BuildBinding(b)
	return b
}

func isEnclosed(e ir.Expr) bool {
	_, ok := e.(*ir.Enclosed)
	return ok
}

// wrapConstraint returns body unchanged for static constraints and a lambda
// over the subject (unless skipped) and decls otherwise.
func wrapConstraint(pc *ir.ParsedConstraint, decls []string, body ir.Expr) ir.Expr {
	if pc.IsStatic {
		return body
	}
	params := make([]string, 0, len(decls)+1)
	if !pc.SkipSubjectAsParam {
		params = append(params, ir.ThisName)
	}
	params = append(params, decls...)
	return &ir.Lambda{Params: params, Body: body}
}

package compiler

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/ruleidx/internal/ir"
	"github.com/roach88/ruleidx/internal/narrow"
)

// Analyzer decides whether a single constraint can key an alpha or beta
// index, and builds the index descriptor when it can.
//
// Decision precedence:
//  1. No decode kind, no field name on the left, or a bare `_this` on the
//     left: not indexable.
//  2. No used declarations: alpha.
//  3. Exactly one used declaration and the right operand's outermost scope
//     is a name present in the scope: beta.
//  4. Otherwise not indexable.
type Analyzer struct {
	scope   DeclarationScope
	ids     IDSource
	lenient bool
	logger  *slog.Logger
}

// NewAnalyzer creates an analyzer resolving declarations in scope and
// drawing index ids from ids.
func NewAnalyzer(scope DeclarationScope, ids IDSource, opts Options) *Analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Analyzer{
		scope:   scope,
		ids:     ids,
		lenient: opts.LenientScopelessCalls,
		logger:  logger,
	}
}

// Analyze returns the index descriptor for pc, or nil when pc is not
// indexable. Errors are structural defects of the parsed constraint.
func (a *Analyzer) Analyze(pc *ir.ParsedConstraint) (*ir.IndexDescriptor, error) {
	if pc.DecodeConstraintKind == ir.RelNone {
		return nil, nil
	}
	left := pc.Left
	if left == nil {
		return nil, &CompileError{
			Code:       ErrCodeMissingLeftOperand,
			Field:      "left",
			Message:    fmt.Sprintf("decode kind %s requires a left operand", pc.DecodeConstraintKind),
			Constraint: pc.Source,
		}
	}
	if left.FieldName == "" || ir.IsThis(left.Expr) {
		return nil, nil
	}

	var kind ir.IndexKind
	switch len(pc.UsedDeclarations) {
	case 0:
		kind = ir.IndexAlpha
	case 1:
		ok, err := a.isBetaPivot(pc)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		kind = ir.IndexBeta
	default:
		return nil, nil
	}

	keyType, err := indexType(pc)
	if err != nil {
		return nil, err
	}

	idx := &ir.IndexDescriptor{
		Kind:          kind,
		KeyType:       keyType,
		Op:            pc.DecodeConstraintKind,
		FieldName:     left.FieldName,
		LeftExtractor: &ir.Lambda{Params: []string{ir.ThisName}, Body: left.Expr},
	}
	switch kind {
	case ir.IndexAlpha:
		if pc.Right != nil {
			idx.RightValue = a.narrow(*pc.Right, keyType)
		}
	case ir.IndexBeta:
		idx.Extractor = a.rightExtractor(pc, keyType)
	}
	idx.ID = a.ids.Next()

	a.logger.Debug("index decision",
		"constraint", pc.Source,
		"kind", string(kind),
		"key_type", keyType.String(),
		"index_id", idx.ID)
	return idx, nil
}

// isBetaPivot reports whether the right operand pivots directly on a
// declaration present in the scope.
func (a *Analyzer) isBetaPivot(pc *ir.ParsedConstraint) (bool, error) {
	if pc.Right == nil || pc.Right.Expr == nil {
		return false, nil
	}

	var scope ir.Expr
	switch e := pc.Right.Expr.(type) {
	case *ir.MethodCall:
		if e.Scope == nil {
			if a.lenient {
				a.logger.Warn("receiverless call on right operand, not indexing",
					"constraint", pc.Source,
					"method", e.Name)
				return false, nil
			}
			return false, &CompileError{
				Code:       ErrCodeMissingCallScope,
				Field:      "right",
				Message:    fmt.Sprintf("scope expression for %s is not present", e.Name),
				Constraint: pc.Source,
			}
		}
		scope = e.Scope
	case *ir.FieldAccess:
		scope = e.Scope
	default:
		scope = e
	}

	name, ok := scope.(*ir.Name)
	if !ok {
		return false, nil
	}
	_, found := a.scope.Declaration(name.Ident)
	return found, nil
}

// rightExtractor builds the one-parameter lambda over the used declaration
// that yields the comparison's non-subject operand, narrowed to keyType.
func (a *Analyzer) rightExtractor(pc *ir.ParsedConstraint, keyType ir.SemanticType) *ir.Lambda {
	side := *pc.Right
	if !ir.ContainsThis(pc.Left.Expr) {
		side = *pc.Left
	}
	return &ir.Lambda{
		Params: []string{pc.UsedDeclarations[0]},
		Body:   a.narrow(side, keyType),
	}
}

func (a *Analyzer) narrow(src ir.TypedExpression, target ir.SemanticType) ir.Expr {
	rule := narrow.RuleFor(src, target)
	if rule.Name != narrow.RuleUnchanged {
		a.logger.Debug("narrowed operand",
			"rule", rule.Name,
			"target", target.String())
	}
	return narrow.Narrow(src, target)
}

// indexType returns the raw form of the first present operand type.
func indexType(pc *ir.ParsedConstraint) (ir.SemanticType, error) {
	for _, side := range []*ir.TypedExpression{pc.Left, pc.Right} {
		if side != nil && side.Type.IsSet() {
			return side.Type.Raw(), nil
		}
	}
	return ir.SemanticType{}, &CompileError{
		Code:       ErrCodeNoIndexType,
		Field:      "type",
		Message:    "cannot find index type: neither operand is typed",
		Constraint: pc.Source,
	}
}

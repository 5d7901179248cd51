package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/ruleidx/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// RuleSpec errors (E101-E109)
	ErrRuleIDEmpty          = "E101" // rule id is required
	ErrInvalidDSL           = "E102" // dsl must be pattern or flow
	ErrDuplicateDeclaration = "E103" // declaration declared twice
	ErrInvalidDeclaration   = "E104" // empty or reserved declaration name
	ErrNoConstraints        = "E105" // at least one constraint required

	// Constraint errors (E110-E119)
	ErrInvalidVariant         = "E110" // variant is neither single nor multiple
	ErrMissingLeftOperand     = "E111" // decode kind without left operand
	ErrUndefinedDeclaration   = "E112" // used declaration not visible
	ErrSubjectInDeclarations  = "E113" // _this listed as a used declaration
	ErrInvalidExpression      = "E114" // missing or malformed expression
	ErrMultipleWithBinding    = "E115" // binding or unification on a multiple constraint
	ErrInvalidLiteralKind     = "E116" // literal of unknown kind
	ErrUnificationNameMissing = "E117" // unification without a variable name
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field      string `json:"field"`
	Message    string `json:"message"`
	Code       string `json:"code"`
	Constraint string `json:"constraint,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("[%s] %s: %s (constraint %q)", e.Code, e.Field, e.Message, e.Constraint)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates decoded rules against schema rules.
// Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *ir.RuleSpec:
		return validateRuleSpec(spec)
	case ir.RuleSpec:
		return validateRuleSpec(&spec)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

// validateRuleSpec validates a rule and each of its constraints.
// Declarations introduced by unification become visible to the constraints
// after the one introducing them.
func validateRuleSpec(spec *ir.RuleSpec) []ValidationError {
	var errs []ValidationError

	// E101: id is required
	if strings.TrimSpace(spec.ID) == "" {
		errs = append(errs, ValidationError{
			Field:   "id",
			Message: "rule id is required and must be non-empty",
			Code:    ErrRuleIDEmpty,
		})
	}

	// E102: dsl must be valid when set
	if spec.DSL != "" && !ir.ValidDSLs[spec.DSL] {
		errs = append(errs, ValidationError{
			Field:   "dsl",
			Message: fmt.Sprintf("invalid dsl %q, must be \"pattern\" or \"flow\"", spec.DSL),
			Code:    ErrInvalidDSL,
		})
	}

	// E103/E104: declarations
	visible := make(map[string]bool, len(spec.Declarations))
	for i, d := range spec.Declarations {
		field := fmt.Sprintf("declarations[%d]", i)
		switch {
		case strings.TrimSpace(d.Name) == "":
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "declaration name is required",
				Code:    ErrInvalidDeclaration,
			})
		case d.Name == ir.ThisName:
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%q is reserved for the pattern subject", ir.ThisName),
				Code:    ErrInvalidDeclaration,
			})
		case visible[d.Name]:
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate declaration %q", d.Name),
				Code:    ErrDuplicateDeclaration,
			})
		}
		visible[d.Name] = true
	}

	// E105: at least one constraint
	if len(spec.Constraints) == 0 {
		errs = append(errs, ValidationError{
			Field:   "constraints",
			Message: "at least one constraint is required",
			Code:    ErrNoConstraints,
		})
	}

	for i := range spec.Constraints {
		pc := &spec.Constraints[i]
		errs = append(errs, validateConstraint(fmt.Sprintf("constraints[%d]", i), pc, visible)...)
		if pc.Unification != nil && pc.Unification.Name != "" {
			visible[pc.Unification.Name] = true
		}
		if pc.ExprBinding != "" {
			visible[pc.ExprBinding] = true
		}
	}

	return errs
}

// validateConstraint checks the invariants of one parsed constraint.
func validateConstraint(path string, pc *ir.ParsedConstraint, visible map[string]bool) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Field:      path + field,
			Message:    fmt.Sprintf(format, args...),
			Code:       code,
			Constraint: pc.Source,
		})
	}

	// E110: variant
	if pc.Variant != ir.VariantSingle && pc.Variant != ir.VariantMultiple {
		add(".variant", ErrInvalidVariant, "variant must be single or multiple")
	}

	// E115: bindings are only meaningful on single constraints
	if pc.Variant == ir.VariantMultiple && (pc.Unification != nil || pc.ExprBinding != "") {
		add(".binding", ErrMultipleWithBinding, "multiple constraints cannot bind variables")
	}

	// E111: decode kind requires a left operand
	if pc.DecodeConstraintKind != ir.RelNone && (pc.Left == nil || pc.Left.Expr == nil) {
		add(".left", ErrMissingLeftOperand, "operator %s requires a left operand", pc.DecodeConstraintKind)
	}

	// E114: a compilable constraint needs an expression
	if pc.Unification == nil && pc.ExprBinding == "" && !pc.IsValidExpression() {
		add(".expr", ErrInvalidExpression, "constraint has no well-formed expression")
	}

	// E117: unification names its variable
	if pc.Unification != nil && strings.TrimSpace(pc.Unification.Name) == "" {
		add(".unification.name", ErrUnificationNameMissing, "unification variable name is required")
	}

	// E112/E113: used declarations
	for _, name := range append(append([]string{}, pc.UsedDeclarations...), pc.UsedDeclarationsOnLeft...) {
		if name == ir.ThisName {
			add(".uses", ErrSubjectInDeclarations, "%q is implicit and must not be listed", ir.ThisName)
			continue
		}
		if !visible[name] {
			add(".uses", ErrUndefinedDeclaration, "undefined declaration %q", name)
		}
	}

	// E116: literal kinds
	for _, e := range []ir.Expr{pc.Expr, operand(pc.Left), operand(pc.Right)} {
		ir.Walk(e, func(n ir.Expr) bool {
			if lit, ok := n.(*ir.Literal); ok && !ir.ValidLiteralKinds[lit.Kind] {
				add(".expr", ErrInvalidLiteralKind, "unknown literal kind %q", lit.Kind)
			}
			return true
		})
	}

	return errs
}

func operand(te *ir.TypedExpression) ir.Expr {
	if te == nil {
		return nil
	}
	return te.Expr
}

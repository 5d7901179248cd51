package queryir

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/ruleidx/internal/ir"
)

// CatalogColumns lists the columns of each catalog table. It mirrors the
// store schema and is what Validate checks field references against.
var CatalogColumns = map[string][]string{
	"runs": {"id", "dsl", "rule_count", "constraint_count", "indexed_count", "max_index_id"},
	"constraints": {
		"id", "run_id", "rule_id", "ordinal", "source", "expr_id", "fingerprint",
		"normalized", "bindings", "emission", "index_id", "index_kind",
		"key_type", "op", "field_name", "left_extractor", "extractor", "right_value",
	},
}

// ValidationResult lists the problems found in a catalog query.
type ValidationResult struct {
	// Valid is true when Warnings is empty.
	Valid bool

	Warnings []string
}

// Validate checks a query against the catalog before it is compiled:
//  1. tables and columns exist in CatalogColumns
//  2. no comparison against NULL
//  3. bindings are explicit (no SELECT *)
//
// Problems are reported as warnings; querysql still compiles the query.
// Validate is a pure function.
func Validate(query Query) ValidationResult {
	v := &validator{warnings: []string{}}
	v.validateQuery(query)

	return ValidationResult{
		Valid:    len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

type validator struct {
	warnings []string
	tables   []string // tables in scope, for column checks
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	if q == nil {
		v.addWarning("nil query")
		return
	}

	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	case Join:
		v.validateJoin(query)
	case *Join:
		v.validateJoin(*query)
	default:
		v.addWarning("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	columns, ok := CatalogColumns[sel.From]
	if !ok {
		v.addWarning("unknown catalog table %q", sel.From)
	}
	v.tables = append(v.tables, sel.From)

	if len(sel.Bindings) == 0 {
		v.addWarning("empty bindings (SELECT *) on %q - list the columns to read", sel.From)
	}
	if ok {
		for col := range sel.Bindings {
			if !slices.Contains(columns, col) {
				v.addWarning("unknown column %q in table %q", col, sel.From)
			}
		}
	}

	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validateJoin(join Join) {
	v.validateQuery(join.Left)
	v.validateQuery(join.Right)

	if join.On == nil {
		v.addWarning("join without ON condition is a cross join")
		return
	}
	v.validatePredicate(join.On)
}

func (v *validator) validatePredicate(p Predicate) {
	if p == nil {
		return
	}

	switch pred := p.(type) {
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case BoundEquals:
		v.validateField(pred.Field)
	case *BoundEquals:
		v.validateField(pred.Field)
	case And:
		v.validateAnd(pred)
	case *And:
		v.validateAnd(*pred)
	default:
		v.addWarning("unknown predicate type: %T", p)
	}
}

func (v *validator) validateEquals(eq Equals) {
	if _, isNull := eq.Value.(ir.Null); isNull || eq.Value == nil {
		v.addWarning("field %q compared to NULL - catalog columns are never NULL", eq.Field)
	}
	v.validateField(eq.Field)
}

// validateField checks that field, optionally qualified as table.column,
// names a column of a table in scope.
func (v *validator) validateField(field string) {
	tables := v.tables
	column := field
	if table, col, ok := strings.Cut(field, "."); ok {
		tables, column = []string{table}, col
	}
	for _, t := range tables {
		if slices.Contains(CatalogColumns[t], column) {
			return
		}
	}
	v.addWarning("unknown column %q", field)
}

func (v *validator) validateAnd(and And) {
	for _, sub := range and.Predicates {
		v.validatePredicate(sub)
	}
}

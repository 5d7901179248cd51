package harness

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/ruleidx/internal/ir"
	"github.com/roach88/ruleidx/internal/queryir"
	"github.com/roach88/ruleidx/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string            // Assertion type for categorization
	Expected string            // Human-readable expected outcome
	Actual   string            // Human-readable actual outcome
	Events   []ConstraintEvent // Compiled constraints for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Events) > 0 {
		fmt.Fprintf(&buf, "\nCompiled constraints:\n")
		for _, ev := range e.Events {
			if ev.Error != "" {
				fmt.Fprintf(&buf, "  %s: %s\n", ev.Rule, ev.Error)
				continue
			}
			fmt.Fprintf(&buf, "  %s/%d [%s] %s\n", ev.Rule, ev.Ordinal, ev.Kind, ev.Source)
		}
	}

	return buf.String()
}

// assertConstraintContains checks that some compiled constraint, optionally
// of one rule, matches the assertion's fields (subset match).
func assertConstraintContains(events []ConstraintEvent, assertion Assertion) error {
	for _, ev := range events {
		if assertion.Rule != "" && ev.Rule != assertion.Rule {
			continue
		}
		if ev.Error == "" && matchFields(ev.fields(true), assertion.Match) {
			return nil
		}
	}

	where := "any rule"
	if assertion.Rule != "" {
		where = "rule " + assertion.Rule
	}
	return &AssertionError{
		Type:     AssertConstraintContains,
		Expected: fmt.Sprintf("constraint in %s matching %s", where, formatFields(assertion.Match)),
		Actual:   "no matching constraint",
		Events:   events,
	}
}

// assertIndexOrder checks that the named constraints are indexed and
// received strictly ascending index ids, in the listed order.
func assertIndexOrder(events []ConstraintEvent, assertion Assertion) error {
	ids := make(map[string]int64)
	for _, ev := range events {
		if ev.Error == "" {
			ids[fmt.Sprintf("%s/%d", ev.Rule, ev.Ordinal)] = ev.IndexID
		}
	}

	for _, key := range assertion.Constraints {
		if ids[key] == 0 {
			return &AssertionError{
				Type:     AssertIndexOrder,
				Expected: fmt.Sprintf("all constraints indexed: %v", assertion.Constraints),
				Actual:   fmt.Sprintf("%s is missing or not indexed", key),
				Events:   events,
			}
		}
	}

	for i := 1; i < len(assertion.Constraints); i++ {
		prev := assertion.Constraints[i-1]
		curr := assertion.Constraints[i]
		if ids[prev] >= ids[curr] {
			return &AssertionError{
				Type:     AssertIndexOrder,
				Expected: fmt.Sprintf("index ids ascending: %v", assertion.Constraints),
				Actual: fmt.Sprintf("%s (id %d) should be before %s (id %d)",
					prev, ids[prev], curr, ids[curr]),
				Events: events,
			}
		}
	}

	return nil
}

// assertIndexCount checks that exactly Count compiled constraints have the
// given index kind.
func assertIndexCount(events []ConstraintEvent, assertion Assertion) error {
	count := 0
	for _, ev := range events {
		if ev.Error != "" || (assertion.Rule != "" && ev.Rule != assertion.Rule) {
			continue
		}
		if ev.Kind == assertion.Kind {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertIndexCount,
			Expected: fmt.Sprintf("%d %s constraint(s)", assertion.Count, assertion.Kind),
			Actual:   fmt.Sprintf("%d", count),
			Events:   events,
		}
	}
	return nil
}

// assertCatalogRow queries the catalog for exactly one row matching Where
// and validates expected values using subset semantics.
//
// The query is built as a queryir.Select and checked with queryir.Validate,
// so table and column names never reach SQL unless they are catalog columns.
func assertCatalogRow(ctx context.Context, st *store.Store, assertion Assertion) error {
	q, err := buildCatalogQuery(assertion)
	if err != nil {
		return err
	}
	if vr := queryir.Validate(q); !vr.Valid {
		return fmt.Errorf("catalog_row assertion on %s: %s", assertion.Table, strings.Join(vr.Warnings, "; "))
	}

	rows, err := st.QueryCatalog(ctx, q)
	if err != nil {
		return &AssertionError{
			Type:     AssertCatalogRow,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}

	whereDesc := formatFields(assertion.Where)
	switch len(rows) {
	case 0:
		return &AssertionError{
			Type:     AssertCatalogRow,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, whereDesc),
			Actual:   "row not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertCatalogRow,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, whereDesc),
			Actual:   fmt.Sprintf("%d rows matched (assertion is ambiguous)", len(rows)),
		}
	}

	if diff := mismatch(rows[0], assertion.Expect); diff != "" {
		return &AssertionError{
			Type:     AssertCatalogRow,
			Expected: fmt.Sprintf("row in %s where %s to match %s", assertion.Table, whereDesc, formatFields(assertion.Expect)),
			Actual:   diff,
		}
	}
	return nil
}

// buildCatalogQuery turns a catalog_row assertion into a Select reading
// every column of the table. Where keys are sorted for determinism.
func buildCatalogQuery(assertion Assertion) (queryir.Select, error) {
	bindings := make(map[string]string)
	for _, col := range queryir.CatalogColumns[assertion.Table] {
		bindings[col] = col
	}

	keys := sortedKeys(assertion.Where)
	preds := make([]queryir.Predicate, 0, len(keys))
	for _, key := range keys {
		val, err := toCatalogValue(assertion.Where[key])
		if err != nil {
			return queryir.Select{}, fmt.Errorf("catalog_row where %q: %w", key, err)
		}
		preds = append(preds, queryir.Equals{Field: key, Value: val})
	}

	sel := queryir.Select{From: assertion.Table, Bindings: bindings}
	switch len(preds) {
	case 0:
	case 1:
		sel.Filter = preds[0]
	default:
		sel.Filter = queryir.And{Predicates: preds}
	}
	return sel, nil
}

// toCatalogValue converts a YAML scalar to a catalog value.
func toCatalogValue(v interface{}) (ir.Value, error) {
	switch val := v.(type) {
	case string:
		return ir.String(val), nil
	case int:
		return ir.Int(int64(val)), nil
	case int64:
		return ir.Int(val), nil
	case bool:
		return ir.Bool(val), nil
	case nil:
		return nil, fmt.Errorf("null values are forbidden - catalog columns are never NULL")
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

// mismatch returns a description of the first expected field that actual
// does not match, or "" when every expected field matches.
func mismatch(actual map[string]any, expected map[string]interface{}) string {
	for _, key := range sortedKeys(expected) {
		actualValue, exists := actual[key]
		if !exists {
			return fmt.Sprintf("field %q not present", key)
		}
		if !fieldValuesEqual(expected[key], actualValue) {
			return fmt.Sprintf("field %q = %v, expected %v", key, actualValue, expected[key])
		}
	}
	return ""
}

// matchFields checks if actual contains all expected fields (subset match).
// Extra keys in actual are ignored.
func matchFields(actual map[string]any, expected map[string]interface{}) bool {
	return mismatch(actual, expected) == ""
}

// fieldValuesEqual compares a YAML-decoded expected value with an actual
// value. Integers compare across int widths; SQLite booleans are 0/1.
func fieldValuesEqual(expected, actual interface{}) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	switch exp := expected.(type) {
	case string:
		actualStr, ok := actual.(string)
		return ok && exp == actualStr
	case int:
		return intValue(actual) == int64(exp) && isInt(actual)
	case int64:
		return intValue(actual) == exp && isInt(actual)
	case bool:
		if actualBool, ok := actual.(bool); ok {
			return exp == actualBool
		}
		if actualInt, ok := actual.(int64); ok {
			return exp == (actualInt != 0)
		}
		return false
	case []interface{}:
		actualList, ok := actual.([]any)
		if !ok || len(actualList) != len(exp) {
			return false
		}
		for i := range exp {
			if !fieldValuesEqual(exp[i], actualList[i]) {
				return false
			}
		}
		return true
	}

	// Fallback to DeepEqual for complex types
	return reflect.DeepEqual(expected, actual)
}

func isInt(v interface{}) bool {
	switch v.(type) {
	case int, int64:
		return true
	}
	return false
}

func intValue(v interface{}) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	}
	return 0
}

// formatFields creates a human-readable description of a field map.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return "(no conditions)"
	}
	keys := sortedKeys(fields)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " AND ")
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides catalog access for catalog_row assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertConstraintContains:
			err = assertConstraintContains(result.Events, assertion)
		case AssertIndexOrder:
			err = assertIndexOrder(result.Events, assertion)
		case AssertIndexCount:
			err = assertIndexCount(result.Events, assertion)
		case AssertCatalogRow:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: catalog_row requires database context", i)
			} else {
				err = assertCatalogRow(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

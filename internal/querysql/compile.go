// Package querysql compiles queryir queries to parameterized SQLite SQL
// over the index catalog.
package querysql

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/ruleidx/internal/ir"
	"github.com/roach88/ruleidx/internal/queryir"
)

// identPattern accepts column and table names, optionally qualified.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// orderKeys gives each catalog table a deterministic ORDER BY.
// Constraints sort by ordinal numerically, not by their text id.
var orderKeys = map[string][]string{
	"constraints": {"run_id COLLATE BINARY ASC", "rule_id COLLATE BINARY ASC", "ordinal ASC"},
	"runs":        {"id COLLATE BINARY ASC"},
}

// SQLCompiler compiles queryir to parameterized SQL for SQLite.
//
// Every query carries an ORDER BY, and literal values are always passed
// as parameters, never interpolated. Identifiers are checked against
// identPattern before they are written into the statement.
type SQLCompiler struct {
	// BoundValues supplies the values of BoundEquals predicates. A
	// BoundEquals whose variable is not bound compiles to a column
	// comparison instead.
	BoundValues map[string]any
}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{
		BoundValues: make(map[string]any),
	}
}

// Compile converts a query to SQL and its parameters.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	case queryir.Join:
		return c.compileJoin(query)
	case *queryir.Join:
		return c.compileJoin(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	if err := checkIdent(q.From); err != nil {
		return "", nil, err
	}
	selectClause, err := compileBindings(q.Bindings, "")
	if err != nil {
		return "", nil, err
	}

	var whereClause string
	var params []any
	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		whereClause = " WHERE " + filterSQL
		params = filterParams
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		selectClause,
		q.From,
		whereClause,
		stableOrderKey(q.From, ""))

	return sql, params, nil
}

// compileBindings converts bindings to a column list, sorted by column.
// Example: {"index_kind": "kind"} → "index_kind AS kind".
// A non-empty qualifier prefixes each column with "<qualifier>.".
func compileBindings(bindings map[string]string, qualifier string) (string, error) {
	if len(bindings) == 0 {
		if qualifier != "" {
			return qualifier + ".*", nil
		}
		return "*", nil
	}

	columns := make([]string, 0, len(bindings))
	for k := range bindings {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	parts := make([]string, 0, len(columns))
	for _, column := range columns {
		alias := bindings[column]
		if err := checkIdent(column); err != nil {
			return "", err
		}
		if err := checkIdent(alias); err != nil {
			return "", err
		}
		ref := column
		if qualifier != "" {
			ref = qualifier + "." + column
		}
		if column == alias && qualifier == "" {
			parts = append(parts, ref)
		} else {
			parts = append(parts, fmt.Sprintf("%s AS %s", ref, alias))
		}
	}
	return strings.Join(parts, ", "), nil
}

// stableOrderKey returns the ORDER BY terms for a table. Unknown tables
// fall back to their id column.
func stableOrderKey(table, qualifier string) string {
	keys, ok := orderKeys[table]
	if !ok {
		keys = []string{"id COLLATE BINARY ASC"}
	}
	if qualifier == "" {
		return strings.Join(keys, ", ")
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = qualifier + "." + k
	}
	return strings.Join(out, ", ")
}

func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	if p == nil {
		return "1 = 1", nil, nil
	}

	switch pred := p.(type) {
	case queryir.Equals:
		return c.compileEquals(pred)
	case *queryir.Equals:
		return c.compileEquals(*pred)
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	case queryir.BoundEquals:
		return c.compileBoundEquals(pred)
	case *queryir.BoundEquals:
		return c.compileBoundEquals(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileEquals compiles "field = ?".
func (c *SQLCompiler) compileEquals(eq queryir.Equals) (string, []any, error) {
	if err := checkIdent(eq.Field); err != nil {
		return "", nil, err
	}
	param, err := valueToParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}
	return eq.Field + " = ?", []any{param}, nil
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	var sqlParts []string
	var allParams []any
	for _, pred := range and.Predicates {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}
	return strings.Join(sqlParts, " AND "), allParams, nil
}

// compileBoundEquals compiles "field = ?" with the bound value, or
// "field = boundvar" when BoundVar names no bound value.
func (c *SQLCompiler) compileBoundEquals(beq queryir.BoundEquals) (string, []any, error) {
	if err := checkIdent(beq.Field); err != nil {
		return "", nil, err
	}
	if val, ok := c.BoundValues[beq.BoundVar]; ok {
		return beq.Field + " = ?", []any{val}, nil
	}
	if err := checkIdent(beq.BoundVar); err != nil {
		return "", nil, fmt.Errorf("unbound variable %q: %w", beq.BoundVar, err)
	}
	return beq.Field + " = " + beq.BoundVar, nil, nil
}

// compileJoin compiles an inner join of two Selects. Columns are qualified
// with their table, and both filters move into the WHERE clause.
func (c *SQLCompiler) compileJoin(j queryir.Join) (string, []any, error) {
	left := getSelect(j.Left)
	if left == nil {
		return "", nil, fmt.Errorf("join left must be a Select")
	}
	right := getSelect(j.Right)
	if right == nil {
		return "", nil, fmt.Errorf("join right must be a Select")
	}
	for _, table := range []string{left.From, right.From} {
		if err := checkIdent(table); err != nil {
			return "", nil, err
		}
	}

	leftCols, err := compileBindings(left.Bindings, left.From)
	if err != nil {
		return "", nil, err
	}
	rightCols, err := compileBindings(right.Bindings, right.From)
	if err != nil {
		return "", nil, err
	}

	var params []any
	onSQL := "1 = 1"
	if j.On != nil {
		sql, onParams, err := c.compilePredicate(j.On)
		if err != nil {
			return "", nil, fmt.Errorf("compile join ON: %w", err)
		}
		onSQL = sql
		params = append(params, onParams...)
	}

	var where []string
	for _, sel := range []*queryir.Select{left, right} {
		if sel.Filter == nil {
			continue
		}
		sql, filterParams, err := c.compilePredicate(qualify(sel.Filter, sel.From))
		if err != nil {
			return "", nil, fmt.Errorf("compile %s filter: %w", sel.From, err)
		}
		where = append(where, sql)
		params = append(params, filterParams...)
	}

	sql := fmt.Sprintf("SELECT %s, %s FROM %s INNER JOIN %s ON %s",
		leftCols, rightCols, left.From, right.From, onSQL)
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY " + stableOrderKey(left.From, left.From)

	return sql, params, nil
}

// qualify prefixes unqualified fields of p with table.
func qualify(p queryir.Predicate, table string) queryir.Predicate {
	field := func(f string) string {
		if strings.Contains(f, ".") {
			return f
		}
		return table + "." + f
	}
	switch pred := p.(type) {
	case queryir.Equals:
		return queryir.Equals{Field: field(pred.Field), Value: pred.Value}
	case *queryir.Equals:
		return queryir.Equals{Field: field(pred.Field), Value: pred.Value}
	case queryir.BoundEquals:
		return queryir.BoundEquals{Field: field(pred.Field), BoundVar: pred.BoundVar}
	case *queryir.BoundEquals:
		return queryir.BoundEquals{Field: field(pred.Field), BoundVar: pred.BoundVar}
	case queryir.And:
		return qualifyAnd(pred, table)
	case *queryir.And:
		return qualifyAnd(*pred, table)
	default:
		return p
	}
}

func qualifyAnd(and queryir.And, table string) queryir.And {
	out := queryir.And{Predicates: make([]queryir.Predicate, len(and.Predicates))}
	for i, sub := range and.Predicates {
		out.Predicates[i] = qualify(sub, table)
	}
	return out
}

func getSelect(q queryir.Query) *queryir.Select {
	switch query := q.(type) {
	case queryir.Select:
		return &query
	case *queryir.Select:
		return query
	default:
		return nil
	}
}

func checkIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

// valueToParam converts an ir.Value to a database/sql parameter.
func valueToParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Bool:
		return bool(val), nil
	case ir.Null:
		return nil, nil
	case nil:
		return nil, fmt.Errorf("missing value")
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}

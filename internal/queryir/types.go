package queryir

import "github.com/roach88/ruleidx/internal/ir"

// Query is an abstract catalog query.
//
// Sealed: only Select and Join implement it.
type Query interface {
	queryNode()
}

// Predicate is a filter condition.
//
// Sealed: only Equals, BoundEquals and And implement it.
type Predicate interface {
	predicateNode()
}

// Select reads rows of one catalog table.
//
//	SELECT <bindings> FROM <from> WHERE <filter>
//
// Example, the beta indexes of one rule:
//
//	Select{
//	  From: "constraints",
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: "rule_id", Value: ir.String("adults")},
//	    Equals{Field: "index_kind", Value: ir.String("beta")},
//	  }},
//	  Bindings: map[string]string{"id": "id", "extractor": "extractor"},
//	}
type Select struct {
	From     string            // catalog table ("runs", "constraints")
	Filter   Predicate         // nil = no filter
	Bindings map[string]string // column → result name
}

func (Select) queryNode() {}

// Join is an inner join of two queries. Only Select operands are compiled.
//
// Example, constraints recorded by pattern-style runs:
//
//	Join{
//	  Left:  Select{From: "constraints", Bindings: ...},
//	  Right: Select{From: "runs", Filter: Equals{Field: "dsl", Value: ir.String("pattern")}},
//	  On:    BoundEquals{Field: "constraints.run_id", BoundVar: "runs.id"},
//	}
type Join struct {
	Left  Query
	Right Query
	On    Predicate // required; a nil On compiles to a cross join
}

func (Join) queryNode() {}

// Equals compares a column to a literal.
//
//	<field> = <value>
type Equals struct {
	Field string
	Value ir.Value
}

func (Equals) predicateNode() {}

// BoundEquals compares a column to a value supplied at compile time through
// querysql.SQLCompiler.BoundValues, or, when no value is bound, to another
// column (join conditions).
//
//	<field> = ?          (bound)
//	<field> = <boundvar> (column reference)
type BoundEquals struct {
	Field    string
	BoundVar string
}

func (BoundEquals) predicateNode() {}

// And is a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

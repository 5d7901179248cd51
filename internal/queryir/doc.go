// Package queryir is the query representation used to read the index
// catalog.
//
// Catalog readers (the catalog command, the test harness) describe what
// they want as a small relational tree and never write SQL themselves:
//
//	[catalog filter flags] → [queryir] → [querysql] → SQLite
//
// Supported fragment:
//   - Select(from, filter, bindings): table access with filtering
//   - Join(left, right, on): inner joins only
//   - Predicates: Equals, BoundEquals, And
//   - Explicit column bindings (no SELECT *)
//
// Excluded:
//   - NULL comparisons (a constraint without an index stores an empty
//     index_kind, never NULL)
//   - Outer joins, aggregations, subqueries, OR
//
// Query and Predicate are sealed interfaces using the marker method
// pattern, so backends can switch exhaustively:
//
//	switch q := query.(type) {
//	case Select:
//	case Join:
//	}
//
// All literal values are ir.Value (no floats). Index ids and constraint
// ordinals are ir.Int; everything else in the catalog is text.
package queryir

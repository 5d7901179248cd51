// Package ir provides the data carriers shared by the constraint compiler.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Expr is a sealed interface: only node types in this package implement it,
//     so walkers can switch exhaustively
//   - Every carrier is built per constraint and never mutated after construction
//   - Numeric literals keep their exact source text; no float parsing happens here
//   - Canonical JSON (MarshalCanonical) is the only encoding used for fingerprints
package ir

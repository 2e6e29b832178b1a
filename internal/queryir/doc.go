// Package queryir provides the executor-agnostic query fragments that a
// compiled graph plan and the request assist helpers hand to a backend.
//
// ARCHITECTURE:
//
//	[graph expression] -> [plan.Plan] --+
//	                                    +-> queryir fragments -> [SQL backend]
//	[request fields]   -> [assist]   ---+                     -> [other backends]
//
// The fragments describe WHAT to filter, order and window, never HOW. A
// backend renders them; the reference renderer lives in internal/querysql.
//
// SEALED INTERFACES:
//
// Predicate is a sealed interface using the marker method pattern. Only
// types in this package implement it, which enables exhaustive type switches
// in backends:
//
//	switch p := pred.(type) {
//	case Compare:
//	case In:
//	case Has:
//	case And:
//	}
//
// COLUMN SAFETY:
//
// Predicates carry column names as plain strings. Values are always
// ir.IRValue and must be bound as parameters by the backend. Validate checks
// every column a predicate touches against a caller-supplied allow-list; that
// allow-list is the only injection guard for identifiers.
package queryir

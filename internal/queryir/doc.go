// Package queryir defines the narrow statement and predicate shapes the
// engine consumes.
//
// The statement reader (internal/statement) produces these types; the
// translator, fallback engine, aggregation engine, derived-table executor and
// DML executor consume them. No later stage depends on a parser's full AST.
//
// ARCHITECTURE:
//
//	[statement text] → [statement.Classify] → [queryir.Statement]
//	                                        → [querygql] → native GQL
//	                                        → [fallback] → local rows
//
// SEALED INTERFACES:
//
// Statement and Predicate are sealed interfaces using the marker method
// pattern. Only types in this package can implement them.
//
// This enables:
//   - Exhaustive type switches in the engine
//   - Classification happens once, at read time
//   - Compile-time safety against external extensions
//
// Example:
//
//	switch st := stmt.(type) {
//	case *queryir.Select:
//	    // translate, execute, maybe fall back
//	case *queryir.Aggregate:
//	    // remote aggregation or local computation
//	case *queryir.Derived:
//	    // inner pipeline, then the tabular engine
//	case *queryir.Insert, *queryir.Update, *queryir.Delete:
//	    // single-entity writes
//	}
//
// FAIL-CLOSED PREDICATES:
//
// A WHERE condition that cannot be parsed becomes an Invalid node rather than
// an error. Invalid evaluates to false, so an unreadable condition excludes
// rows instead of admitting them or aborting the statement.
package queryir

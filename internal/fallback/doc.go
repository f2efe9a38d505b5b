// Package fallback evaluates a query locally over a full scan of its kind.
//
// It is used when the remote store rejects the translated query (a missing
// composite index, an unsupported operator) or when translation already
// knows the native text cannot be executed. The predicate is the one parsed
// from the caller's original WHERE text, not the rewritten native filter.
//
// Comparison semantics follow the store: integers and doubles are distinct
// types and never equal, comparisons against null are false except for IS
// NULL, and an integer or string compared with a key column matches the
// key's own id or name. Conditions that cannot be evaluated exclude the row.
package fallback

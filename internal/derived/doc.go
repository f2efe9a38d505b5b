// Package derived executes the outer part of a derived-table query.
//
// The inner query's materialized rows are loaded into a temporary table of
// a private in-memory SQLite database, and the outer statement (grouping,
// aggregates, ordering, limits, simple computed columns) runs there.
//
// Values SQLite has no type for (keys, geo points, arrays, entities,
// bytes, timestamps) are stored as their canonical text and restored on
// the way out, so they group and order by that text. A string that happens
// to equal another value's canonical text is restored as that value.
package derived

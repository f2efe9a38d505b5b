// Package querysql compiles materialized rows into parameterized SQLite
// statements and restores scanned values, for the derived-table engine.
package querysql

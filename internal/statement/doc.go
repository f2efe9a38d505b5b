// Package statement reads statement text: a lexer that keeps source
// positions, parameter binding, literal parsing, the SELECT and predicate
// readers, and DML via sqlparser.
//
// Errors are *Error values carrying the byte offset of the offending token,
// or -1 when no single token is at fault.
package statement

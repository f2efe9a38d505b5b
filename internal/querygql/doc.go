// Package querygql translates parsed SELECT statements into native GQL.
//
// Translation is a fixed sequence of rewrites over the statement's tokens and
// structure. Each rewrite is idempotent, so translating the output again
// yields the same text. Statements the store may not accept natively (OR,
// binary literals) are flagged for local evaluation rather than rejected.
package querygql

// Package engine executes relational statements against a Datastore-style
// document store.
//
// A statement passes through these stages:
//
//  1. parameters are bound and the text is classified once into a
//     queryir.Statement variant
//  2. queries are translated to native GQL and run remotely
//  3. a rejected or untranslatable query is run once more as a full-kind
//     scan and evaluated locally, with a warning on the result
//  4. aggregations and derived tables are computed over the resulting rows
//  5. writes become single-entity lookups and commits
//
// Index-miss and unsupported-operator rejections are never errors. Every
// failure that is returned is an *Error carrying a category code.
//
// Cursor wraps the engine in a DB-API style, forward-only row iterator.
package engine

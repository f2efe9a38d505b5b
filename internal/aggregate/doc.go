// Package aggregate computes COUNT, COUNT_UP_TO, SUM and AVG over a
// materialized row set, and decodes remote aggregation results into the
// same single-row shape.
package aggregate

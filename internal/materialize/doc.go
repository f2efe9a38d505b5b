// Package materialize turns raw query results into typed rows with column
// descriptors.
package materialize

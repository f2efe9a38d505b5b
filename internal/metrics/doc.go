// Package metrics defines the Prometheus collectors the engine and remote
// client report to.
package metrics

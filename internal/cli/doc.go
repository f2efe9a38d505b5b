// Package cli implements the gqlbridge command line: one-shot translation,
// query and write commands, an interactive shell and the scenario runner.
package cli

// Package harness runs statement-level conformance scenarios.
//
// A scenario is a YAML file naming fixture entities, a sequence of SQL or
// GQL statements with expected outcomes, and assertions over remote traffic
// and final store contents:
//
//	name: or-fallback
//	store:
//	  reject_or: true
//	fixtures:
//	  - kind: users
//	    id: 1
//	    properties: {name: A, age: 16}
//	steps:
//	  - sql: SELECT name FROM users WHERE age < 15 OR name = 'A'
//	    expect:
//	      rows: [[A]]
//	      warnings: true
//	assertions:
//	  - type: remote_calls
//	    method: runQuery
//	    count: 1
//
// Each scenario runs against its own in-memory store served over HTTP, so
// the whole engine stack including the remote client is exercised. The
// per-step trace can be compared against golden files.
package harness

// Package config loads gqlbridge configuration from an optional YAML or JSON
// file and GQLBRIDGE_ environment variables, and validates it against an
// embedded CUE schema.
//
// Example file:
//
//	store:
//	  base_url: http://localhost:8081
//	  project_id: my-project
//	  timeout: 10s
//	log:
//	  level: DEBUG
//	  format: json
//	workers: 8
package config

package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a statement-level conformance test: a fixture set loaded into
// an in-memory store, a sequence of statements with expectations, and
// assertions over the store afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Store configures which queries the in-memory store rejects.
	Store StoreOptions `yaml:"store,omitempty"`

	// Fixtures are the entities present before the first step.
	Fixtures []Fixture `yaml:"fixtures,omitempty"`

	// Steps run in order on a single cursor.
	Steps []Step `yaml:"steps"`

	// Assertions validate remote traffic and final store contents.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// StoreOptions mirror the rejections of the real service.
type StoreOptions struct {
	RejectOr       bool `yaml:"reject_or,omitempty"`
	RequireIndexes bool `yaml:"require_indexes,omitempty"`
}

// Fixture is one stored entity. Exactly one of ID and Name is set.
type Fixture struct {
	Kind       string         `yaml:"kind"`
	ID         int64          `yaml:"id,omitempty"`
	Name       string         `yaml:"name,omitempty"`
	Properties map[string]any `yaml:"properties"`
}

// Step executes one statement. Exactly one of SQL and GQL is set; GQL
// bypasses translation.
type Step struct {
	SQL    string         `yaml:"sql,omitempty"`
	GQL    string         `yaml:"gql,omitempty"`
	Params map[string]any `yaml:"params,omitempty"`
	Expect *Expect        `yaml:"expect,omitempty"`
}

// Text returns the statement the step runs.
func (s Step) Text() string {
	if s.GQL != "" {
		return s.GQL
	}
	return s.SQL
}

// Expect describes the expected outcome of a step. Unset fields are not
// checked.
type Expect struct {
	Columns []string `yaml:"columns,omitempty"`

	// Rows are compared in order. A cell matches when it equals the value
	// or, for a string, the value's GQL literal form.
	Rows [][]any `yaml:"rows,omitempty"`

	RowCount  *int64 `yaml:"row_count,omitempty"`
	LastRowID *int64 `yaml:"last_row_id,omitempty"`

	// Warnings true requires at least one warning, false requires none.
	Warnings *bool `yaml:"warnings,omitempty"`

	// Error is the expected error code, e.g. PROGRAMMING_ERROR.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates state after all steps ran.
type Assertion struct {
	// Type is remote_calls or entity.
	Type string `yaml:"type"`

	// Method and Count are used by remote_calls: the number of requests
	// to Method across the whole scenario.
	Method string `yaml:"method,omitempty"`
	Count  *int   `yaml:"count,omitempty"`

	// Kind, ID and Name identify the entity checked by entity.
	Kind string `yaml:"kind,omitempty"`
	ID   int64  `yaml:"id,omitempty"`
	Name string `yaml:"name,omitempty"`

	// Absent requires that the entity does not exist.
	Absent bool `yaml:"absent,omitempty"`

	// Expect is a subset of the entity's properties.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertRemoteCalls = "remote_calls"
	AssertEntity      = "entity"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}

	for i, f := range s.Fixtures {
		if f.Kind == "" {
			return fmt.Errorf("fixtures[%d]: kind is required", i)
		}
		if (f.ID == 0) == (f.Name == "") {
			return fmt.Errorf("fixtures[%d]: exactly one of id and name is required", i)
		}
	}

	for i, step := range s.Steps {
		if (step.SQL == "") == (step.GQL == "") {
			return fmt.Errorf("steps[%d]: exactly one of sql and gql is required", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertRemoteCalls:
		if a.Method == "" {
			return fmt.Errorf("assertions[%d]: method is required for remote_calls", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for remote_calls", index)
		}
	case AssertEntity:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for entity", index)
		}
		if (a.ID == 0) == (a.Name == "") {
			return fmt.Errorf("assertions[%d]: exactly one of id and name is required for entity", index)
		}
		if a.Absent && len(a.Expect) > 0 {
			return fmt.Errorf("assertions[%d]: absent and expect are mutually exclusive", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

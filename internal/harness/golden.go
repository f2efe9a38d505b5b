package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the golden form of a scenario execution.
type Snapshot struct {
	ScenarioName string      `json:"scenario_name"`
	Trace        []StepTrace `json:"trace"`
}

// MarshalSnapshot renders a result as indented JSON with a trailing newline.
// Field order is fixed by the struct definitions, so equal traces always
// render identically.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	data, err := json.MarshalIndent(Snapshot{ScenarioName: name, Trace: result.Trace}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// AssertGolden compares a result's trace against
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	data, err := MarshalSnapshot(name, result)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}

// RunWithGolden runs a scenario, fails the test on any expectation
// mismatch and compares the trace against its golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, msg)
	}
	AssertGolden(t, scenario.Name, result)
	return nil
}

package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/gqlbridge/internal/config"
	"github.com/roach88/gqlbridge/internal/harness"
)

// defaultWorkers is used when neither --workers nor a config file sets it.
const defaultWorkers = 4

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update  bool   // regenerate golden files
	Filter  string // scenario filter (glob pattern)
	Workers int    // concurrent scenarios; 0 uses the config value
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run YAML statement scenarios against an in-memory store.

Each scenario's expectations and assertions are checked, and its trace is
compared with golden/<scenario>.golden next to the scenario file when that
file exists.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  gqlbridge test ./scenarios
  gqlbridge test ./scenarios --filter "or_*"
  gqlbridge test ./scenarios --update
  gqlbridge test ./scenarios --workers 8 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "scenarios to run concurrently (default from config, else 4)")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return fmt.Errorf("failed to find scenarios: %w", err)
	}

	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	workers, err := testWorkers(opts)
	if err != nil {
		return err
	}

	// Load failures are reported per file; the rest run on the pool.
	results := make([]ScenarioResult, len(scenarioFiles))
	var (
		scenarios []*harness.Scenario
		index     []int
	)
	for i, path := range scenarioFiles {
		sc, err := harness.LoadScenario(path)
		if err != nil {
			results[i] = ScenarioResult{
				Name:   filepath.Base(path),
				Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
			}
			continue
		}
		scenarios = append(scenarios, sc)
		index = append(index, i)
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	outcomes, err := harness.RunAll(ctx, scenarios, workers)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenarios", err)
	}
	for j, o := range outcomes {
		i := index[j]
		results[i] = checkOutcome(o, scenarioFiles[i], opts.Update)
	}

	result := TestResult{Scenarios: results, Total: len(results)}
	w := cmd.OutOrStdout()
	for _, r := range results {
		if r.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		if opts.Format == "json" {
			continue
		}
		if r.Pass {
			fmt.Fprintf(w, "✓ %s\n", r.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", r.Name)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

func testWorkers(opts *TestOptions) (int, error) {
	if opts.Workers > 0 {
		return opts.Workers, nil
	}
	if opts.ConfigPath == "" {
		return defaultWorkers, nil
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg.Workers, nil
}

// checkOutcome folds a run outcome and its golden comparison into a result.
func checkOutcome(o harness.Outcome, scenarioFile string, update bool) ScenarioResult {
	r := ScenarioResult{Name: o.Scenario.Name}
	if o.Err != nil {
		r.Errors = []string{fmt.Sprintf("execution failed: %v", o.Err)}
		return r
	}
	r.Errors = append(r.Errors, o.Result.Errors...)

	goldenPath := goldenFilePath(scenarioFile)
	snapshot, err := harness.MarshalSnapshot(o.Scenario.Name, o.Result)
	if err != nil {
		r.Errors = append(r.Errors, fmt.Sprintf("failed to marshal trace: %v", err))
		return r
	}

	if update {
		if err := writeGoldenFile(goldenPath, snapshot); err != nil {
			r.Errors = append(r.Errors, fmt.Sprintf("failed to update golden file: %v", err))
		}
	} else if golden, err := os.ReadFile(goldenPath); err == nil {
		if !bytes.Equal(golden, snapshot) {
			r.Errors = append(r.Errors, "trace does not match golden file (run with --update to regenerate)")
		}
	} else if !os.IsNotExist(err) {
		r.Errors = append(r.Errors, fmt.Sprintf("failed to read golden file: %v", err))
	}

	r.Pass = len(r.Errors) == 0
	return r
}

// findScenarioFiles finds all YAML scenario files in a directory.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

func writeGoldenFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	status := "ok"
	if result.Failed > 0 {
		status = "error"
	}

	response := CLIResponse{
		Status: status,
		Data:   result,
	}

	if result.Failed > 0 {
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test summary as text.
func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}

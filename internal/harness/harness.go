package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/roach88/gqlbridge/internal/engine"
	"github.com/roach88/gqlbridge/internal/ir"
	"github.com/roach88/gqlbridge/internal/logging"
	"github.com/roach88/gqlbridge/internal/store"
	"github.com/roach88/gqlbridge/internal/testutil"
)

// Harness runs one scenario against a fresh in-memory store.
type Harness struct {
	fake   *testutil.FakeStore
	engine *engine.Engine
	logger *slog.Logger
	seen   int // remote calls already attributed to a step
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against its own in-memory store for isolation, and
// store-assigned ids start at testutil.DefaultIDBase+1 so traces are
// reproducible.
//
// Execution flow:
//  1. Start the in-memory store with the scenario's rejection options
//  2. Load fixtures
//  3. Execute steps on one cursor, checking each expectation
//  4. Evaluate assertions
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	fake := testutil.NewFakeStore(testutil.FakeOptions{
		RejectOr:       scenario.Store.RejectOr,
		RequireIndexes: scenario.Store.RequireIndexes,
	})
	defer fake.Close()

	logger := logging.Discard()
	h := &Harness{
		fake:   fake,
		engine: engine.New(store.NewClient(fake.Config()), engine.WithLogger(logger)),
		logger: logger,
	}

	for i, f := range scenario.Fixtures {
		if err := h.load(f); err != nil {
			return nil, fmt.Errorf("fixtures[%d]: %w", i, err)
		}
	}

	result := NewResult()
	cur := h.engine.Cursor()
	defer cur.Close()

	for i, step := range scenario.Steps {
		trace := h.runStep(ctx, cur, step)
		result.Trace = append(result.Trace, trace)
		if step.Expect != nil {
			for _, msg := range checkExpect(step.Expect, trace) {
				result.AddError(fmt.Sprintf("steps[%d]: %s", i, msg))
			}
		} else if trace.Error != "" {
			result.AddError(fmt.Sprintf("steps[%d]: unexpected %s", i, trace.Error))
		}
	}

	for i, a := range scenario.Assertions {
		if msg := h.checkAssertion(a); msg != "" {
			result.AddError(fmt.Sprintf("assertions[%d]: %s", i, msg))
		}
	}
	return result, nil
}

func (h *Harness) load(f Fixture) error {
	key := ir.Key{{Kind: f.Kind, ID: f.ID, Name: f.Name}}
	props := make(ir.Entity, len(f.Properties))
	for name, raw := range f.Properties {
		v, err := ir.FromNative(raw)
		if err != nil {
			return fmt.Errorf("property %q: %w", name, err)
		}
		props[name] = v
	}
	h.fake.Put(key, props)
	return nil
}

// runStep executes one step and captures its trace. Rows are read through
// the cursor, so the step's rows are consumed afterwards.
func (h *Harness) runStep(ctx context.Context, cur *engine.Cursor, step Step) StepTrace {
	trace := StepTrace{Statement: step.Text()}
	before := len(cur.Warnings())

	var err error
	if step.GQL != "" {
		err = cur.ExecuteGQL(ctx, step.GQL)
	} else {
		err = cur.Execute(ctx, step.SQL, step.Params)
	}
	trace.Calls = h.newCalls()

	if err != nil {
		var ee *engine.Error
		if errors.As(err, &ee) {
			trace.Error = string(ee.Code)
		} else {
			trace.Error = err.Error()
		}
		h.logger.Debug("step failed", "statement", trace.Statement, "error", err)
		return trace
	}

	trace.RowCount = cur.RowCount()
	trace.LastRowID = cur.LastRowID()
	if all := cur.Warnings(); len(all) > before {
		trace.Warnings = all[before:]
	}
	for _, f := range cur.Description() {
		trace.Columns = append(trace.Columns, f.Name)
	}
	if trace.Columns != nil {
		rows, err := cur.FetchAll()
		if err == nil {
			for _, row := range rows {
				cells := make([]string, len(row))
				for j, v := range row {
					cells[j] = ir.Format(v)
				}
				trace.Rows = append(trace.Rows, cells)
			}
		}
	}
	return trace
}

// newCalls returns the remote requests made since the last call.
func (h *Harness) newCalls() []string {
	calls := h.fake.Calls()
	out := []string{}
	for _, c := range calls[h.seen:] {
		if c.GQL != "" {
			out = append(out, c.Method+": "+c.GQL)
		} else {
			out = append(out, c.Method)
		}
	}
	h.seen = len(calls)
	return out
}

// Outcome pairs a scenario with its result.
type Outcome struct {
	Scenario *Scenario
	Result   *Result
	Err      error
}

// RunAll runs scenarios on a pool of at most workers goroutines. Outcomes
// are returned in input order.
func RunAll(ctx context.Context, scenarios []*Scenario, workers int) ([]Outcome, error) {
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	out := make([]Outcome, len(scenarios))
	var wg sync.WaitGroup
	for i, sc := range scenarios {
		out[i].Scenario = sc
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					out[i].Err = fmt.Errorf("scenario %s panicked: %v", sc.Name, r)
				}
			}()
			out[i].Result, out[i].Err = Run(ctx, sc)
		}); err != nil {
			wg.Done()
			out[i].Err = fmt.Errorf("submit scenario %s: %w", sc.Name, err)
		}
	}
	wg.Wait()
	return out, nil
}

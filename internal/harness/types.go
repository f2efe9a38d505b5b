package harness

// StepTrace records what one scenario step did.
//
// Rows hold each value in its GQL literal form so that traces compare
// as plain text. Calls lists the remote requests the step issued, as
// "method" or "method: GQL".
type StepTrace struct {
	Statement string     `json:"statement"`
	Columns   []string   `json:"columns,omitempty"`
	Rows      [][]string `json:"rows,omitempty"`
	RowCount  int64      `json:"row_count"`
	LastRowID int64      `json:"last_row_id,omitempty"`
	Warnings  []string   `json:"warnings,omitempty"`
	Error     string     `json:"error,omitempty"`
	Calls     []string   `json:"calls"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace has one entry per executed step, in order.
	Trace []StepTrace `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []StepTrace{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

package harness

import "github.com/bitsmind/graphsql/internal/plan"

// CaseResult records what one case produced.
type CaseResult struct {
	Name     string `json:"name"`
	Entity   string `json:"entity"`
	Graph    string `json:"graph,omitempty"`
	Strategy string `json:"strategy,omitempty"`

	// Fingerprint is the plan's content hash.
	Fingerprint string `json:"fingerprint,omitempty"`

	// SQL and Args are the rendered root statement.
	SQL  string `json:"sql,omitempty"`
	Args []any  `json:"args,omitempty"`

	// Error is the failing error's code, or "ERROR" for uncoded errors.
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`

	Plan *plan.Plan `json:"-"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every case met its expectations.
	Pass bool `json:"pass"`

	// Cases holds one entry per scenario case, in order.
	Cases []CaseResult `json:"cases"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Cases:  []CaseResult{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddCase appends a case outcome.
func (r *Result) AddCase(c CaseResult) {
	r.Cases = append(r.Cases, c)
}

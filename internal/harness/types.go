package harness

import "github.com/roach88/restbridge/internal/postgrest"

// StepResult is the compiled output of one scenario step.
type StepResult struct {
	Name      string         `json:"name"`
	Resource  string         `json:"resource"`
	Operation string         `json:"operation"`
	Target    string         `json:"target"`
	Wire      postgrest.Wire `json:"wire"`
	Query     string         `json:"query"`
	Hash      string         `json:"hash"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Steps holds one entry per scenario step, in order.
	Steps []StepResult `json:"steps"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep records the output of a step.
func (r *Result) AddStep(s StepResult) {
	r.Steps = append(r.Steps, s)
}

// Step returns the result of the named step.
func (r *Result) Step(name string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}

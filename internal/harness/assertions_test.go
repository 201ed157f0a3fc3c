package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restbridge/internal/postgrest"
)

func sampleResult() *Result {
	r := NewResult()
	r.AddStep(StepResult{
		Name:   "a",
		Target: "contacts",
		Wire:   postgrest.Wire{"deleted_at@is": nil, "organization_id": int64(7)},
		Query:  "deleted_at=is.null&organization_id=eq.7",
		Hash:   "h1",
	})
	r.AddStep(StepResult{Name: "b", Hash: "h1"})
	r.AddStep(StepResult{Name: "c", Hash: "h2"})
	return r
}

func TestAssertWireContains(t *testing.T) {
	r := sampleResult()

	// YAML ints match compiled int64 values.
	assert.NoError(t, evaluateAssertion(r, Assertion{
		Type: AssertWireContains, Step: "a",
		Wire: map[string]any{"organization_id": 7, "deleted_at@is": nil},
	}))

	err := evaluateAssertion(r, Assertion{Type: AssertWireContains, Step: "a", Wire: map[string]any{"organization_id": 8}})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "organization_id = 8", ae.Expected)

	err = evaluateAssertion(r, Assertion{Type: AssertWireContains, Step: "a", Wire: map[string]any{"q": "x"}})
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "missing", ae.Actual)
}

func TestAssertWireAbsent(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, evaluateAssertion(r, Assertion{Type: AssertWireAbsent, Step: "a", Keys: []string{"q"}}))

	err := evaluateAssertion(r, Assertion{Type: AssertWireAbsent, Step: "a", Keys: []string{"q", "deleted_at@is"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no key deleted_at@is")
}

func TestAssertQueryContains(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, evaluateAssertion(r, Assertion{Type: AssertQueryContains, Step: "a", Contains: "organization_id=eq.7"}))
	assert.Error(t, evaluateAssertion(r, Assertion{Type: AssertQueryContains, Step: "a", Contains: "tags="}))
}

func TestAssertSameHash(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, evaluateAssertion(r, Assertion{Type: AssertSameHash, Steps: []string{"a", "b"}}))

	err := evaluateAssertion(r, Assertion{Type: AssertSameHash, Steps: []string{"a", "b", "c"}})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "c", ae.Step)
	assert.Equal(t, "h2", ae.Actual)
}

func TestAssertion_StepNotRun(t *testing.T) {
	err := evaluateAssertion(NewResult(), Assertion{Type: AssertWireAbsent, Step: "a", Keys: []string{"q"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step not run")
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{Type: AssertQueryContains, Step: "a", Expected: "x", Actual: "y"}
	assert.Equal(t, "Assertion failed: query_contains (step a)\n  Expected: x\n  Actual: y", err.Error())
}

package harness

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/roach88/restbridge/internal/canonical"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Step     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Step != "" {
		fmt.Fprintf(&buf, " (step %s)", e.Step)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n  Actual: %s", e.Expected, e.Actual)
	return buf.String()
}

// evaluateAssertion dispatches on the assertion type.
func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertWireContains:
		return assertWireContains(result, a)
	case AssertWireAbsent:
		return assertWireAbsent(result, a)
	case AssertQueryContains:
		return assertQueryContains(result, a)
	case AssertSameHash:
		return assertSameHash(result, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func stepFor(result *Result, a Assertion) (StepResult, error) {
	sr, ok := result.Step(a.Step)
	if !ok {
		return StepResult{}, &AssertionError{Type: a.Type, Step: a.Step, Expected: "step result", Actual: "step not run"}
	}
	return sr, nil
}

// assertWireContains checks every listed entry is present with an equal
// value. A nil value requires the key to be present with a nil value.
func assertWireContains(result *Result, a Assertion) error {
	sr, err := stepFor(result, a)
	if err != nil {
		return err
	}
	for _, key := range canonical.SortedKeys(a.Wire) {
		got, ok := sr.Wire[key]
		if !ok {
			return &AssertionError{Type: a.Type, Step: a.Step, Expected: "key " + key, Actual: "missing"}
		}
		if !sameValue(a.Wire[key], got) {
			return &AssertionError{
				Type:     a.Type,
				Step:     a.Step,
				Expected: fmt.Sprintf("%s = %v", key, a.Wire[key]),
				Actual:   fmt.Sprintf("%s = %v", key, got),
			}
		}
	}
	return nil
}

func assertWireAbsent(result *Result, a Assertion) error {
	sr, err := stepFor(result, a)
	if err != nil {
		return err
	}
	for _, key := range a.Keys {
		if v, ok := sr.Wire[key]; ok {
			return &AssertionError{
				Type:     a.Type,
				Step:     a.Step,
				Expected: "no key " + key,
				Actual:   fmt.Sprintf("%s = %v", key, v),
			}
		}
	}
	return nil
}

func assertQueryContains(result *Result, a Assertion) error {
	sr, err := stepFor(result, a)
	if err != nil {
		return err
	}
	if !strings.Contains(sr.Query, a.Contains) {
		return &AssertionError{Type: a.Type, Step: a.Step, Expected: "query containing " + a.Contains, Actual: sr.Query}
	}
	return nil
}

// assertSameHash checks that all named steps compiled to the same target
// and wire.
func assertSameHash(result *Result, a Assertion) error {
	var first StepResult
	for i, name := range a.Steps {
		sr, ok := result.Step(name)
		if !ok {
			return &AssertionError{Type: a.Type, Step: name, Expected: "step result", Actual: "step not run"}
		}
		if i == 0 {
			first = sr
			continue
		}
		if sr.Hash != first.Hash {
			return &AssertionError{
				Type:     a.Type,
				Step:     name,
				Expected: fmt.Sprintf("hash of %s (%s)", first.Name, first.Hash),
				Actual:   sr.Hash,
			}
		}
	}
	return nil
}

// sameValue compares values by canonical form, so an int from YAML equals
// the same number compiled from JSON.
func sameValue(want, got any) bool {
	w, err := canonical.Marshal(want)
	if err != nil {
		return false
	}
	g, err := canonical.Marshal(got)
	if err != nil {
		return false
	}
	return bytes.Equal(w, g)
}

package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/restbridge/internal/canonical"
)

// Snapshot captures the compiled output of a scenario for golden
// comparison.
type Snapshot struct {
	Scenario string
	Steps    []StepResult
}

// toCanonicalMap converts a Snapshot to plain maps for canonical JSON.
func (s *Snapshot) toCanonicalMap() map[string]any {
	steps := make([]any, len(s.Steps))
	for i, st := range s.Steps {
		steps[i] = map[string]any{
			"name":      st.Name,
			"resource":  st.Resource,
			"operation": st.Operation,
			"target":    st.Target,
			"wire":      map[string]any(st.Wire),
			"query":     st.Query,
			"hash":      st.Hash,
		}
	}
	return map[string]any{
		"scenario": s.Scenario,
		"steps":    steps,
	}
}

// RunWithGolden executes a scenario and compares its output against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against the named golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := Snapshot{Scenario: scenarioName, Steps: result.Steps}
	data, err := canonical.Marshal(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}

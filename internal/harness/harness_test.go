package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Testdata(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Steps, len(s.Steps))
		})
	}
}

func TestRun_DefaultClockDrivesStaleThreshold(t *testing.T) {
	s := &Scenario{
		Name:        "stale_default_clock",
		Description: "stale without now",
		Steps: []Step{{
			Name:      "stale",
			Resource:  "opportunities",
			Operation: "list",
			Payload:   map[string]any{"stale": true},
		}},
	}

	result, err := Run(s)
	require.NoError(t, err)

	sr, ok := result.Step("stale")
	require.True(t, ok)
	assert.Equal(t, "(last_activity_date.lt.2023-12-25,last_activity_date.is.null)", sr.Wire["or@"])
}

func TestRun_AdvanceMovesStaleThreshold(t *testing.T) {
	stale := map[string]any{"stale": true}
	s := &Scenario{
		Name:        "stale_advance",
		Description: "threshold follows the frozen clock",
		Now:         "2024-06-15T12:00:00Z",
		Steps: []Step{
			{Name: "before", Resource: "opportunities", Operation: "list", Payload: stale},
			{Name: "after", Resource: "opportunities", Operation: "list", Payload: stale, Advance: "48h"},
		},
		Assertions: []Assertion{{Type: AssertSameHash, Steps: []string{"before", "after"}}},
	}

	result, err := Run(s)
	require.NoError(t, err)

	before, _ := result.Step("before")
	after, _ := result.Step("after")
	assert.Equal(t, "(last_activity_date.lt.2024-06-08,last_activity_date.is.null)", before.Wire["or@"])
	assert.Equal(t, "(last_activity_date.lt.2024-06-10,last_activity_date.is.null)", after.Wire["or@"])

	// The threshold moved, so the hashes differ.
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "same_hash")
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	s := &Scenario{
		Name:        "mismatch",
		Description: "wrong expectations",
		Steps: []Step{{
			Name:      "list",
			Resource:  "contacts",
			Operation: "list",
			Payload:   map[string]any{"status": "hot"},
			Expect: &ExpectClause{
				Target: "contacts",
				Wire:   map[string]any{"status": "cold"},
				Query:  "status=eq.cold",
			},
		}},
	}

	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "target: expected contacts, got contacts_summary")
	assert.Contains(t, result.Errors[1], "wire:")
	assert.Contains(t, result.Errors[2], "query: expected status=eq.cold, got status=eq.hot")
}

func TestRun_NilPayloadCompilesSoftDeleteOnly(t *testing.T) {
	s := &Scenario{
		Name:        "empty",
		Description: "no payload",
		Steps:       []Step{{Name: "one", Resource: "contacts", Operation: "one"}},
	}

	result, err := Run(s)
	require.NoError(t, err)

	sr, _ := result.Step("one")
	assert.Equal(t, "contacts", sr.Target)
	assert.Equal(t, "deleted_at=is.null", sr.Query)
}

func TestRun_MissingRegistryDir(t *testing.T) {
	s := &Scenario{
		Name:        "bad_registry",
		Description: "registry dir does not exist",
		Registry:    filepath.Join(t.TempDir(), "missing"),
		Steps:       []Step{{Name: "a", Resource: "contacts", Operation: "list"}},
	}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load registry")
}

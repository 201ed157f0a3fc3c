package harness

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/restbridge/internal/canonical"
	"github.com/roach88/restbridge/internal/compiler"
	"github.com/roach88/restbridge/internal/registry"
	"github.com/roach88/restbridge/internal/testutil"
)

// Harness compiles scenario steps against one registry with a frozen clock.
type Harness struct {
	compiler *compiler.Compiler
	clock    *testutil.FakeClock
}

// Run executes a scenario and returns the result.
//
// Each scenario gets a fresh compiler and escape cache. The returned
// error reports setup and internal faults; failed expectations are
// recorded in the result.
func Run(scenario *Scenario) (*Result, error) {
	reg := registry.Default()
	if scenario.Registry != "" {
		loaded, err := registry.Load(scenario.Registry)
		if err != nil {
			return nil, fmt.Errorf("failed to load registry: %w", err)
		}
		reg = loaded
	}

	now, err := scenario.clock()
	if err != nil {
		return nil, fmt.Errorf("invalid clock: %w", err)
	}
	clock := testutil.NewFakeClock(now)

	h := &Harness{
		compiler: compiler.New(compiler.Options{
			Router: registry.NewRouter(reg),
			Now:    clock.Now,
			Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		}),
		clock: clock,
	}

	result := NewResult()
	for _, step := range scenario.Steps {
		sr, err := h.runStep(step)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", step.Name, err)
		}
		result.AddStep(sr)
		checkExpect(step, sr, result)
	}

	for _, a := range scenario.Assertions {
		if err := evaluateAssertion(result, a); err != nil {
			result.AddError(err.Error())
		}
	}

	return result, nil
}

func (h *Harness) runStep(step Step) (StepResult, error) {
	if step.Advance != "" {
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return StepResult{}, fmt.Errorf("invalid advance: %w", err)
		}
		h.clock.Advance(d)
	}

	payload := compiler.Payload(step.Payload)
	if payload == nil {
		payload = compiler.Payload{}
	}

	res, err := h.compiler.Compile(step.Resource, registry.Operation(step.Operation), payload)
	if err != nil {
		return StepResult{}, err
	}
	hash, err := canonical.FilterHash(res.Target, res.Wire)
	if err != nil {
		return StepResult{}, err
	}

	return StepResult{
		Name:      step.Name,
		Resource:  step.Resource,
		Operation: step.Operation,
		Target:    res.Target,
		Wire:      res.Wire,
		Query:     h.compiler.Encoder().Values(res.Wire).Encode(),
		Hash:      hash,
	}, nil
}

// checkExpect records a failure for each expect field that differs.
func checkExpect(step Step, sr StepResult, result *Result) {
	if step.Expect == nil {
		return
	}
	exp := step.Expect

	if exp.Target != "" && exp.Target != sr.Target {
		result.AddError(fmt.Sprintf("step %q: target: expected %s, got %s", step.Name, exp.Target, sr.Target))
	}
	if exp.Wire != nil {
		want, errW := canonical.Marshal(exp.Wire)
		got, errG := canonical.Marshal(map[string]any(sr.Wire))
		switch {
		case errW != nil || errG != nil:
			result.AddError(fmt.Sprintf("step %q: wire: cannot compare: %v", step.Name, firstErr(errW, errG)))
		case !bytes.Equal(want, got):
			result.AddError(fmt.Sprintf("step %q: wire: expected %s, got %s", step.Name, want, got))
		}
	}
	if exp.Query != "" && exp.Query != sr.Query {
		result.AddError(fmt.Sprintf("step %q: query: expected %s, got %s", step.Name, exp.Query, sr.Query))
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

package filterir

import (
	"fmt"
	"strings"
)

// ValidationResult contains the structural analysis of a filter.
//
// Structural problems are compiler bugs, not user errors: a payload the
// compiler cannot interpret becomes a Passthrough, never an invalid
// condition. Encoders refuse to serialize invalid filters.
type ValidationResult struct {
	// Valid indicates the filter can be encoded.
	Valid bool

	// Problems lists every structural violation found.
	// Empty when Valid is true.
	Problems []string
}

// Err returns the problems as a single error, or nil when the filter is valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("invalid filter: %s", strings.Join(r.Problems, "; "))
}

// Validate checks that every condition in the filter is well formed.
//
// Rules:
//  1. Compare and List conditions name a field
//  2. List conditions use a tuple operator and carry at least one value
//  3. Logical conditions use or/and/not and carry at least one term
//  4. AnyOf conditions carry at least one term
//  5. Every term names a field and an operator
//  6. Passthrough conditions carry a key
//
// Validate is a pure function with no side effects.
func Validate(f Filter) ValidationResult {
	v := &validator{problems: []string{}}
	for i, c := range f.Conditions {
		v.validateCondition(i, c)
	}
	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateCondition(i int, c Condition) {
	switch cond := c.(type) {
	case Compare:
		v.validateCompare(i, cond)
	case *Compare:
		v.validateCompare(i, *cond)
	case List:
		v.validateList(i, cond)
	case *List:
		v.validateList(i, *cond)
	case Logical:
		v.validateLogical(i, cond)
	case *Logical:
		v.validateLogical(i, *cond)
	case AnyOf:
		v.validateTerms(i, "or-group", cond.Terms)
	case *AnyOf:
		v.validateTerms(i, "or-group", cond.Terms)
	case Passthrough:
		v.validatePassthrough(i, cond)
	case *Passthrough:
		v.validatePassthrough(i, *cond)
	case nil:
		v.addProblem("condition %d: nil condition", i)
	default:
		v.addProblem("condition %d: unsupported condition type %T", i, c)
	}
}

func (v *validator) validateCompare(i int, c Compare) {
	if c.Field == "" {
		v.addProblem("condition %d: comparison without field", i)
	}
	if c.Operator == "" {
		v.addProblem("condition %d: comparison on %q without operator", i, c.Field)
	}
}

func (v *validator) validateList(i int, l List) {
	if l.Field == "" {
		v.addProblem("condition %d: list without field", i)
	}
	if !l.Operator.IsTuple() {
		v.addProblem("condition %d: operator %q on %q does not take a tuple", i, l.Operator, l.Field)
	}
	if len(l.Values) == 0 {
		v.addProblem("condition %d: empty list on %q", i, l.Field)
	}
}

func (v *validator) validateLogical(i int, l Logical) {
	switch l.Op {
	case LogicalOr, LogicalAnd, LogicalNot:
	default:
		v.addProblem("condition %d: unknown logical operator %q", i, l.Op)
	}
	v.validateTerms(i, string(l.Op)+"-group", l.Terms)
}

func (v *validator) validateTerms(i int, what string, terms []Term) {
	if len(terms) == 0 {
		v.addProblem("condition %d: empty %s", i, what)
	}
	for j, t := range terms {
		if t.Field == "" {
			v.addProblem("condition %d: %s term %d without field", i, what, j)
		}
		if t.Operator == "" {
			v.addProblem("condition %d: %s term %d without operator", i, what, j)
		}
		if t.Verbatim {
			if _, ok := t.Value.(string); !ok {
				v.addProblem("condition %d: %s term %d is verbatim but not a string", i, what, j)
			}
		}
	}
}

func (v *validator) validatePassthrough(i int, p Passthrough) {
	if p.Key == "" {
		v.addProblem("condition %d: passthrough without key", i)
	}
}

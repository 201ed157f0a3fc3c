package compiler

import (
	"sort"

	"github.com/roach88/restbridge/internal/filterir"
	"github.com/roach88/restbridge/internal/postgrest"
)

var logicalKeys = []struct {
	key string
	op  filterir.LogicalOp
}{
	{KeyOr, filterir.LogicalOr},
	{KeyAnd, filterir.LogicalAnd},
	{KeyNot, filterir.LogicalNot},
}

// expandLogical consumes $or, $and and $not. Each element of the group is
// an object whose entries become equality terms ("field.eq.value"); an
// entry key may carry an operator ("age@gte"). Entries with nil values
// are skipped and groups without terms emit nothing. The reserved keys
// are removed whether or not they produced a condition.
func (c *Compiler) expandLogical(w *work) {
	for _, lk := range logicalKeys {
		v, present := w.take(lk.key)
		if !present {
			continue
		}
		terms := groupTerms(v)
		if len(terms) == 0 {
			continue
		}
		w.filter.Add(filterir.Logical{Op: lk.op, Terms: terms})
	}
}

// groupTerms reads the elements of a logical group. Shapes other than a
// list of objects (or a single object) yield no terms.
func groupTerms(v any) []filterir.Term {
	var elems []map[string]any
	switch val := v.(type) {
	case []any:
		for _, e := range val {
			if m, ok := e.(map[string]any); ok {
				elems = append(elems, m)
			}
		}
	case []map[string]any:
		elems = val
	case map[string]any:
		elems = []map[string]any{val}
	case Payload:
		elems = []map[string]any{val}
	case []Payload:
		for _, e := range val {
			elems = append(elems, e)
		}
	}

	var terms []filterir.Term
	for _, elem := range elems {
		keys := make([]string, 0, len(elem))
		for k := range elem {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			value := elem[k]
			if value == nil {
				continue
			}
			field, op := k, filterir.OpEq
			if f, o, ok := postgrest.SplitKey(k); ok && f != "" && o != "" {
				field, op = f, filterir.ParseOperator(o)
			}
			terms = append(terms, filterir.Term{Field: field, Operator: op, Value: value})
		}
	}
	return terms
}

// TransformOrFilter applies only the logical stage to p. Every other key
// passes through unchanged.
func (c *Compiler) TransformOrFilter(p Payload) (postgrest.Wire, error) {
	w := newWork(p)
	c.expandLogical(w)
	w.passRest()
	return c.enc.Encode(w.filter)
}

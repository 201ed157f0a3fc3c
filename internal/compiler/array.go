package compiler

import (
	"reflect"

	"github.com/roach88/restbridge/internal/filterir"
	"github.com/roach88/restbridge/internal/postgrest"
)

// transformArrays converts the remaining payload keys into conditions.
// The free-text key is left for the search stage.
//
// Operator keys ("field@op"):
//   - operator spelling is normalized (not_in → not.in)
//   - a non-empty array becomes a tuple; an empty array is dropped
//   - any other value, nil included, passes through
//
// Plain keys:
//   - nil and empty arrays are dropped
//   - arrays on contained-array fields become field@cs {a,b}
//   - other arrays become field@in (a,b)
//   - scalars on contained-array fields become field@cs {a}
//   - objects pass through; other scalars become plain equality
func (c *Compiler) transformArrays(w *work) {
	contained := make(map[string]bool)
	for _, f := range c.reg.ContainedArrayFields() {
		contained[f] = true
	}

	for _, key := range w.sortedKeys() {
		if key == KeySearch {
			continue
		}
		v, _ := w.take(key)

		if field, opName, ok := postgrest.SplitKey(key); ok {
			c.operatorCondition(w, key, field, opName, v)
			continue
		}

		if v == nil {
			continue
		}
		if values, ok := asSlice(v); ok {
			if len(values) == 0 {
				continue
			}
			op := filterir.OpIn
			if contained[key] {
				op = filterir.OpContains
			}
			w.filter.Add(filterir.List{Field: key, Operator: op, Values: values})
			continue
		}
		switch v.(type) {
		case map[string]any, Payload:
			w.filter.Add(filterir.Passthrough{Key: key, Value: v})
			continue
		}
		if contained[key] {
			w.filter.Add(filterir.List{Field: key, Operator: filterir.OpContains, Values: []any{v}})
			continue
		}
		w.filter.Add(filterir.Compare{Field: key, Operator: filterir.OpEq, Value: v, Implicit: true})
	}
}

func (c *Compiler) operatorCondition(w *work, key, field, opName string, v any) {
	if field == "" || opName == "" {
		// Grouped keys such as @or and or@ from an earlier compilation.
		w.filter.Add(filterir.Passthrough{Key: key, Value: v})
		return
	}
	op := filterir.ParseOperator(opName)

	values, isSlice := asSlice(v)
	switch {
	case isSlice && len(values) == 0:
		return
	case isSlice && op.IsTuple():
		w.filter.Add(filterir.List{Field: field, Operator: op, Values: values})
	case isSlice:
		w.filter.Add(filterir.Compare{Field: field, Operator: op, Value: c.enc.Tuple(op, values)})
	default:
		w.filter.Add(filterir.Compare{Field: field, Operator: op, Value: v})
	}
}

// asSlice reports whether v is a slice or array and returns its elements.
// Byte slices are not treated as lists.
func asSlice(v any) ([]any, bool) {
	switch val := v.(type) {
	case []any:
		return val, true
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, true
	case []byte:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// TransformArrayFilters applies only the array/operator stage to p.
// Logical keys and the free-text key pass through unchanged.
func (c *Compiler) TransformArrayFilters(p Payload) (postgrest.Wire, error) {
	w := newWork(p)
	for _, lk := range logicalKeys {
		if v, ok := w.take(lk.key); ok {
			w.filter.Add(filterir.Passthrough{Key: lk.key, Value: v})
		}
	}
	c.transformArrays(w)
	w.passRest()
	return c.enc.Encode(w.filter)
}

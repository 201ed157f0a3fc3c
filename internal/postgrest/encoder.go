package postgrest

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/roach88/restbridge/internal/filterir"
)

// Reserved wire keys for grouped conditions.
const (
	KeyLogicalOr  = "@or"
	KeyLogicalAnd = "@and"
	KeyLogicalNot = "@not"
	KeyAnyOf      = "or@"
	KeyAllOf      = "and@"
)

// OperatorSeparator separates a field from its operator in a wire key.
const OperatorSeparator = "@"

// Wire is a compiled filter in PostgREST suffix-key form.
type Wire map[string]any

// Keys returns the wire keys in sorted order.
func (w Wire) Keys() []string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Key builds the wire key for a field and operator.
func Key(field string, op filterir.Operator) string {
	return field + OperatorSeparator + string(op)
}

// SplitKey splits a wire key at the first separator.
// ok is false for plain keys.
//
//	SplitKey("created_at@gte") → "created_at", "gte", true
//	SplitKey("@or")            → "", "or", true
//	SplitKey("or@")            → "or", "", true
//	SplitKey("status")         → "status", "", false
func SplitKey(key string) (field, op string, ok bool) {
	return strings.Cut(key, OperatorSeparator)
}

// Encoder serializes filter IR into wire maps.
//
// Encoding is deterministic: the same Filter always yields the same Wire,
// and Values renders keys in sorted order.
type Encoder struct {
	esc *Escaper
}

// NewEncoder creates an Encoder that escapes literals with esc.
// A nil escaper gets a private one.
func NewEncoder(esc *Escaper) *Encoder {
	if esc == nil {
		esc = NewEscaper(nil)
	}
	return &Encoder{esc: esc}
}

// Escaper returns the escaper used for literals.
func (e *Encoder) Escaper() *Escaper {
	return e.esc
}

// Encode converts a Filter to its wire form.
//
// Returns an error if the filter is structurally invalid (see
// filterir.Validate). When a filter contains several AnyOf groups they
// are combined under and@ as "(or(...),or(...))" so that neither group
// replaces the other; an and@ already in the filter is kept in front.
func (e *Encoder) Encode(f filterir.Filter) (Wire, error) {
	if err := filterir.Validate(f).Err(); err != nil {
		return nil, err
	}

	w := make(Wire, f.Len())
	var groups []string

	for _, c := range f.Conditions {
		switch cond := c.(type) {
		case filterir.Compare:
			e.encodeCompare(w, cond)
		case *filterir.Compare:
			e.encodeCompare(w, *cond)
		case filterir.List:
			w[Key(cond.Field, cond.Operator)] = e.Tuple(cond.Operator, cond.Values)
		case *filterir.List:
			w[Key(cond.Field, cond.Operator)] = e.Tuple(cond.Operator, cond.Values)
		case filterir.Logical:
			e.encodeLogical(w, cond)
		case *filterir.Logical:
			e.encodeLogical(w, *cond)
		case filterir.AnyOf:
			groups = append(groups, e.Terms(cond.Terms))
		case *filterir.AnyOf:
			groups = append(groups, e.Terms(cond.Terms))
		case filterir.Passthrough:
			w[cond.Key] = cond.Value
		case *filterir.Passthrough:
			w[cond.Key] = cond.Value
		default:
			return nil, fmt.Errorf("unsupported condition type: %T", c)
		}
	}

	if len(groups) > 0 {
		// An or@ carried through from an earlier compilation joins the
		// new groups instead of being overwritten.
		if prev, ok := w[KeyAnyOf].(string); ok {
			groups = append([]string{prev}, groups...)
			delete(w, KeyAnyOf)
		}
		if len(groups) == 1 {
			w[KeyAnyOf] = groups[0]
		} else {
			var parts []string
			// A carried and@ keeps its conditions ahead of the new groups.
			if prev, ok := w[KeyAllOf]; ok {
				if inner := unwrapGroup(e.group(prev)); inner != "" {
					parts = append(parts, inner)
				}
			}
			for _, g := range groups {
				parts = append(parts, "or"+g)
			}
			w[KeyAllOf] = "(" + strings.Join(parts, ",") + ")"
		}
	}

	return w, nil
}

// unwrapGroup strips the outer parentheses of a rendered group.
func unwrapGroup(g string) string {
	if strings.HasPrefix(g, "(") && strings.HasSuffix(g, ")") {
		return g[1 : len(g)-1]
	}
	return g
}

func (e *Encoder) encodeCompare(w Wire, c filterir.Compare) {
	if c.Implicit && c.Operator == filterir.OpEq {
		w[c.Field] = c.Value
		return
	}
	w[Key(c.Field, c.Operator)] = c.Value
}

func (e *Encoder) encodeLogical(w Wire, l filterir.Logical) {
	w[OperatorSeparator+string(l.Op)] = e.Terms(l.Terms)
}

// Tuple formats values as an escaped tuple for op: braces for array
// operators, parentheses otherwise.
//
//	Tuple(cs, [1 2 3])            → {1,2,3}
//	Tuple(in, ["a" "with space"]) → (a,"with space")
func (e *Encoder) Tuple(op filterir.Operator, values []any) string {
	joined := strings.Join(e.esc.EscapeAll(values), ",")
	if op.IsArray() {
		return "{" + joined + "}"
	}
	return "(" + joined + ")"
}

// Terms formats grouped terms as "(field.op.value,...)".
func (e *Encoder) Terms(terms []filterir.Term) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = e.Term(t)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// Term formats a single grouped term.
func (e *Encoder) Term(t filterir.Term) string {
	var value string
	if s, ok := t.Value.(string); ok && t.Verbatim {
		value = s
	} else {
		value = e.esc.Escape(t.Value)
	}
	return t.Field + "." + string(t.Operator) + "." + value
}

// Values renders a wire map as PostgREST query parameters.
//
// Rendering rules:
//
//	field: v           → field=eq.v   (nil → field=is.null)
//	field@op: v        → field=op.v   (nil → field=op.null)
//	@or / or@: "(…)"   → or=(…)
//	@and / and@: "(…)" → and=(…)
//	@not: "(…)"        → not.and=(…)
//
// Grouped keys whose value is an object (the legacy {"@or": {a: 1}} form)
// become equality groups. Object and array values under plain keys are
// JSON-encoded. A blank free-text term ("q") is not a column and is not
// rendered.
func (e *Encoder) Values(w Wire) url.Values {
	params := url.Values{}
	for _, key := range w.Keys() {
		v := w[key]

		switch key {
		case KeyLogicalOr, KeyAnyOf:
			params.Add("or", e.group(v))
			continue
		case KeyLogicalAnd, KeyAllOf:
			params.Add("and", e.group(v))
			continue
		case KeyLogicalNot:
			params.Add("not.and", e.group(v))
			continue
		case "q":
			if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
				continue
			}
		}

		field, op, ok := SplitKey(key)
		if !ok {
			params.Add(key, e.plainValue(v))
			continue
		}
		if field == "" || op == "" {
			params.Add(key, renderLiteral(v))
			continue
		}
		params.Add(field, op+"."+renderLiteral(v))
	}
	return params
}

// group renders the value of a grouped key. Strings are taken as
// pre-built groups; objects become sorted equality terms.
func (e *Encoder) group(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		terms := make([]filterir.Term, 0, len(keys))
		for _, k := range keys {
			field, op, ok := SplitKey(k)
			if !ok || op == "" {
				field, op = k, string(filterir.OpEq)
			}
			terms = append(terms, filterir.Term{Field: field, Operator: filterir.ParseOperator(op), Value: val[k]})
		}
		return e.Terms(terms)
	default:
		return renderLiteral(v)
	}
}

func (e *Encoder) plainValue(v any) string {
	switch v.(type) {
	case nil:
		return "is.null"
	case map[string]any, []any:
		return renderLiteral(v)
	default:
		return "eq." + Stringify(v)
	}
}

// renderLiteral renders an already-formatted wire value. Strings are used
// as is; composite values are JSON-encoded.
func renderLiteral(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return Stringify(v)
	}
}

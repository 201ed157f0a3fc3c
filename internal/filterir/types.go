package filterir

import (
	"strings"
)

// Condition represents one compiled filter clause.
//
// This is a sealed interface - only types in this package implement it.
//
// Condition types:
//   - Compare: field compared to a literal with an optional operator
//   - List: field compared to a tuple (membership or containment)
//   - Logical: grouped equality terms from $or/$and/$not
//   - AnyOf: OR-group of arbitrary terms built by the compiler
//   - Passthrough: an uninterpreted key/value pair
type Condition interface {
	conditionNode() // Marker method - seals interface to this package
}

// Operator is a PostgREST comparison operator in canonical dot form.
type Operator string

const (
	// OpEq is implicit equality. A Compare with OpEq and no explicit
	// operator in its source key is rendered as a plain field key.
	OpEq Operator = "eq"

	OpNeq   Operator = "neq"
	OpGt    Operator = "gt"
	OpGte   Operator = "gte"
	OpLt    Operator = "lt"
	OpLte   Operator = "lte"
	OpLike  Operator = "like"
	OpIlike Operator = "ilike"
	OpIs    Operator = "is"

	// Membership and containment operators take tuples.
	OpIn           Operator = "in"
	OpNotIn        Operator = "not.in"
	OpContains     Operator = "cs"
	OpContainedBy  Operator = "cd"
	OpOverlaps     Operator = "ov"
	OpNotContains  Operator = "not.cs"
	OpNotOverlaps  Operator = "not.ov"
	OpNotIlike     Operator = "not.ilike"
	OpNotIs        Operator = "not.is"
	OpNotContained Operator = "not.cd"
)

// ParseOperator normalizes an operator spelling to its canonical dot form.
//
// Negated operators may arrive underscore-joined from the UI ("not_in");
// PostgREST only understands the dot-joined form ("not.in"). Operators
// that are already canonical, and operators this package does not know,
// are returned unchanged apart from surrounding whitespace.
//
// Examples:
//
//	ParseOperator("not_in")  → "not.in"
//	ParseOperator("not.in")  → "not.in"
//	ParseOperator("gte")     → "gte"
//	ParseOperator("fts(english)") → "fts(english)"
func ParseOperator(s string) Operator {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "not_"); ok && rest != "" {
		return Operator("not." + rest)
	}
	return Operator(s)
}

// IsTuple reports whether the operator compares against a tuple value.
func (o Operator) IsTuple() bool {
	switch o {
	case OpIn, OpNotIn, OpContains, OpContainedBy, OpOverlaps,
		OpNotContains, OpNotOverlaps, OpNotContained:
		return true
	default:
		return false
	}
}

// IsArray reports whether the operator targets an array column.
// Array operators use brace-wrapped tuples ({a,b}); membership operators
// use parenthesized tuples ((a,b)).
func (o Operator) IsArray() bool {
	switch o {
	case OpContains, OpContainedBy, OpOverlaps,
		OpNotContains, OpNotOverlaps, OpNotContained:
		return true
	default:
		return false
	}
}

// Compare represents a field compared to a single literal value.
//
// Semantics:
//
//	<field>=<operator>.<value>
//
// Implicit marks a plain-key equality (the UI sent {status: "active"}).
// Implicit comparisons are encoded as a plain "status" key; explicit ones
// as "status@eq", "created_at@gte", "deleted_at@is" and so on.
//
// Value is passed through to the wire without interpretation. That keeps
// pre-formatted values ("tags@cs": "{a,b}") and nil values for null
// comparisons ("deleted_at@is": nil) intact.
//
// Examples:
//
//	Compare{Field: "status", Operator: OpEq, Value: "active", Implicit: true}
//	  → "status": "active"
//	Compare{Field: "deleted_at", Operator: OpIs, Value: nil}
//	  → "deleted_at@is": nil
type Compare struct {
	Field    string
	Operator Operator
	Value    any
	Implicit bool
}

func (Compare) conditionNode() {}

// List represents a field compared to a tuple of values.
//
// Semantics:
//
//	<field>=in.(a,b,c)      membership
//	<field>=not.in.(a,b,c)  negated membership
//	<field>=cs.{a,b,c}      array containment
//
// Values are raw scalars; the encoder escapes each element. A List with
// no values is never produced by the compiler: an empty selection means
// "no condition", not "match nothing".
type List struct {
	Field    string
	Operator Operator
	Values   []any
}

func (List) conditionNode() {}

// LogicalOp is the operator of a Logical group.
type LogicalOp string

const (
	LogicalOr  LogicalOp = "or"
	LogicalAnd LogicalOp = "and"
	LogicalNot LogicalOp = "not"
)

// Term is a single clause inside a grouped condition.
//
// Semantics:
//
//	<field>.<operator>.<value>
//
// Value is escaped by the encoder unless Verbatim is set, in which case it
// is a string already formatted for the target syntax (free-text patterns
// carry their own quoting rules). A nil Value renders as "null".
type Term struct {
	Field    string
	Operator Operator
	Value    any
	Verbatim bool
}

// Logical represents a $or, $and or $not group sent by the UI.
//
// Semantics:
//
//	@or:  (a.eq.1,b.eq.2)       any term matches
//	@and: (a.eq.1,b.eq.2)       all terms match
//	@not: (a.eq.1,b.eq.2)       the conjunction of terms does not match
//
// Every element of the UI's array contributes one equality Term per key;
// elements with nil values contribute nothing. A Logical with no terms is
// never produced.
type Logical struct {
	Op    LogicalOp
	Terms []Term
}

func (Logical) conditionNode() {}

// AnyOf represents an OR-group built by the compiler.
//
// Semantics:
//
//	or@: (name.ilike.*acme*,description.ilike.*acme*)
//
// When several AnyOf groups appear in one Filter (a free-text search and a
// stale expansion, for instance) the encoder combines them into a single
// conjunction of OR-groups rather than letting one replace the other.
type AnyOf struct {
	Terms []Term
}

func (AnyOf) conditionNode() {}

// Passthrough represents a payload entry the compiler does not interpret.
//
// Malformed or already-compiled keys ("@or", "or@", nested objects under
// plain keys) are carried through verbatim. Recompiling a compiled payload
// therefore yields the same payload.
type Passthrough struct {
	Key   string
	Value any
}

func (Passthrough) conditionNode() {}

// Filter is an ordered list of conditions.
//
// Order is preserved for deterministic debugging output only. Conditions
// are conjunctive and the wire form is a map, so order carries no meaning.
type Filter struct {
	Conditions []Condition
}

// Add appends conditions to the filter.
func (f *Filter) Add(conds ...Condition) {
	f.Conditions = append(f.Conditions, conds...)
}

// Len returns the number of conditions.
func (f Filter) Len() int {
	return len(f.Conditions)
}

// Fields returns the field names referenced by Compare and List
// conditions, in order of first appearance.
func (f Filter) Fields() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	for _, c := range f.Conditions {
		switch cond := c.(type) {
		case Compare:
			add(cond.Field)
		case *Compare:
			add(cond.Field)
		case List:
			add(cond.Field)
		case *List:
			add(cond.Field)
		}
	}
	return out
}

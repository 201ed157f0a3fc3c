package registry

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// fieldNamePattern matches a valid column name. Field names are
// case-sensitive and lowercase.
var fieldNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// logicalKeys are grouped-condition keys accepted on every resource, in
// both the UI's reserved form and PostgREST's form.
var logicalKeys = map[string]bool{
	"$or": true, "$and": true, "$not": true,
	"or": true, "and": true, "not": true,
	"@or": true, "@and": true, "@not": true,
	"or@": true, "and@": true,
}

// controlKeys steer compilation and are never sent as columns.
var controlKeys = map[string]bool{
	"includeDeleted": true,
}

// UnknownResourceError is returned when a filter names a resource the
// registry does not define.
type UnknownResourceError struct {
	Resource string
}

func (e *UnknownResourceError) Error() string {
	return fmt.Sprintf("%s: unknown resource %q", ErrCodeUnknown, e.Resource)
}

// FilterError lists the filter keys a resource does not accept.
type FilterError struct {
	Resource string
	Keys     []string
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("%s: invalid filter fields for %s: %s", ErrCodeInvalid, e.Resource, strings.Join(e.Keys, ", "))
}

// IsValidFilterField reports whether key may appear in a filter on
// resource.
//
// Logical keys ($or, or, @or, ...) are always valid. Operator keys
// ("created_at@gte") are valid when their base field is. Base fields must
// be lowercase identifiers listed as filterable. An unknown resource is an
// error rather than false.
func (r *Registry) IsValidFilterField(resource, key string) (bool, error) {
	fields, ok := r.filterable[resource]
	if !ok {
		return false, &UnknownResourceError{Resource: resource}
	}
	if logicalKeys[key] || controlKeys[key] {
		return true, nil
	}

	field, _, _ := strings.Cut(key, "@")
	if !fieldNamePattern.MatchString(field) {
		return false, nil
	}
	return fields[field], nil
}

// ValidateFilter checks every key of a filter payload. It returns a
// *FilterError naming the rejected keys in sorted order, or an
// *UnknownResourceError.
func (r *Registry) ValidateFilter(resource string, filter map[string]any) error {
	var bad []string
	for key := range filter {
		ok, err := r.IsValidFilterField(resource, key)
		if err != nil {
			return err
		}
		if !ok {
			bad = append(bad, key)
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return &FilterError{Resource: resource, Keys: bad}
	}
	return nil
}

// FilterableFields returns the filterable fields of a resource in sorted
// order.
func (r *Registry) FilterableFields(resource string) []string {
	fields := make([]string, 0, len(r.filterable[resource]))
	for f := range r.filterable[resource] {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

package registry

import "strings"

// Operation is the kind of data-provider call being routed.
type Operation string

const (
	OpList          Operation = "list"
	OpOne           Operation = "one"
	OpManyReference Operation = "many_reference"
	OpCreate        Operation = "create"
	OpUpdate        Operation = "update"
	OpDelete        Operation = "delete"
)

// Target name suffixes that identify precomputed views.
const (
	SummarySuffix = "_summary"
	viewMarker    = "_view"
)

// IsView reports whether a resolved target name is a view. Views embed
// the soft-delete filter themselves.
func IsView(target string) bool {
	return strings.Contains(target, SummarySuffix) || strings.Contains(target, viewMarker)
}

// Router decides which table or view serves an operation.
type Router struct {
	reg *Registry
}

// NewRouter creates a Router over reg.
func NewRouter(reg *Registry) *Router {
	return &Router{reg: reg}
}

// Registry returns the registry the router reads.
func (r *Router) Registry() *Registry {
	return r.reg
}

// DatabaseResource returns the target for an operation.
//
// List operations on resources with a summary view target "<table>_summary".
// Every other operation, including single reads and reference lists on
// the same resources, targets the canonical table.
func (r *Router) DatabaseResource(resource string, op Operation) string {
	table := r.reg.TableName(resource)
	if op == OpList && r.reg.HasSummary(resource) {
		return table + SummarySuffix
	}
	return table
}

// SupportsSoftDelete reports whether a resource filters on deleted_at.
func (r *Router) SupportsSoftDelete(resource string) bool {
	return r.reg.SupportsSoftDelete(resource)
}

// NeedsSoftDelete reports whether the compiler must inject the soft-delete
// condition for an operation. It is false when the caller asked for
// deleted rows, when the resource has no soft delete, and whenever the
// resolved target is a view: adding deleted_at to a view that already
// filters it makes PostgREST reject the request.
func (r *Router) NeedsSoftDelete(resource string, op Operation, includeDeleted bool) bool {
	if includeDeleted || !r.reg.SupportsSoftDelete(resource) {
		return false
	}
	return !IsView(r.DatabaseResource(resource, op))
}

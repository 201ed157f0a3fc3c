// Package filterir provides the intermediate representation (IR) for
// compiled record filters.
//
// The IR is the boundary between the filter compiler, which interprets the
// loosely-typed payloads produced by the admin UI, and the wire encoder,
// which serializes conditions into PostgREST's suffix-key form.
//
// ARCHITECTURE:
//
//	[UI payload] → [compiler stages] → [Filter IR] → [postgrest.Encoder] → [wire map]
//	                                                                     → [query params]
//
// No stage of the compiler builds wire keys by string concatenation. Every
// condition is a typed value, and operator spellings are normalized once
// (ParseOperator) when a payload key is read.
//
// SEALED INTERFACE:
//
// Condition is a sealed interface using the marker method pattern. Only
// types in this package implement it, so encoders can switch exhaustively:
//
//	switch c := cond.(type) {
//	case Compare:     // field or field@op with a literal value
//	case List:        // field@in / field@cs with a tuple of values
//	case Logical:     // $or / $and / $not groups of equality terms
//	case AnyOf:       // OR-group built by search or virtual filters
//	case Passthrough: // key the compiler does not interpret
//	}
//
// Two OR shapes exist on purpose. Logical groups come from the UI's
// reserved keys and are emitted under @or. AnyOf groups are produced by
// the compiler itself (free-text search, stale expansion) and are emitted
// under or@, so the two never overwrite each other.
package filterir

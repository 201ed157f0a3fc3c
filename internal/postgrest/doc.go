// Package postgrest serializes compiled filters into PostgREST's wire
// syntax and models the errors and response envelopes PostgREST returns.
//
// WIRE SYNTAX:
//
// A compiled filter is a flat map. Keys are plain fields ("status") or
// operator-suffixed fields ("created_at@gte") where "@" separates the field
// from a canonical operator. Grouped conditions use reserved keys:
//
//	@or, @and, @not   logical groups sent by the UI
//	or@               OR-group built by the compiler (search, stale)
//	and@              conjunction of several compiler-built OR-groups
//
// QUOTING:
//
// A token is wrapped in double quotes iff it contains one of
//
//	,  .  "  '  (  )  :  <space>
//
// Inside a quoted token backslashes are escaped first, then double quotes.
// Reversing the order would turn the escape of a quote into an escaped
// backslash followed by a bare quote.
//
// PostgREST uses backslash escaping. It does not understand doubled quotes.
package postgrest

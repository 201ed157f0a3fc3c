// Package compiler turns UI filter payloads into PostgREST filters.
//
// PIPELINE:
//
// Compile runs a fixed sequence of stages over a copy of the payload. Each
// stage consumes the keys it understands and appends typed conditions to
// a filterir.Filter; the encoder then produces the wire map.
//
//  1. stale      virtual filter → stage exclusion + activity OR-group
//  2. logical    $or / $and / $not → grouped equality terms
//  3. array      arrays and operator keys → tuples, contained-array fields → cs
//  4. search     q → ILIKE OR-group over searchable columns
//  5. soft delete deleted_at@is null, unless the target is a view
//
// The stale stage must run first: it removes a pseudo-key no later stage
// may see. Stages never fail on malformed input. Keys they cannot
// interpret are carried through unchanged, and legality checks belong to
// registry.ValidateFilter, which callers run before compiling.
//
// Compiling an already compiled wire map yields the same wire map.
package compiler

// Package syncer applies an edited nested collection through a single
// atomic database procedure.
//
// A sync attempt:
//  1. fails fast with ErrMissingPersisted when the persisted collection
//     was not fetched with the parent record
//  2. diffs persisted against edited (package reconcile)
//  3. journals the attempt and calls the procedure exactly once with the
//     parent fields and the create/update/delete instruction sets
//  4. decodes the result, unwrapping a {data: record} envelope
//
// Procedure errors surface as *postgrest.Error with any JSON message
// already decoded into Payload; other errors propagate unchanged. Nothing
// is retried here.
package syncer

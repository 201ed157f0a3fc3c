// Package bridge is the data-provider facade: it validates and compiles
// filter payloads, routes each operation to its table or view, sends
// writes of nested collections through the syncer, and normalizes the
// records it returns.
//
// Reads and plain writes go to a Store (the PostgREST client). A resource
// whose registry entry declares a collection is written with one sync
// procedure call whenever the payload carries a non-empty collection;
// otherwise the collection fields are stripped and the record is written
// directly.
//
// Deleting a soft-delete resource stamps deleted_at instead of removing
// the row.
//
// ResetSession clears the escape cache and the record cache. Call it when
// the authenticated session changes.
package bridge

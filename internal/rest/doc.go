// Package rest is the PostgREST HTTP transport.
//
// Compiled wire maps are rendered to query parameters by
// postgrest.Encoder.Values; the client adds the API key headers, the
// schema profile, paging (Range) and exact counts, and turns error
// responses into *postgrest.Error. Requests are paced by an optional
// client-side rate limiter. Nothing is retried.
package rest

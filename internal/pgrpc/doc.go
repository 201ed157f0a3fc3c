// Package pgrpc calls sync procedures directly over a Postgres
// connection pool, bypassing PostgREST.
//
// A call is one statement:
//
//	SELECT to_jsonb("public"."sync_opportunity_with_products"(
//	    "opportunity_data" => $1, "product_ids_to_delete" => $2, ...))
//
// Arguments use named notation in sorted order; the server resolves their
// types from the function signature. Database errors are returned as
// *postgrest.Error with the status PostgREST would have used, so callers
// handle both transports alike.
package pgrpc

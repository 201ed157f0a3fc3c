// Package registry holds the static resource configuration consumed by the
// filter compiler and the data-provider facade.
//
// Resources are declared in CUE. The schema (schema.cue) defines closed
// #Resource, #Stale and #Collection definitions; the default registry
// (registry.cue) is embedded in the binary and may be replaced by a
// directory of CUE files at load time. Either way the data is unified with
// the schema, so defaults are filled in and unknown keys are load errors.
//
// The registry answers the collaborator questions the compiler asks:
//
//   - canonical table name for a resource (TableName)
//   - searchable columns (SearchableFields)
//   - soft-delete support (SupportsSoftDelete)
//   - staleness thresholds (StaleRule)
//   - contained-array fields (ContainedArrayFields)
//   - filter legality (IsValidFilterField, ValidateFilter)
//
// Router builds on these to choose between a base table and a summary view.
package registry

// Package harness runs filter conformance scenarios.
//
// A scenario is a YAML file listing compile steps (resource, operation,
// payload) with the expected target, wire filter and query string, plus
// assertions across steps. Each scenario runs against a fresh compiler
// with a frozen clock, so stale thresholds and content hashes are
// reproducible and the full output can be compared against golden files.
//
//	name: contacts_search
//	description: free-text search routes to the summary view
//	steps:
//	  - name: search
//	    resource: contacts
//	    operation: list
//	    payload: {q: "Smith"}
//	    expect:
//	      target: contacts_summary
//	assertions:
//	  - type: wire_absent
//	    step: search
//	    keys: [q]
package harness

// Package canonical produces RFC 8785 canonical JSON and content hashes
// for sync instruction sets and compiled filters.
//
// Canonical form is what the sync journal stores and hashes: two payloads
// that differ only in key order, HTML escaping, Unicode normalization or
// number spelling (2 vs 2.0) produce identical bytes.
//
// Key constraints:
//   - object keys sorted by UTF-16 code units, not UTF-8 bytes
//   - strings NFC-normalized, no HTML escaping
//   - numbers in ECMAScript shortest form; NaN and Inf are rejected
package canonical

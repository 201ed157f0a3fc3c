package postgrest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is a single row as returned by PostgREST.
type Record map[string]any

// Envelope is the {data: …} wrapper some procedures return around their
// result.
type Envelope struct {
	Data json.RawMessage `json:"data"`
}

// DecodeRecord decodes a procedure result into a flat record.
//
// The result may be the record itself or an Envelope holding it. An
// object is treated as an Envelope only when "data" is its single key and
// holds an object, so a record with a data column is left alone. A JSON
// null yields a nil record.
func DecodeRecord(raw json.RawMessage) (Record, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if data, ok := fields["data"]; ok && len(fields) == 1 {
		data = bytes.TrimSpace(data)
		if len(data) > 0 && data[0] == '{' {
			raw = data
		}
	}

	var rec Record
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// DecodeRecords decodes a list response. A single object is returned as a
// one-element list.
func DecodeRecords(raw json.RawMessage) ([]Record, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []Record{}, nil
	}
	if raw[0] == '{' {
		rec, err := DecodeRecord(raw)
		if err != nil {
			return nil, err
		}
		return []Record{rec}, nil
	}

	var recs []Record
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&recs); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return recs, nil
}

// NormalizeArrayFields coerces the named fields of rec to arrays:
// nil becomes [], an object becomes [object], other scalars become [].
// Absent fields stay absent.
func NormalizeArrayFields(rec Record, fields []string) Record {
	if rec == nil {
		return nil
	}
	for _, f := range fields {
		v, ok := rec[f]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case []any:
		case nil:
			rec[f] = []any{}
		case map[string]any:
			rec[f] = []any{val}
		default:
			rec[f] = []any{}
		}
	}
	return rec
}

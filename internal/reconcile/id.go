package reconcile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ID identifies a collection item. Stores hand out numeric ids, but forms
// often send them back as strings; two ids are equal when their string
// forms are equal.
//
// The zero ID means "no id".
type ID struct {
	value   string
	numeric bool
}

// StringID returns an ID with a string form.
func StringID(s string) ID {
	return ID{value: s}
}

// IntID returns a numeric ID.
func IntID(n int64) ID {
	return ID{value: strconv.FormatInt(n, 10), numeric: true}
}

// NewID converts a decoded JSON value to an ID. Integral floats are
// written without a fraction so that 5 and 5.0 name the same item.
func NewID(v any) (ID, error) {
	switch val := v.(type) {
	case nil:
		return ID{}, nil
	case ID:
		return val, nil
	case string:
		return StringID(val), nil
	case int:
		return IntID(int64(val)), nil
	case int32:
		return IntID(int64(val)), nil
	case int64:
		return IntID(val), nil
	case uint:
		return ID{value: strconv.FormatUint(uint64(val), 10), numeric: true}, nil
	case uint64:
		return ID{value: strconv.FormatUint(val, 10), numeric: true}, nil
	case float64:
		return floatID(val), nil
	case json.Number:
		return numberID(val), nil
	default:
		return ID{}, fmt.Errorf("unsupported id type %T", v)
	}
}

func floatID(f float64) ID {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return IntID(int64(f))
	}
	return ID{value: strconv.FormatFloat(f, 'g', -1, 64), numeric: true}
}

func numberID(n json.Number) ID {
	if i, err := n.Int64(); err == nil {
		return IntID(i)
	}
	if f, err := n.Float64(); err == nil {
		return floatID(f)
	}
	return ID{value: n.String(), numeric: true}
}

// String returns the string form of the id; "" for the zero ID.
func (id ID) String() string {
	return id.value
}

// IsZero reports whether the id is absent.
func (id ID) IsZero() bool {
	return id.value == ""
}

// Equal compares ids by string form.
func (id ID) Equal(other ID) bool {
	return id.value == other.value
}

// MarshalJSON writes numeric ids as numbers and others as strings.
// The zero ID is null.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON accepts a number, a string or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ID{}
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("id: %w", err)
		}
		*id = StringID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a number or a string: %s", data)
	}
	*id = numberID(n)
	return nil
}

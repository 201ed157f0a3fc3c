package reconcile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Wire names of the compared fields.
const (
	FieldID        = "id"
	FieldReference = "product_id_reference"
	FieldQuantity  = "quantity"
	FieldUnitPrice = "unit_price"
	FieldNotes     = "notes"
)

// Product is one item of a nested collection. Quantity, UnitPrice and
// Notes are nil when absent or null. Fields the diff does not compare
// (display name, computed price, ...) are kept in Extra and survive a
// JSON round trip.
type Product struct {
	ID        ID
	Reference ID
	Quantity  *float64
	UnitPrice *float64
	Notes     *string
	Extra     map[string]any
}

// ProductsAreDifferent reports whether two items differ in content:
//   - reference, compared by string form
//   - quantity and unit price, absent counting as 0
//   - notes, absent counting as "" and surrounding whitespace ignored
//
// No other field is compared.
func ProductsAreDifferent(a, b Product) bool {
	if !a.Reference.Equal(b.Reference) {
		return true
	}
	if numberOrZero(a.Quantity) != numberOrZero(b.Quantity) {
		return true
	}
	if numberOrZero(a.UnitPrice) != numberOrZero(b.UnitPrice) {
		return true
	}
	return notesOf(a) != notesOf(b)
}

func numberOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func notesOf(p Product) string {
	if p.Notes == nil {
		return ""
	}
	return strings.TrimSpace(*p.Notes)
}

// MarshalJSON writes the known fields over Extra. Absent fields are
// omitted.
func (p Product) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(p.Extra)+5)
	for k, v := range p.Extra {
		m[k] = v
	}
	if !p.ID.IsZero() {
		m[FieldID] = p.ID
	}
	if !p.Reference.IsZero() {
		m[FieldReference] = p.Reference
	}
	if p.Quantity != nil {
		m[FieldQuantity] = *p.Quantity
	}
	if p.UnitPrice != nil {
		m[FieldUnitPrice] = *p.UnitPrice
	}
	if p.Notes != nil {
		m[FieldNotes] = *p.Notes
	}
	return json.Marshal(m)
}

// UnmarshalJSON reads a product object. Numbers may be sent as numeric
// strings; unknown keys go to Extra.
func (p *Product) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return fmt.Errorf("product: %w", err)
	}
	out, err := ProductFromMap(m)
	if err != nil {
		return err
	}
	*p = out
	return nil
}

// ProductFromMap converts a decoded record into a Product.
func ProductFromMap(m map[string]any) (Product, error) {
	var p Product
	var err error
	for k, v := range m {
		switch k {
		case FieldID:
			p.ID, err = NewID(v)
		case FieldReference:
			p.Reference, err = NewID(v)
		case FieldQuantity:
			p.Quantity, err = toNumber(v)
		case FieldUnitPrice:
			p.UnitPrice, err = toNumber(v)
		case FieldNotes:
			p.Notes, err = toNotes(v)
		default:
			if p.Extra == nil {
				p.Extra = make(map[string]any)
			}
			p.Extra[k] = v
		}
		if err != nil {
			return Product{}, fmt.Errorf("product field %q: %w", k, err)
		}
	}
	return p, nil
}

// ProductsFromRecords converts decoded records; a nil slice stays nil.
func ProductsFromRecords(records []map[string]any) ([]Product, error) {
	if records == nil {
		return nil, nil
	}
	out := make([]Product, len(records))
	for i, rec := range records {
		p, err := ProductFromMap(rec)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

func toNumber(v any) (*float64, error) {
	var f float64
	switch val := v.(type) {
	case nil:
		return nil, nil
	case float64:
		f = val
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case json.Number:
		n, err := val.Float64()
		if err != nil {
			return nil, err
		}
		f = n
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", val)
		}
		f = n
	default:
		return nil, fmt.Errorf("unsupported number type %T", v)
	}
	return &f, nil
}

func toNotes(v any) (*string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return &val, nil
	default:
		return nil, fmt.Errorf("unsupported notes type %T", v)
	}
}

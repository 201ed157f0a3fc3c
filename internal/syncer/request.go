package syncer

import (
	"fmt"

	"github.com/roach88/restbridge/internal/reconcile"
	"github.com/roach88/restbridge/internal/registry"
)

// Request is one sync of a parent record's nested collection.
type Request struct {
	Resource   string
	RecordID   string
	Collection registry.Collection

	// Data is the edited parent record. The collection fields are removed
	// before it is sent.
	Data map[string]any

	Edited []reconcile.Product

	// Persisted is the collection as last fetched. nil means it was not
	// fetched; an empty slice means the parent had no items.
	Persisted []reconcile.Product
}

// NewRequest builds a Request from an edited record and the record as
// previously fetched. The edited items are read from coll.Field in data
// and the persisted ones from coll.Previous in previous.
func NewRequest(resource string, coll registry.Collection, data, previous map[string]any) (Request, error) {
	edited, err := productsAt(data, coll.Field)
	if err != nil {
		return Request{}, fmt.Errorf("edited %s: %w", coll.Field, err)
	}
	persisted, err := productsAt(previous, coll.Previous)
	if err != nil {
		return Request{}, fmt.Errorf("persisted %s: %w", coll.Previous, err)
	}

	var recordID string
	if id, err := reconcile.NewID(data["id"]); err == nil {
		recordID = id.String()
	}
	if recordID == "" {
		if id, err := reconcile.NewID(previous["id"]); err == nil {
			recordID = id.String()
		}
	}

	return Request{
		Resource:   resource,
		RecordID:   recordID,
		Collection: coll,
		Data:       data,
		Edited:     edited,
		Persisted:  persisted,
	}, nil
}

// productsAt reads a list of item records. A missing or null key yields
// nil.
func productsAt(m map[string]any, key string) ([]reconcile.Product, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}

	var records []map[string]any
	switch val := v.(type) {
	case []any:
		records = make([]map[string]any, len(val))
		for i, e := range val {
			rec, ok := e.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("item %d: expected object, got %T", i, e)
			}
			records[i] = rec
		}
	case []map[string]any:
		records = val
	case []reconcile.Product:
		return val, nil
	default:
		return nil, fmt.Errorf("expected list, got %T", v)
	}
	return reconcile.ProductsFromRecords(records)
}

// parentData returns a copy of the edited record without the collection
// fields.
func (r Request) parentData() map[string]any {
	out := make(map[string]any, len(r.Data))
	for k, v := range r.Data {
		if k == r.Collection.Field || k == r.Collection.Previous {
			continue
		}
		out[k] = v
	}
	return out
}

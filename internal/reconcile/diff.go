package reconcile

// Diff is the instruction set for an atomic collection sync.
type Diff struct {
	Creates []Product `json:"creates"`
	Updates []Product `json:"updates"`
	Deletes []ID      `json:"deletes"`
}

// Empty reports whether the diff carries no instruction.
func (d Diff) Empty() bool {
	return len(d.Creates) == 0 && len(d.Updates) == 0 && len(d.Deletes) == 0
}

// Len returns the total number of instructions.
func (d Diff) Len() int {
	return len(d.Creates) + len(d.Updates) + len(d.Deletes)
}

// DiffProducts computes the instructions turning persisted into edited.
//
// An edited item without an id, or with an id not in persisted, is a
// create. An edited item with a persisted id is an update only when
// ProductsAreDifferent. Persisted ids no edited item claims are deletes,
// in persisted order. When several edited items carry the same persisted
// id the first one claims it and the rest are created without an id.
//
// The returned slices are never nil.
func DiffProducts(persisted, edited []Product) Diff {
	d := Diff{
		Creates: []Product{},
		Updates: []Product{},
		Deletes: []ID{},
	}

	byID := make(map[string]Product, len(persisted))
	for _, p := range persisted {
		if p.ID.IsZero() {
			continue
		}
		if _, dup := byID[p.ID.String()]; !dup {
			byID[p.ID.String()] = p
		}
	}
	claimed := make(map[string]bool, len(edited))

	for _, e := range edited {
		if e.ID.IsZero() {
			d.Creates = append(d.Creates, e)
			continue
		}
		key := e.ID.String()
		prev, ok := byID[key]
		if !ok {
			d.Creates = append(d.Creates, e)
			continue
		}
		if claimed[key] {
			e.ID = ID{}
			d.Creates = append(d.Creates, e)
			continue
		}
		claimed[key] = true
		if ProductsAreDifferent(prev, e) {
			d.Updates = append(d.Updates, e)
		}
	}

	seen := make(map[string]bool, len(persisted))
	for _, p := range persisted {
		key := p.ID.String()
		if p.ID.IsZero() || claimed[key] || seen[key] {
			continue
		}
		seen[key] = true
		d.Deletes = append(d.Deletes, p.ID)
	}
	return d
}

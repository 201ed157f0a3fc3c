package compiler

import (
	"strings"

	"github.com/roach88/restbridge/internal/filterir"
	"github.com/roach88/restbridge/internal/postgrest"
)

// applySearch handles the free-text key and the soft-delete condition.
//
// A non-blank term on a resource with searchable columns becomes an
// ILIKE OR-group; on a resource without them the term is dropped. A blank
// term is left in place untouched. In every case the soft-delete
// condition is added when softDelete is set.
func (c *Compiler) applySearch(w *work, resource string, softDelete bool) {
	raw, present := w.take(KeySearch)
	term, blank := searchTerm(raw)

	switch {
	case !present:
	case blank:
		w.filter.Add(filterir.Passthrough{Key: KeySearch, Value: raw})
	default:
		columns := c.reg.SearchableFields(resource)
		if len(columns) == 0 {
			c.logger.Debug("search term dropped; resource has no searchable columns", "resource", resource)
			break
		}
		w.filter.Add(searchCondition(columns, term))
	}

	if softDelete {
		w.addSoftDelete()
	}
}

// searchTerm returns the trimmed term and whether it is blank.
func searchTerm(raw any) (string, bool) {
	if raw == nil {
		return "", true
	}
	term := strings.TrimSpace(postgrest.Stringify(raw))
	return term, term == ""
}

// searchCondition builds "(col.ilike.*term*,...)". LIKE metacharacters in
// the term are escaped first; the whole pattern is then quoted when it
// contains a reserved character.
func searchCondition(columns []string, term string) filterir.AnyOf {
	pattern := postgrest.Quote("*" + postgrest.EscapeLike(term) + "*")
	terms := make([]filterir.Term, len(columns))
	for i, col := range columns {
		terms[i] = filterir.Term{Field: col, Operator: filterir.OpIlike, Value: pattern, Verbatim: true}
	}
	return filterir.AnyOf{Terms: terms}
}

// ApplyFullTextSearch returns a function applying only the search stage
// over the given columns. Without a search term the payload passes
// through unchanged. softDelete requests the deleted_at condition, which
// the payload's includeDeleted flag still suppresses.
func (c *Compiler) ApplyFullTextSearch(columns []string, softDelete bool) func(Payload) (postgrest.Wire, error) {
	return func(p Payload) (postgrest.Wire, error) {
		w := newWork(p)
		raw, present := w.rest[KeySearch]
		term, blank := searchTerm(raw)
		if !present || blank {
			w.passRest()
			return c.enc.Encode(w.filter)
		}

		delete(w.rest, KeySearch)
		includeDeleted := w.takeIncludeDeleted()
		w.passRest()
		if len(columns) > 0 {
			w.filter.Add(searchCondition(columns, term))
		}
		if softDelete && !includeDeleted {
			w.addSoftDelete()
		}
		return c.enc.Encode(w.filter)
	}
}

package compiler

import (
	"github.com/roach88/restbridge/internal/filterir"
	"github.com/roach88/restbridge/internal/postgrest"
)

// staleDateLayout is the date format compared against the activity column.
const staleDateLayout = "2006-01-02"

// expandStale rewrites the stale pseudo-field for resources with a
// staleness rule. The key is always consumed on such resources; it
// expands only when set to true.
//
// The threshold is the minimum across all per-state thresholds. This
// over-selects: rows in states with longer thresholds may be returned
// although not yet stale, and callers refine the page client-side.
func (c *Compiler) expandStale(w *work, resource string) {
	rule, ok := c.reg.StaleRule(resource)
	if !ok {
		return
	}
	v, present := w.take(KeyStale)
	if !present || !truthy(v) {
		return
	}

	closed := make([]any, len(rule.Closed))
	for i, s := range rule.Closed {
		closed[i] = s
	}
	if len(closed) > 0 {
		w.filter.Add(filterir.List{Field: rule.Field, Operator: filterir.OpNotIn, Values: closed})
	}

	days, ok := rule.MinThreshold()
	if !ok {
		c.logger.Warn("stale filter without thresholds; only closed states excluded", "resource", resource)
		return
	}
	threshold := c.now().UTC().AddDate(0, 0, -days).Format(staleDateLayout)
	w.filter.Add(filterir.AnyOf{Terms: []filterir.Term{
		{Field: rule.Activity, Operator: filterir.OpLt, Value: threshold},
		{Field: rule.Activity, Operator: filterir.OpIs, Value: nil},
	}})

	c.logger.Debug("stale filter expanded", "resource", resource, "threshold", threshold, "days", days)
}

// TransformStaleFilter applies only the stale stage to p. Every other key
// passes through unchanged.
func (c *Compiler) TransformStaleFilter(p Payload, resource string) (postgrest.Wire, error) {
	w := newWork(p)
	c.expandStale(w, resource)
	w.passRest()
	return c.enc.Encode(w.filter)
}

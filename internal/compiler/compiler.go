package compiler

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/restbridge/internal/filterir"
	"github.com/roach88/restbridge/internal/postgrest"
	"github.com/roach88/restbridge/internal/registry"
)

// Reserved payload keys.
const (
	KeySearch         = "q"
	KeyIncludeDeleted = "includeDeleted"
	KeyStale          = "stale"
	KeyOr             = "$or"
	KeyAnd            = "$and"
	KeyNot            = "$not"

	// SoftDeleteField is the column marking soft-deleted rows.
	SoftDeleteField = "deleted_at"
)

// Payload is a filter as sent by the UI.
type Payload map[string]any

// Observer is notified of every successful compilation.
type Observer interface {
	ObserveCompilation(resource, target string)
}

// Options configures a Compiler.
type Options struct {
	Router  *registry.Router
	Encoder *postgrest.Encoder

	// Now returns the current time; the stale threshold date is derived
	// from it. Defaults to time.Now.
	Now func() time.Time

	Logger   *slog.Logger
	Observer Observer
}

// Compiler compiles filter payloads for one registry.
// A Compiler is safe for concurrent use.
type Compiler struct {
	router   *registry.Router
	reg      *registry.Registry
	enc      *postgrest.Encoder
	now      func() time.Time
	logger   *slog.Logger
	observer Observer
}

// New creates a Compiler. A nil Router uses the embedded registry; a nil
// Encoder gets a private escape cache.
func New(opts Options) *Compiler {
	if opts.Router == nil {
		opts.Router = registry.NewRouter(registry.Default())
	}
	if opts.Encoder == nil {
		opts.Encoder = postgrest.NewEncoder(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Compiler{
		router:   opts.Router,
		reg:      opts.Router.Registry(),
		enc:      opts.Encoder,
		now:      opts.Now,
		logger:   opts.Logger,
		observer: opts.Observer,
	}
}

// Encoder returns the wire encoder.
func (c *Compiler) Encoder() *postgrest.Encoder {
	return c.enc
}

// Router returns the resource router.
func (c *Compiler) Router() *registry.Router {
	return c.router
}

// Result is a compiled filter.
type Result struct {
	Resource  string
	Operation registry.Operation

	// Target is the table or view the request must be sent to.
	Target string

	Filter filterir.Filter
	Wire   postgrest.Wire
}

// Compile compiles p for an operation on resource.
//
// The error return is reserved for internal faults (an IR the encoder
// rejects); well-formed and malformed payloads alike compile.
func (c *Compiler) Compile(resource string, op registry.Operation, p Payload) (*Result, error) {
	w := newWork(p)
	includeDeleted := w.takeIncludeDeleted()
	softDelete := c.router.NeedsSoftDelete(resource, op, includeDeleted)

	c.expandStale(w, resource)
	c.expandLogical(w)
	c.transformArrays(w)
	c.applySearch(w, resource, softDelete)

	wire, err := c.enc.Encode(w.filter)
	if err != nil {
		return nil, fmt.Errorf("compile %s filter: %w", resource, err)
	}

	target := c.router.DatabaseResource(resource, op)
	c.logger.Debug("filter compiled",
		"resource", resource,
		"operation", string(op),
		"target", target,
		"conditions", w.filter.Len(),
		"fields", w.filter.Fields(),
		"soft_delete", softDelete,
	)
	if c.observer != nil {
		c.observer.ObserveCompilation(resource, target)
	}

	return &Result{
		Resource:  resource,
		Operation: op,
		Target:    target,
		Filter:    w.filter,
		Wire:      wire,
	}, nil
}

// work is the mutable state threaded through the stages: the payload keys
// not yet consumed, and the conditions produced so far.
type work struct {
	rest   Payload
	filter filterir.Filter
}

func newWork(p Payload) *work {
	rest := make(Payload, len(p))
	for k, v := range p {
		rest[k] = v
	}
	return &work{rest: rest}
}

// take removes and returns a key.
func (w *work) take(key string) (any, bool) {
	v, ok := w.rest[key]
	if ok {
		delete(w.rest, key)
	}
	return v, ok
}

// takeIncludeDeleted removes the control key and reports whether it is set.
func (w *work) takeIncludeDeleted() bool {
	v, _ := w.take(KeyIncludeDeleted)
	return truthy(v)
}

// sortedKeys returns the unconsumed keys in sorted order, so that
// conditions are appended deterministically.
func (w *work) sortedKeys() []string {
	keys := make([]string, 0, len(w.rest))
	for k := range w.rest {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// passRest carries every unconsumed key through unchanged.
func (w *work) passRest() {
	for _, k := range w.sortedKeys() {
		w.filter.Add(filterir.Passthrough{Key: k, Value: w.rest[k]})
		delete(w.rest, k)
	}
}

// hasCondition reports whether a Compare on field with op was produced.
func (w *work) hasCondition(field string, op filterir.Operator) bool {
	for _, cond := range w.filter.Conditions {
		if cmp, ok := cond.(filterir.Compare); ok && cmp.Field == field && cmp.Operator == op {
			return true
		}
	}
	return false
}

// addSoftDelete appends deleted_at@is null unless the payload already
// constrains it.
func (w *work) addSoftDelete() {
	if w.hasCondition(SoftDeleteField, filterir.OpIs) {
		return
	}
	w.filter.Add(filterir.Compare{Field: SoftDeleteField, Operator: filterir.OpIs, Value: nil})
}

// truthy interprets a flag sent as a bool or a string.
func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val == "true"
	default:
		return false
	}
}

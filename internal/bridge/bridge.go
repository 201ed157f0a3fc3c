package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/restbridge/internal/cache"
	"github.com/roach88/restbridge/internal/compiler"
	"github.com/roach88/restbridge/internal/postgrest"
	"github.com/roach88/restbridge/internal/reconcile"
	"github.com/roach88/restbridge/internal/registry"
	"github.com/roach88/restbridge/internal/rest"
	"github.com/roach88/restbridge/internal/syncer"
)

// Store reads and writes rows of a table or view. Implemented by
// *rest.Client.
type Store interface {
	List(ctx context.Context, target string, q rest.ListQuery) (*rest.ListResult, error)
	Get(ctx context.Context, target string, id any) (postgrest.Record, error)
	Insert(ctx context.Context, target string, data map[string]any) (postgrest.Record, error)
	Update(ctx context.Context, target string, id any, data map[string]any) (postgrest.Record, error)
	Delete(ctx context.Context, target string, id any) (postgrest.Record, error)
}

// Syncer applies a nested collection edit. Implemented by
// *syncer.Syncer.
type Syncer interface {
	Sync(ctx context.Context, req syncer.Request) (*syncer.Result, error)
}

// FieldDeletedAt is stamped by soft deletes.
const FieldDeletedAt = "deleted_at"

// Options configures a Bridge.
type Options struct {
	Compiler *compiler.Compiler
	Store    Store

	// Syncer handles collection writes. Without one, payloads carrying a
	// non-empty collection are rejected.
	Syncer Syncer

	// Records caches single-record reads. Nil disables caching.
	Records *cache.Cache[postgrest.Record]

	// StrictFilters rejects payloads with unknown filter keys instead of
	// dropping them.
	StrictFilters bool

	Now    func() time.Time
	Logger *slog.Logger
}

// Bridge serves data-provider operations.
// A Bridge is safe for concurrent use.
type Bridge struct {
	comp    *compiler.Compiler
	reg     *registry.Registry
	router  *registry.Router
	store   Store
	syncer  Syncer
	records *cache.Cache[postgrest.Record]
	strict  bool
	now     func() time.Time
	logger  *slog.Logger
}

// New creates a Bridge.
func New(opts Options) (*Bridge, error) {
	if opts.Store == nil {
		return nil, errors.New("bridge: store is required")
	}
	if opts.Compiler == nil {
		opts.Compiler = compiler.New(compiler.Options{Now: opts.Now, Logger: opts.Logger})
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	router := opts.Compiler.Router()
	return &Bridge{
		comp:    opts.Compiler,
		reg:     router.Registry(),
		router:  router,
		store:   opts.Store,
		syncer:  opts.Syncer,
		records: opts.Records,
		strict:  opts.StrictFilters,
		now:     opts.Now,
		logger:  opts.Logger,
	}, nil
}

// ListParams selects a page of records.
type ListParams struct {
	Filter map[string]any
	Sort   []rest.Sort

	// Page is 1-based. PerPage zero disables paging.
	Page    int
	PerPage int
}

// ReferenceParams selects the records of a resource that reference one
// parent record through Target.
type ReferenceParams struct {
	ListParams
	Target string
	ID     any
}

// ListResult is one page of normalized records.
type ListResult struct {
	Data  []postgrest.Record
	Total int
}

// GetList returns a page of records of resource. List requests on a
// resource with a summary view read the view.
func (b *Bridge) GetList(ctx context.Context, resource string, p ListParams) (*ListResult, error) {
	return b.list(ctx, resource, registry.OpList, p.Filter, p)
}

// GetManyReference returns records of resource whose Target field equals
// ID. It always reads the base table.
func (b *Bridge) GetManyReference(ctx context.Context, resource string, p ReferenceParams) (*ListResult, error) {
	if p.Target == "" {
		return nil, fmt.Errorf("get %s references: empty target field", resource)
	}
	filter := make(map[string]any, len(p.Filter)+1)
	for k, v := range p.Filter {
		filter[k] = v
	}
	filter[p.Target] = p.ID
	return b.list(ctx, resource, registry.OpManyReference, filter, p.ListParams)
}

func (b *Bridge) list(ctx context.Context, resource string, op registry.Operation, filter map[string]any, p ListParams) (*ListResult, error) {
	clean, err := b.validateFilter(resource, filter)
	if err != nil {
		return nil, err
	}

	res, err := b.comp.Compile(resource, op, clean)
	if err != nil {
		return nil, err
	}

	q := rest.ListQuery{Wire: res.Wire, Sort: p.Sort, Count: true}
	if p.PerPage > 0 {
		page := max(p.Page, 1)
		q.Offset = (page - 1) * p.PerPage
		q.Limit = p.PerPage
	}

	out, err := b.store.List(ctx, res.Target, q)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", resource, err)
	}

	fields := b.reg.ContainedArrayFields()
	for _, rec := range out.Records {
		postgrest.NormalizeArrayFields(rec, fields)
	}
	total := out.Total
	if total < 0 {
		total = len(out.Records)
	}
	return &ListResult{Data: out.Records, Total: total}, nil
}

// validateFilter checks filter keys against the registry. Unknown keys
// are dropped with a warning, or rejected in strict mode.
func (b *Bridge) validateFilter(resource string, filter map[string]any) (compiler.Payload, error) {
	err := b.reg.ValidateFilter(resource, filter)
	if err == nil {
		return compiler.Payload(filter), nil
	}

	var fe *registry.FilterError
	if !errors.As(err, &fe) || b.strict {
		return nil, fmt.Errorf("filter %s: %w", resource, err)
	}

	b.logger.Warn("dropping invalid filter fields", "resource", resource, "fields", fe.Keys)
	clean := make(compiler.Payload, len(filter))
	for k, v := range filter {
		clean[k] = v
	}
	for _, k := range fe.Keys {
		delete(clean, k)
	}
	return clean, nil
}

// GetOne returns one record of resource from its base table.
func (b *Bridge) GetOne(ctx context.Context, resource string, id any) (postgrest.Record, error) {
	target := b.router.DatabaseResource(resource, registry.OpOne)
	key := recordKey(target, id)

	if b.records != nil {
		if rec, ok := b.records.Get(key); ok {
			return cloneRecord(rec), nil
		}
	}

	rec, err := b.store.Get(ctx, target, id)
	if err != nil {
		return nil, fmt.Errorf("get %s %v: %w", resource, id, err)
	}
	postgrest.NormalizeArrayFields(rec, b.reg.ContainedArrayFields())

	if b.records != nil {
		b.records.Set(key, cloneRecord(rec))
	}
	return rec, nil
}

// Create inserts a record. A non-empty collection in data is created
// together with the record by the sync procedure.
func (b *Bridge) Create(ctx context.Context, resource string, data map[string]any) (postgrest.Record, error) {
	target := b.router.DatabaseResource(resource, registry.OpCreate)

	if coll, ok := b.collectionWrite(resource, data); ok {
		// A new record has no persisted items.
		rec, err := b.sync(ctx, resource, coll, data, map[string]any{coll.Previous: []any{}})
		if err != nil {
			return nil, err
		}
		b.forget(target, rec["id"])
		return rec, nil
	}

	rec, err := b.store.Insert(ctx, target, b.plainData(resource, data))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", resource, err)
	}
	return rec, nil
}

// Update writes data over the record id. previous is the record as last
// read; it supplies the persisted collection items a collection write is
// diffed against.
func (b *Bridge) Update(ctx context.Context, resource string, id any, data, previous map[string]any) (postgrest.Record, error) {
	target := b.router.DatabaseResource(resource, registry.OpUpdate)
	defer b.forget(target, id)

	if coll, ok := b.collectionWrite(resource, data); ok {
		withID := make(map[string]any, len(data)+1)
		for k, v := range data {
			withID[k] = v
		}
		withID["id"] = id
		return b.sync(ctx, resource, coll, withID, previous)
	}

	rec, err := b.store.Update(ctx, target, id, b.plainData(resource, data))
	if err != nil {
		return nil, fmt.Errorf("update %s %v: %w", resource, id, err)
	}
	return rec, nil
}

// Delete removes the record id. Soft-delete resources are stamped with
// deleted_at instead.
func (b *Bridge) Delete(ctx context.Context, resource string, id any) (postgrest.Record, error) {
	target := b.router.DatabaseResource(resource, registry.OpDelete)
	defer b.forget(target, id)

	if b.router.SupportsSoftDelete(resource) {
		stamp := b.now().UTC().Format(time.RFC3339Nano)
		rec, err := b.store.Update(ctx, target, id, map[string]any{FieldDeletedAt: stamp})
		if err != nil {
			return nil, fmt.Errorf("soft delete %s %v: %w", resource, id, err)
		}
		return rec, nil
	}

	rec, err := b.store.Delete(ctx, target, id)
	if err != nil {
		return nil, fmt.Errorf("delete %s %v: %w", resource, id, err)
	}
	return rec, nil
}

// ResetSession clears the escape cache and the record cache.
func (b *Bridge) ResetSession() {
	if c := b.comp.Encoder().Escaper().Cache(); c != nil {
		c.Clear()
	}
	if b.records != nil {
		b.records.Clear()
	}
	b.logger.Debug("session caches cleared")
}

// collectionWrite reports whether data carries a non-empty collection
// for a resource that declares one.
func (b *Bridge) collectionWrite(resource string, data map[string]any) (registry.Collection, bool) {
	coll, ok := b.reg.Collection(resource)
	if !ok {
		return registry.Collection{}, false
	}
	switch items := data[coll.Field].(type) {
	case []any:
		return coll, len(items) > 0
	case []map[string]any:
		return coll, len(items) > 0
	case []reconcile.Product:
		return coll, len(items) > 0
	default:
		return coll, false
	}
}

func (b *Bridge) sync(ctx context.Context, resource string, coll registry.Collection, data, previous map[string]any) (postgrest.Record, error) {
	if b.syncer == nil {
		return nil, fmt.Errorf("write %s: %s given but no syncer configured", resource, coll.Field)
	}
	req, err := syncer.NewRequest(resource, coll, data, previous)
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", resource, err)
	}
	res, err := b.syncer.Sync(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.Record, nil
}

// plainData strips collection fields from data.
func (b *Bridge) plainData(resource string, data map[string]any) map[string]any {
	coll, ok := b.reg.Collection(resource)
	if !ok {
		return data
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if k == coll.Field || k == coll.Previous {
			continue
		}
		out[k] = v
	}
	return out
}

func (b *Bridge) forget(target string, id any) {
	if b.records != nil && id != nil {
		b.records.Delete(recordKey(target, id))
	}
}

func recordKey(target string, id any) string {
	return target + "/" + postgrest.Stringify(id)
}

// cloneRecord copies the top level of rec so cached records are not
// mutated through returned values.
func cloneRecord(rec postgrest.Record) postgrest.Record {
	if rec == nil {
		return nil
	}
	out := make(postgrest.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

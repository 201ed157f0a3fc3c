package registry

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaCUE []byte

//go:embed registry.cue
var defaultCUE []byte

// Error codes for registry load failures.
const (
	ErrCodeGeneric     = "E001"
	ErrCodeLoadFailed  = "E004"
	ErrCodeNotFound    = "E005"
	ErrCodeBuildFailed = "E006"
	ErrCodeInvalid     = "E201"
	ErrCodeUnknown     = "E202"
)

// LoadError represents an error that occurred while loading a registry.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// StaleRule configures the "stale" virtual filter of a resource.
type StaleRule struct {
	Field      string         `json:"field"`
	Activity   string         `json:"activity"`
	Closed     []string       `json:"closed"`
	Thresholds map[string]int `json:"thresholds"`
}

// MinThreshold returns the smallest per-state threshold in days.
// ok is false when no thresholds are configured.
func (s StaleRule) MinThreshold() (days int, ok bool) {
	for _, d := range s.Thresholds {
		if !ok || d < days {
			days, ok = d, true
		}
	}
	return days, ok
}

// Collection configures a nested collection written through an atomic
// procedure instead of the plain write path.
type Collection struct {
	Field      string `json:"field"`
	Previous   string `json:"previous"`
	Procedure  string `json:"procedure"`
	ParentKey  string `json:"parentKey"`
	CreatesKey string `json:"createsKey"`
	UpdatesKey string `json:"updatesKey"`
	DeletesKey string `json:"deletesKey"`
}

// Resource is one resource definition.
type Resource struct {
	Name       string      `json:"-"`
	Table      string      `json:"table,omitempty"`
	Summary    bool        `json:"summary"`
	SoftDelete bool        `json:"softDelete"`
	Searchable []string    `json:"searchable"`
	Filterable []string    `json:"filterable"`
	Stale      *StaleRule  `json:"stale,omitempty"`
	Collection *Collection `json:"collection,omitempty"`
}

// TableName returns the canonical table name.
func (r Resource) TableName() string {
	if r.Table != "" {
		return r.Table
	}
	return r.Name
}

// Registry is a loaded, validated set of resource definitions.
// A Registry is immutable after Load and safe for concurrent use.
type Registry struct {
	resources            map[string]Resource
	filterable           map[string]map[string]bool
	containedArrayFields []string
	source               string
}

// Default loads the embedded registry. The embedded definitions are
// validated by the package tests, so a failure here is a build defect.
func Default() *Registry {
	r, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("embedded registry: %v", err))
	}
	return r
}

// Load loads a registry. An empty dir loads the embedded definitions;
// otherwise every CUE file of the package in dir replaces them. The data is
// unified with the embedded schema before decoding.
func Load(dir string) (*Registry, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, convertCUEError(ErrCodeBuildFailed, err)
	}

	var data cue.Value
	source := "embedded"
	if dir == "" {
		data = ctx.CompileBytes(defaultCUE, cue.Filename("registry.cue"))
	} else {
		v, err := loadDir(ctx, dir)
		if err != nil {
			return nil, err
		}
		data = v
		source = dir
	}
	if err := data.Err(); err != nil {
		return nil, convertCUEError(ErrCodeBuildFailed, err)
	}

	value := schema.Unify(data)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, convertCUEError(ErrCodeInvalid, err)
	}

	var docs map[string]Resource
	if err := value.LookupPath(cue.ParsePath("resources")).Decode(&docs); err != nil {
		return nil, convertCUEError(ErrCodeInvalid, err)
	}
	var arrayFields []string
	if err := value.LookupPath(cue.ParsePath("containedArrayFields")).Decode(&arrayFields); err != nil {
		return nil, convertCUEError(ErrCodeInvalid, err)
	}

	return build(docs, arrayFields, source)
}

func loadDir(ctx *cue.Context, dir string) (cue.Value, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return cue.Value{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("registry directory not found: %s", dir)}
	}
	if err != nil {
		return cue.Value{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing registry directory: %v", err)}
	}
	if !info.IsDir() {
		return cue.Value{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return cue.Value{}, convertCUEError(ErrCodeBuildFailed, err)
	}
	return value, nil
}

// build checks cross-field rules CUE cannot express and indexes the data.
func build(docs map[string]Resource, arrayFields []string, source string) (*Registry, error) {
	if len(docs) == 0 {
		return nil, &LoadError{Code: ErrCodeInvalid, Message: "registry defines no resources"}
	}

	r := &Registry{
		resources:            make(map[string]Resource, len(docs)),
		filterable:           make(map[string]map[string]bool, len(docs)),
		containedArrayFields: arrayFields,
		source:               source,
	}
	for name, res := range docs {
		res.Name = name
		if !fieldNamePattern.MatchString(strings.ToLower(name)) {
			return nil, &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("resource %q: invalid name", name)}
		}
		for _, col := range res.Searchable {
			if !fieldNamePattern.MatchString(col) {
				return nil, &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("resource %q: invalid searchable column %q", name, col)}
			}
		}
		fields := make(map[string]bool, len(res.Filterable))
		for _, f := range res.Filterable {
			fields[f] = true
		}
		r.resources[name] = res
		r.filterable[name] = fields
	}
	return r, nil
}

// Source describes where the registry was loaded from.
func (r *Registry) Source() string {
	return r.source
}

// Names returns the resource names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.resources))
	for name := range r.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resource returns a resource definition.
func (r *Registry) Resource(name string) (Resource, bool) {
	res, ok := r.resources[name]
	return res, ok
}

// TableName maps a resource to its canonical table name. Unknown resources
// map to themselves.
func (r *Registry) TableName(resource string) string {
	if res, ok := r.resources[resource]; ok {
		return res.TableName()
	}
	return resource
}

// SearchableFields returns the columns searched by a free-text term.
// Resources without search configuration return nil.
func (r *Registry) SearchableFields(resource string) []string {
	return r.resources[resource].Searchable
}

// SupportsSoftDelete reports whether a resource filters on deleted_at.
func (r *Registry) SupportsSoftDelete(resource string) bool {
	return r.resources[resource].SoftDelete
}

// HasSummary reports whether list operations use the summary view.
func (r *Registry) HasSummary(resource string) bool {
	return r.resources[resource].Summary
}

// StaleRule returns the staleness rule for a resource. The summary view of
// a resource shares the rule of its base resource.
func (r *Registry) StaleRule(resource string) (StaleRule, bool) {
	if res, ok := r.resources[resource]; ok && res.Stale != nil {
		return *res.Stale, true
	}
	if base, ok := strings.CutSuffix(resource, SummarySuffix); ok {
		if res, ok := r.resources[base]; ok && res.Stale != nil {
			return *res.Stale, true
		}
	}
	return StaleRule{}, false
}

// Collection returns the nested collection configuration for a resource.
func (r *Registry) Collection(resource string) (Collection, bool) {
	res, ok := r.resources[resource]
	if !ok || res.Collection == nil {
		return Collection{}, false
	}
	return *res.Collection, true
}

// ContainedArrayFields returns the fields stored as arrays and matched by
// containment rather than equality.
func (r *Registry) ContainedArrayFields() []string {
	return r.containedArrayFields
}

// convertCUEError extracts position info from CUE errors.
func convertCUEError(code string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}

	first := errs[0]
	loadErr := &LoadError{Code: code, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		loadErr.Pos = positions[0]
	}
	return loadErr
}

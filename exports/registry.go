// Package exports resolves the callable surface of a ready instance.
//
// A Registry is built once the instance is ready and never changes. It
// checks argument counts before a call reaches the guest and renders export
// signatures for diagnostics.
package exports

import (
	"context"
	"sort"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-host/errors"
	"github.com/wippyai/wasm-host/imports"
)

// Target is what a Registry resolves against. *loader.Instance satisfies it.
type Target interface {
	Ready() bool
	ExportedFunctions() (map[string]api.FunctionDefinition, error)
	Call(ctx context.Context, name string, params ...uint64) ([]uint64, error)
}

// Export describes one exported function.
type Export struct {
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
}

// Signature renders the export's type, e.g. "(i32, i32) -> ()".
func (e Export) Signature() string {
	return imports.Signature(e.Params, e.Results)
}

// Registry is the resolved export table of one instance.
type Registry struct {
	target  Target
	exports map[string]Export
	names   []string
}

// Resolve builds the registry for t. It fails with a NotReady error until
// t is ready.
func Resolve(t Target) (*Registry, error) {
	if !t.Ready() {
		return nil, errors.NotReady("exports")
	}
	defs, err := t.ExportedFunctions()
	if err != nil {
		return nil, err
	}

	r := &Registry{
		target:  t,
		exports: make(map[string]Export, len(defs)),
		names:   make([]string, 0, len(defs)),
	}
	for name, def := range defs {
		r.exports[name] = Export{
			Name:    name,
			Params:  def.ParamTypes(),
			Results: def.ResultTypes(),
		}
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Names returns export names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Has reports whether name is exported.
func (r *Registry) Has(name string) bool {
	_, ok := r.exports[name]
	return ok
}

// Lookup returns the export called name.
func (r *Registry) Lookup(name string) (Export, bool) {
	e, ok := r.exports[name]
	return e, ok
}

// Call invokes name after checking the argument count.
func (r *Registry) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	e, ok := r.exports[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseRuntime, "export", name)
	}
	if len(params) != len(e.Params) {
		return nil, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Resource(name).
			Value(len(params)).
			Detail("export %s takes %d argument(s), got %d", e.Signature(), len(e.Params), len(params)).
			Build()
	}
	return r.target.Call(ctx, name, params...)
}

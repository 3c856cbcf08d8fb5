package imports

import (
	"context"
	"slices"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/wippyai/wasm-host/errors"
)

// WASINamespace is the import module name of WASI preview1.
const WASINamespace = wasi_snapshot_preview1.ModuleName

// Func is a host function the guest may import.
type Func struct {
	Fn        api.GoModuleFunc
	Namespace string
	Name      string
	Params    []api.ValueType
	Results   []api.ValueType
}

// Signature renders the function type, e.g. "(i32) -> i32".
func (f *Func) Signature() string {
	return Signature(f.Params, f.Results)
}

// Signature renders a function type from its value types.
func Signature(params, results []api.ValueType) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(api.ValueTypeName(p))
	}
	b.WriteString(") -> ")
	switch len(results) {
	case 0:
		b.WriteString("()")
	case 1:
		b.WriteString(api.ValueTypeName(results[0]))
	default:
		b.WriteByte('(')
		for i, r := range results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(api.ValueTypeName(r))
		}
		b.WriteByte(')')
	}
	return b.String()
}

type key struct {
	ns   string
	name string
}

// Table maps (namespace, name) to host functions. It is immutable once
// built and may be shared by any number of loads.
type Table struct {
	funcs map[key]*Func
	order []key
	wasi  bool
}

// Empty returns a table with no host functions.
func Empty() *Table {
	return &Table{funcs: make(map[key]*Func)}
}

// Len returns the number of host functions.
func (t *Table) Len() int {
	return len(t.funcs)
}

// WASI reports whether the table provides WASI preview1.
func (t *Table) WASI() bool {
	return t.wasi
}

// Lookup returns the host function for namespace and name.
func (t *Table) Lookup(namespace, name string) (*Func, bool) {
	f, ok := t.funcs[key{namespace, name}]
	return f, ok
}

// Funcs returns the host functions in registration order.
func (t *Table) Funcs() []*Func {
	out := make([]*Func, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, t.funcs[k])
	}
	return out
}

// Namespaces returns the sorted set of namespaces with host functions.
func (t *Table) Namespaces() []string {
	seen := make(map[string]struct{})
	for k := range t.funcs {
		seen[k.ns] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for ns := range seen {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Check verifies that every function import in defs is satisfied by name
// and signature. It returns the "namespace#name" keys of host functions the
// module does not import; those are allowed.
func (t *Table) Check(defs []api.FunctionDefinition) ([]string, error) {
	missing := &errors.MissingImportsError{}
	used := make(map[key]bool, len(defs))

	for _, def := range defs {
		ns, name, ok := def.Import()
		if !ok {
			continue
		}
		if ns == WASINamespace && t.wasi {
			continue
		}
		f, found := t.funcs[key{ns, name}]
		if !found {
			missing.Add(ns, name, "")
			continue
		}
		used[key{ns, name}] = true
		if !slices.Equal(f.Params, def.ParamTypes()) || !slices.Equal(f.Results, def.ResultTypes()) {
			missing.Add(ns, name, "want "+Signature(def.ParamTypes(), def.ResultTypes())+", got "+f.Signature())
		}
	}

	var extras []string
	for _, k := range t.order {
		if !used[k] {
			extras = append(extras, k.ns+"#"+k.name)
		}
	}

	if len(missing.Imports) > 0 {
		return extras, missing
	}
	return extras, nil
}

// Instantiate registers the table's host modules in rt.
func (t *Table) Instantiate(ctx context.Context, rt wazero.Runtime) error {
	if t.wasi {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
			return errors.Registration(errors.PhaseHost, WASINamespace, "*", err)
		}
	}

	byNS := make(map[string][]*Func)
	var nsOrder []string
	for _, k := range t.order {
		if _, ok := byNS[k.ns]; !ok {
			nsOrder = append(nsOrder, k.ns)
		}
		byNS[k.ns] = append(byNS[k.ns], t.funcs[k])
	}

	for _, ns := range nsOrder {
		builder := rt.NewHostModuleBuilder(ns)
		for _, f := range byNS[ns] {
			builder = builder.NewFunctionBuilder().
				WithGoModuleFunction(f.Fn, f.Params, f.Results).
				WithName(f.Name).
				Export(f.Name)
		}
		if _, err := builder.Instantiate(ctx); err != nil {
			return errors.Registration(errors.PhaseHost, ns, "*", err)
		}
	}
	return nil
}

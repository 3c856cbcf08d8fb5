// Package profile binds typed capability interfaces to guest exports.
//
// A Profile is a static list of exports with WIT signatures. Binding parses
// the signatures, lowers them to core wasm types and compares them with what
// the instance actually exports, so a mismatched guest is rejected once at
// bind time instead of misbehaving on the first call.
//
//	caesar, err := profile.BindCaesar(inst)
//	if err != nil {
//		return err
//	}
//	out, err := caesar.Encrypt(ctx, []int32{7, 4, 11}, 3)
package profile

import (
	"context"
	"slices"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-host/errors"
	"github.com/wippyai/wasm-host/exports"
	"github.com/wippyai/wasm-host/imports"
	"github.com/wippyai/wasm-host/memory"
)

// Target is a ready instance a profile can bind to.
type Target interface {
	exports.Target
	Marshaler() (*memory.Marshaler, error)
}

// Func is one export of a profile.
type Func struct {
	Name string
	// WIT is the function type, e.g. "func(values: list<s32>, key: s32)".
	WIT string
}

// Profile is a named set of exports.
type Profile struct {
	Name  string
	Funcs []Func
}

// Bound is a profile checked against a target.
type Bound struct {
	Profile   Profile
	Target    Target
	Registry  *exports.Registry
	Marshaler *memory.Marshaler
	// OutputLimit bounds guest-written text results. 0 means
	// memory.DefaultTextLimit.
	OutputLimit uint32
}

// Bind resolves target's exports and checks each profile function.
func (p Profile) Bind(target Target) (*Bound, error) {
	reg, err := exports.Resolve(target)
	if err != nil {
		return nil, err
	}
	m, err := target.Marshaler()
	if err != nil {
		return nil, err
	}

	for _, f := range p.Funcs {
		params, results, err := Lower(f.WIT)
		if err != nil {
			return nil, err
		}
		e, ok := reg.Lookup(f.Name)
		if !ok {
			return nil, errors.NotFound(errors.PhaseRuntime, p.Name+" export", f.Name)
		}
		if !slices.Equal(params, e.Params) || !slices.Equal(results, e.Results) {
			return nil, errors.TypeMismatch(errors.PhaseRuntime, p.Name+"."+f.Name,
				imports.Signature(params, results), e.Signature())
		}
	}
	return &Bound{Profile: p, Target: target, Registry: reg, Marshaler: m}, nil
}

// Call invokes export name through the registry.
func (b *Bound) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	return b.Registry.Call(ctx, name, params...)
}

// Lower parses a WIT function type and flattens it to core value types.
// Strings and lists lower to (ptr, len); results must flatten to at most
// one value.
func Lower(fn string) ([]api.ValueType, []api.ValueType, error) {
	s := strings.TrimSpace(fn)
	if !strings.HasPrefix(s, "func(") {
		return nil, nil, errors.InvalidData(errors.PhaseParse, fn, "expected func(...)")
	}
	end := matchingParen(s, len("func"))
	if end < 0 {
		return nil, nil, errors.InvalidData(errors.PhaseParse, fn, "unbalanced parentheses")
	}

	var params []api.ValueType
	for _, p := range splitList(s[len("func("):end]) {
		typ := p
		if idx := strings.Index(p, ":"); idx != -1 {
			typ = p[idx+1:]
		}
		t, err := parseType(typ)
		if err != nil {
			return nil, nil, err
		}
		params = append(params, flatten(t)...)
	}

	var results []api.ValueType
	if rest := strings.TrimSpace(s[end+1:]); rest != "" {
		if !strings.HasPrefix(rest, "->") {
			return nil, nil, errors.InvalidData(errors.PhaseParse, fn, "expected -> after parameters")
		}
		t, err := parseType(strings.TrimPrefix(rest, "->"))
		if err != nil {
			return nil, nil, err
		}
		results = flatten(t)
		if len(results) > 1 {
			return nil, nil, errors.InvalidData(errors.PhaseParse, fn, "result flattens to more than one value")
		}
	}
	return params, results, nil
}

func parseType(s string) (wit.Type, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "list<") && strings.HasSuffix(s, ">") {
		elem, err := parseType(s[len("list<") : len(s)-1])
		if err != nil {
			return nil, err
		}
		return &wit.TypeDef{Kind: &wit.List{Type: elem}}, nil
	}
	t, err := wit.ParseType(s)
	if err != nil {
		return nil, errors.ParseFailed("type "+s, err)
	}
	return t, nil
}

func flatten(t wit.Type) []api.ValueType {
	switch t := t.(type) {
	case wit.Bool, wit.S8, wit.U8, wit.S16, wit.U16, wit.S32, wit.U32, wit.Char:
		return []api.ValueType{api.ValueTypeI32}
	case wit.S64, wit.U64:
		return []api.ValueType{api.ValueTypeI64}
	case wit.F32:
		return []api.ValueType{api.ValueTypeF32}
	case wit.F64:
		return []api.ValueType{api.ValueTypeF64}
	case wit.String:
		return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
	case *wit.TypeDef:
		if _, ok := t.Kind.(*wit.List); ok {
			return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
		}
	}
	return []api.ValueType{api.ValueTypeI32}
}

func matchingParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitList splits a parameter list on top-level commas.
func splitList(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(':
			depth++
		case '>', ')':
			depth--
		case ',':
			if depth == 0 {
				if part := strings.TrimSpace(s[start:i]); part != "" {
					out = append(out, part)
				}
				start = i + 1
			}
		}
	}
	if part := strings.TrimSpace(s[start:]); part != "" {
		out = append(out, part)
	}
	return out
}

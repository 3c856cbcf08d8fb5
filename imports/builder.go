package imports

import (
	"context"
	"time"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-host/errors"
)

// Builder collects host functions and freezes them into a Table.
// Registration errors are kept and reported by Build.
type Builder struct {
	table *Table
	err   error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{table: Empty()}
}

// Func registers fn as namespace.name with the given signature.
func (b *Builder) Func(namespace, name string, params, results []api.ValueType, fn api.GoModuleFunc) *Builder {
	if b.err != nil {
		return b
	}
	if namespace == "" {
		b.err = errors.InvalidInput(errors.PhaseHost, "namespace cannot be empty")
		return b
	}
	if name == "" {
		b.err = errors.InvalidInput(errors.PhaseHost, "function name cannot be empty")
		return b
	}
	if fn == nil {
		b.err = errors.Registration(errors.PhaseHost, namespace, name,
			errors.InvalidInput(errors.PhaseHost, "nil handler"))
		return b
	}
	k := key{namespace, name}
	if _, dup := b.table.funcs[k]; dup {
		b.err = errors.Registration(errors.PhaseHost, namespace, name,
			errors.InvalidInput(errors.PhaseHost, "already registered"))
		return b
	}
	b.table.funcs[k] = &Func{
		Namespace: namespace,
		Name:      name,
		Params:    params,
		Results:   results,
		Fn:        fn,
	}
	b.table.order = append(b.table.order, k)
	return b
}

// Clock registers namespace.time(ptr i32) -> i32. It returns the current
// Unix time in seconds and, when ptr is non-zero, also stores it there as
// a little-endian int32.
func (b *Builder) Clock(namespace string, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	fn := api.GoModuleFunc(func(_ context.Context, mod api.Module, stack []uint64) {
		secs := int32(now().Unix())
		if ptr := api.DecodeU32(stack[0]); ptr != 0 {
			if mem := mod.Memory(); mem == nil || !mem.WriteUint32Le(ptr, uint32(secs)) {
				Logger().Warn("time import could not store result",
					zap.Uint32("ptr", ptr))
			}
		}
		stack[0] = api.EncodeI32(secs)
	})
	return b.Func(namespace, "time", []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}, fn)
}

// Deferred registers namespace.name() as a fire-and-forget import. Each call
// queues a completion that invokes the guest export with the params returned
// by produce once the current guest call returns.
func (b *Builder) Deferred(namespace, name, export string, produce func(ctx context.Context) []uint64) *Builder {
	if b.err == nil && export == "" {
		b.err = errors.InvalidInput(errors.PhaseHost, "deferred import needs a completion export")
		return b
	}
	fn := api.GoModuleFunc(func(ctx context.Context, _ api.Module, _ []uint64) {
		q := CompletionsFrom(ctx)
		if q == nil {
			Logger().Warn("deferred import called outside an instance call",
				zap.String("namespace", namespace),
				zap.String("name", name))
			return
		}
		var params []uint64
		if produce != nil {
			params = produce(ctx)
		}
		q.Push(Completion{Export: export, Params: params})
	})
	return b.Func(namespace, name, nil, nil, fn)
}

// WASI makes the table provide WASI preview1 under wasi_snapshot_preview1.
func (b *Builder) WASI() *Builder {
	b.table.wasi = true
	return b
}

// Build freezes the table. The builder must not be reused.
func (b *Builder) Build() (*Table, error) {
	if b.err != nil {
		return nil, b.err
	}
	t := b.table
	b.table = Empty()
	return t, nil
}

// MustBuild is Build that panics on error.
func (b *Builder) MustBuild() *Table {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}

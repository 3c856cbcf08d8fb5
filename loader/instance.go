package loader

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-host/errors"
	"github.com/wippyai/wasm-host/imports"
	"github.com/wippyai/wasm-host/memory"
	"github.com/wippyai/wasm-host/readiness"
)

// maxCompletionRounds bounds completions that keep queueing completions.
const maxCompletionRounds = 64

// Instance is one instantiated module. Its exports, memory and marshaler
// are available once the gate is ready.
//
// Calls are serialized: a region written for one call cannot be overwritten
// by another call until the first returns. Views and regions must still be
// used by one goroutine at a time.
type Instance struct {
	rt          wazero.Runtime
	mod         api.Module
	gate        *readiness.Gate
	marshaler   *memory.Marshaler
	logger      *zap.Logger
	path        string
	epoch       memory.Epoch
	completions imports.Completions
	callMu      sync.Mutex
	mu          sync.RWMutex
	closed      bool
}

func newInstance(path string, gate *readiness.Gate, logger *zap.Logger) *Instance {
	return &Instance{path: path, gate: gate, logger: logger}
}

func (i *Instance) attach(m *module) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		_ = m.rt.Close(context.Background())
		return
	}
	i.rt = m.rt
	i.mod = m.mod
	if mem := m.mod.Memory(); mem != nil {
		i.marshaler = memory.NewMarshaler(mem)
	}
}

// Path returns the located path the instance was loaded from.
func (i *Instance) Path() string {
	return i.path
}

// Gate returns the readiness gate.
func (i *Instance) Gate() *readiness.Gate {
	return i.gate
}

// Ready reports whether the instance finished loading successfully.
func (i *Instance) Ready() bool {
	return i.gate.Ready()
}

// Wait blocks until the instance is ready, failed or ctx is done.
func (i *Instance) Wait(ctx context.Context) error {
	return i.gate.Wait(ctx)
}

func (i *Instance) live(what string) (api.Module, error) {
	if !i.gate.Ready() {
		if err := i.gate.Err(); err != nil {
			return nil, err
		}
		return nil, errors.NotReady(what)
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return nil, errors.NotInitialized(errors.PhaseRuntime, "instance (closed)")
	}
	return i.mod, nil
}

// Module returns the underlying engine module.
func (i *Instance) Module() (api.Module, error) {
	return i.live("module")
}

// Memory returns the guest's linear memory.
func (i *Instance) Memory() (api.Memory, error) {
	mod, err := i.live("memory")
	if err != nil {
		return nil, err
	}
	mem := mod.Memory()
	if mem == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "memory", "memory")
	}
	return mem, nil
}

// Marshaler returns the marshaler bound to the guest's memory.
func (i *Instance) Marshaler() (*memory.Marshaler, error) {
	if _, err := i.Memory(); err != nil {
		return nil, err
	}
	return i.marshaler, nil
}

// View snapshots memory. The view is refused after the next Call or any
// memory growth.
func (i *Instance) View() (*memory.View, error) {
	mem, err := i.Memory()
	if err != nil {
		return nil, err
	}
	return memory.NewView(mem, &i.epoch), nil
}

// ExportedFunctions returns the definitions of every exported function.
func (i *Instance) ExportedFunctions() (map[string]api.FunctionDefinition, error) {
	mod, err := i.live("exports")
	if err != nil {
		return nil, err
	}
	return mod.ExportedFunctionDefinitions(), nil
}

// Call invokes export name. Completions queued by deferred imports run
// after it returns and before Call does.
func (i *Instance) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	mod, err := i.live(name)
	if err != nil {
		return nil, err
	}
	fn := mod.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "export", name)
	}

	i.callMu.Lock()
	defer i.callMu.Unlock()

	callCtx := imports.WithCompletions(ctx, &i.completions)
	i.epoch.Advance()
	results, err := fn.Call(callCtx, params...)
	if err != nil {
		i.completions.Drain()
		return nil, errors.Trap(name, err)
	}

	if err := i.runCompletions(callCtx, mod); err != nil {
		return results, err
	}
	return results, nil
}

func (i *Instance) runCompletions(ctx context.Context, mod api.Module) error {
	var errs []error
	for round := 0; i.completions.Len() > 0; round++ {
		if round == maxCompletionRounds {
			dropped := i.completions.Drain()
			i.logger.Warn("dropping completions that keep rescheduling",
				zap.Int("dropped", len(dropped)))
			break
		}
		for _, c := range i.completions.Drain() {
			fn := mod.ExportedFunction(c.Export)
			if fn == nil {
				errs = append(errs, errors.NotFound(errors.PhaseRuntime, "completion export", c.Export))
				continue
			}
			i.epoch.Advance()
			if _, err := fn.Call(ctx, c.Params...); err != nil {
				errs = append(errs, errors.Trap(c.Export, err))
			}
		}
	}
	return stderrors.Join(errs...)
}

// Close releases the engine runtime. Further use fails.
func (i *Instance) Close(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	if i.rt == nil {
		return nil
	}
	return i.rt.Close(ctx)
}

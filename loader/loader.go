package loader

import (
	"context"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-host/errors"
	"github.com/wippyai/wasm-host/imports"
	"github.com/wippyai/wasm-host/readiness"
	"github.com/wippyai/wasm-host/source"
)

// instantiateDep is the run dependency held while a module instantiates.
const instantiateDep = "wasm-instantiate"

// Init exports called after instantiation, first match wins.
var initExports = []string{"__wasm_call_ctors", "_initialize"}

// Main exports called when WithRunMain is set, first match wins.
var mainExports = []string{"main", "_main"}

// Loader turns module names into ready instances. One Loader may be used
// concurrently; every load gets its own engine runtime and shares only the
// compilation cache.
type Loader struct {
	src              source.Source
	cache            wazero.CompilationCache
	logger           *zap.Logger
	locate           source.LocateFunc
	observer         Observer
	monitors         []readiness.Monitor
	memoryLimitPages uint32
	runMain          bool
}

// New returns a loader fetching images from src.
func New(src source.Source, opts ...Option) *Loader {
	l := &Loader{
		src:    src,
		cache:  wazero.NewCompilationCache(),
		logger: Logger(),
		locate: source.Identity,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Close releases the compilation cache. Instances stay usable.
func (l *Loader) Close(ctx context.Context) error {
	return l.cache.Close(ctx)
}

// Load fetches and instantiates name and waits until it is ready.
func (l *Loader) Load(ctx context.Context, name string, table *imports.Table) (*Instance, error) {
	inst := l.LoadAsync(ctx, name, table)
	if err := inst.Wait(ctx); err != nil {
		_ = inst.Close(context.Background())
		return nil, err
	}
	return inst, nil
}

// LoadAsync starts loading name on a new goroutine and returns at once.
// The instance's gate resolves when instantiation finishes.
func (l *Loader) LoadAsync(ctx context.Context, name string, table *imports.Table) *Instance {
	path := l.locate(name)
	inst, tracker := l.newInstance(path)
	if err := tracker.Add(instantiateDep); err != nil {
		tracker.Fail(err)
		return inst
	}
	tracker.Finalize()

	go l.instantiate(ctx, inst, tracker, path, nil, table)
	return inst
}

// LoadImage instantiates a preloaded image synchronously. The image is
// copied; the caller may reuse it.
func (l *Loader) LoadImage(ctx context.Context, image []byte, table *imports.Table) (*Instance, error) {
	owned := make([]byte, len(image))
	copy(owned, image)

	inst, tracker := l.newInstance("<image>")
	if err := tracker.Add(instantiateDep); err != nil {
		return nil, err
	}
	tracker.Finalize()

	l.instantiate(ctx, inst, tracker, "<image>", owned, table)
	if err := inst.Gate().Err(); err != nil {
		_ = inst.Close(context.Background())
		return nil, err
	}
	return inst, nil
}

func (l *Loader) newInstance(path string) (*Instance, *readiness.Tracker) {
	opts := make([]readiness.Option, 0, len(l.monitors)+1)
	for _, m := range l.monitors {
		opts = append(opts, readiness.WithMonitor(m))
	}
	if l.observer != nil {
		opts = append(opts, readiness.WithMonitor(l.reportDependencies()))
	}
	tracker := readiness.NewTracker(opts...)
	return newInstance(path, tracker.Gate(), l.logger), tracker
}

// reportDependencies returns a per-load monitor that forwards counts to the
// observer together with their delta.
func (l *Loader) reportDependencies() readiness.Monitor {
	var (
		mu   sync.Mutex
		last int
	)
	return func(pending int) {
		mu.Lock()
		delta := pending - last
		last = pending
		mu.Unlock()
		l.observer.Dependencies(pending, delta)
	}
}

// instantiate runs one load to completion and resolves the tracker. The
// run dependency is released before a failure is published.
func (l *Loader) instantiate(ctx context.Context, inst *Instance, tracker *readiness.Tracker, path string, image []byte, table *imports.Table) {
	err := l.run(ctx, inst, path, image, table)
	if cerr := tracker.Complete(instantiateDep, err); cerr != nil {
		l.logger.Error("run dependency bookkeeping", zap.Error(cerr))
	}
}

func (l *Loader) run(ctx context.Context, inst *Instance, path string, image []byte, table *imports.Table) error {
	if table == nil {
		table = imports.Empty()
	}

	start := time.Now()
	log := l.logger.With(zap.String("path", truncatePath(path)))

	if image == nil {
		if streamer, ok := l.src.(source.Streamer); ok && source.IsRemote(path) {
			mod, err := l.instantiateStreaming(ctx, streamer, path, table, log)
			if err == nil {
				l.finish(inst, mod, StrategyStreaming, OutcomeOK, start, log)
				return nil
			}
			log.Warn("wasm streaming compile failed", zap.Error(err))
			log.Warn("falling back to buffered instantiation")
			return l.buffered(ctx, inst, path, nil, table, OutcomeFallback, start, log)
		}
	}
	return l.buffered(ctx, inst, path, image, table, OutcomeOK, start, log)
}

func (l *Loader) buffered(ctx context.Context, inst *Instance, path string, image []byte, table *imports.Table, outcome Outcome, start time.Time, log *zap.Logger) error {
	if image == nil {
		var err error
		image, err = l.src.Fetch(ctx, path)
		if err != nil {
			return l.fail(err, start, log)
		}
	}
	mod, err := l.compileAndInstantiate(ctx, image, path, table, log)
	if err != nil {
		return l.fail(err, start, log)
	}
	l.finish(inst, mod, StrategyBuffered, outcome, start, log)
	return nil
}

func (l *Loader) instantiateStreaming(ctx context.Context, streamer source.Streamer, path string, table *imports.Table, log *zap.Logger) (*module, error) {
	body, err := streamer.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	image, err := newSectionReader(body).readAll()
	if err != nil {
		return nil, err
	}
	return l.compileAndInstantiate(ctx, image, path, table, log)
}

// module is an instantiated guest with the runtime that owns it.
type module struct {
	rt  wazero.Runtime
	mod api.Module
}

func (l *Loader) compileAndInstantiate(ctx context.Context, image []byte, path string, table *imports.Table, log *zap.Logger) (*module, error) {
	cfg := wazero.NewRuntimeConfig().WithCompilationCache(l.cache)
	if l.memoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(l.memoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)

	fail := func(err error) (*module, error) {
		_ = rt.Close(ctx)
		if errors.Is(err, errors.ErrInstantiation) {
			return nil, err
		}
		return nil, errors.Instantiation(truncatePath(path), err)
	}

	compiled, err := rt.CompileModule(ctx, image)
	if err != nil {
		return fail(err)
	}

	extras, err := table.Check(compiled.ImportedFunctions())
	if err != nil {
		return fail(err)
	}
	if len(extras) > 0 {
		log.Debug("host functions not imported by module", zap.Strings("functions", extras))
	}

	if err := table.Instantiate(ctx, rt); err != nil {
		return fail(err)
	}

	mod, err := rt.InstantiateModule(ctx, compiled,
		wazero.NewModuleConfig().WithName("").WithStartFunctions())
	if err != nil {
		return fail(err)
	}

	if err := l.initialize(ctx, mod, log); err != nil {
		return fail(err)
	}
	return &module{rt: rt, mod: mod}, nil
}

func (l *Loader) initialize(ctx context.Context, mod api.Module, log *zap.Logger) error {
	for _, name := range initExports {
		if fn := mod.ExportedFunction(name); fn != nil {
			log.Debug("running module initializer", zap.String("export", name))
			if _, err := fn.Call(ctx); err != nil {
				return errors.Trap(name, err)
			}
			break
		}
	}

	if !l.runMain {
		return nil
	}
	for _, name := range mainExports {
		fn := mod.ExportedFunction(name)
		if fn == nil {
			continue
		}
		params := make([]uint64, len(fn.Definition().ParamTypes()))
		log.Debug("running main", zap.String("export", name), zap.Int("params", len(params)))
		if _, err := fn.Call(ctx, params...); err != nil {
			return errors.Trap(name, err)
		}
		return nil
	}
	log.Debug("run main requested but module exports no main")
	return nil
}

func (l *Loader) finish(inst *Instance, m *module, strategy Strategy, outcome Outcome, start time.Time, log *zap.Logger) {
	inst.attach(m)
	elapsed := time.Since(start)
	log.Debug("module instantiated",
		zap.String("strategy", string(strategy)),
		zap.String("outcome", string(outcome)),
		zap.Duration("elapsed", elapsed))
	if l.observer != nil {
		l.observer.Loaded(strategy, outcome, elapsed)
	}
}

func (l *Loader) fail(err error, start time.Time, log *zap.Logger) error {
	log.Error("module load failed", zap.Error(err))
	if l.observer != nil {
		l.observer.Loaded(StrategyBuffered, OutcomeFailed, time.Since(start))
	}
	return err
}

func truncatePath(path string) string {
	const limit = 96
	if len(path) <= limit {
		return path
	}
	return path[:limit] + "..."
}

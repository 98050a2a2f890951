package runtime

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasishim/abi"
	"github.com/wippyai/wasishim/asyncify"
	"github.com/wippyai/wasishim/errors"
	"github.com/wippyai/wasishim/wasi/preview1"
)

// Config holds runtime settings.
type Config struct {
	// MemoryLimitPages caps guest memory in 64 KiB pages. 0 keeps the wazero
	// default.
	MemoryLimitPages uint32
	// Layout is the asyncify data region used for instrumented guests.
	Layout asyncify.Layout
}

// Option adjusts a Config.
type Option func(*Config)

// WithMemoryLimitPages caps guest memory.
func WithMemoryLimitPages(pages uint32) Option {
	return func(c *Config) { c.MemoryLimitPages = pages }
}

// WithLayout sets the asyncify data region.
func WithLayout(l asyncify.Layout) Option {
	return func(c *Config) { c.Layout = l }
}

// Runtime owns a wazero runtime and the preview1 host module.
type Runtime struct {
	cfg    Config
	rt     wazero.Runtime
	mu     sync.RWMutex
	host   api.Module
	guests map[string]*Instance
	seq    uint64
}

// New creates a runtime.
func New(ctx context.Context, opts ...Option) (*Runtime, error) {
	cfg := Config{Layout: asyncify.DefaultLayout()}
	for _, opt := range opts {
		opt(&cfg)
	}

	rtCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		rtCfg = rtCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	return &Runtime{
		cfg:    cfg,
		rt:     wazero.NewRuntimeWithConfig(ctx, rtCfg),
		guests: make(map[string]*Instance),
	}, nil
}

// Close releases the runtime and every instance created from it.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	r.guests = make(map[string]*Instance)
	r.host = nil
	r.mu.Unlock()
	return r.rt.Close(ctx)
}

// Run instantiates wasm, runs _start and closes the instance. It returns the
// guest's exit code.
func (r *Runtime) Run(ctx context.Context, wasm []byte, opts preview1.Options) (uint32, error) {
	inst, err := r.Instantiate(ctx, wasm, opts)
	if err != nil {
		return 0, err
	}
	defer inst.Close(ctx)
	return inst.Start(ctx)
}

// Instantiate compiles wasm and instantiates it against a fresh preview1
// import table built from opts. Start functions are not run; call Start or
// Initialize on the returned instance.
func (r *Runtime) Instantiate(ctx context.Context, wasm []byte, opts preview1.Options) (*Instance, error) {
	if err := r.ensureHost(ctx); err != nil {
		return nil, err
	}

	compiled, err := r.rt.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Load("compile guest", err)
	}
	defer compiled.Close(ctx)

	asyncified, err := detectAsyncify(compiled)
	if err != nil {
		return nil, err
	}

	inst := &Instance{
		runtime: r,
		wasi:    preview1.New(opts),
	}
	if asyncified {
		inst.bridge = asyncify.NewBridge(r.cfg.Layout)
	}
	inst.imports = make(map[string]asyncify.SyncFunc, len(abi.ImportNames))
	for name, h := range inst.wasi.Imports() {
		if _, ok := signatures[name]; !ok {
			Logger().Warn("import has no preview1 signature", zap.String("name", name))
			continue
		}
		if inst.bridge != nil {
			inst.imports[name] = inst.bridge.WrapImport(h)
		} else {
			inst.imports[name] = asyncify.Blocking(h)
		}
	}

	r.mu.Lock()
	r.seq++
	inst.name = fmt.Sprintf("guest-%d", r.seq)
	r.guests[inst.name] = inst
	r.mu.Unlock()

	mod, err := r.rt.InstantiateModule(ctx, compiled,
		wazero.NewModuleConfig().WithName(inst.name).WithStartFunctions())
	if err != nil {
		r.forget(inst.name)
		return nil, errors.Instantiation(err)
	}
	inst.module = mod

	if inst.bridge != nil {
		if err := inst.bind(); err != nil {
			_ = inst.Close(ctx)
			return nil, err
		}
	}

	Logger().Debug("guest instantiated",
		zap.String("name", inst.name),
		zap.Bool("asyncify", asyncified))
	return inst, nil
}

// detectAsyncify reports whether compiled carries the asyncify control
// exports. A partial set is an error.
func detectAsyncify(compiled wazero.CompiledModule) (bool, error) {
	exports := compiled.ExportedFunctions()
	missing := asyncify.MissingControlExports(func(name string) bool {
		_, ok := exports[name]
		return ok
	})
	switch len(missing) {
	case 0:
		return true, nil
	case len(asyncify.ControlExports):
		return false, nil
	default:
		return false, &errors.MissingExportsError{Group: "asyncify", Exports: missing}
	}
}

// ensureHost instantiates the preview1 host module once.
func (r *Runtime) ensureHost(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.host != nil {
		return nil
	}

	builder := r.rt.NewHostModuleBuilder(abi.ModuleName)
	for _, name := range abi.ImportNames {
		sig, ok := signatures[name]
		if !ok {
			return errors.Registration(abi.ModuleName, name, fmt.Errorf("no signature"))
		}
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(r.dispatch(name, sig), sig.params, sig.results).
			Export(name)
	}

	host, err := builder.Instantiate(ctx)
	if err != nil {
		return errors.Registration(abi.ModuleName, "*", err)
	}
	r.host = host
	return nil
}

// dispatch routes a host call to the import table of the calling guest.
// Errors are raised as panics so wazero traps the guest.
func (r *Runtime) dispatch(name string, sig signature) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		inst := r.lookup(mod.Name())
		if inst == nil {
			panic(errors.NotInitialized(errors.PhaseHost, "guest "+mod.Name()))
		}
		fn, ok := inst.imports[name]
		if !ok {
			panic(errors.NotFound(errors.PhaseHost, "import", name))
		}

		params := slices.Clone(stack[:len(sig.params)])
		v, err := fn(ctx, params)
		if err != nil {
			panic(err)
		}
		if len(sig.results) > 0 {
			stack[0] = v
		}
	}
}

func (r *Runtime) lookup(name string) *Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.guests[name]
}

func (r *Runtime) forget(name string) {
	r.mu.Lock()
	delete(r.guests, name)
	r.mu.Unlock()
}

package runtime

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasishim"
	"github.com/wippyai/wasishim/asyncify"
	"github.com/wippyai/wasishim/errors"
	"github.com/wippyai/wasishim/internal/memory"
	"github.com/wippyai/wasishim/wasi/preview1"
)

// Instance is an instantiated guest with its own import table.
type Instance struct {
	runtime *Runtime
	name    string
	module  api.Module
	wasi    *preview1.WASI
	bridge  *asyncify.Bridge
	imports map[string]asyncify.SyncFunc
}

// Name returns the module name the guest was instantiated under.
func (i *Instance) Name() string {
	return i.name
}

// Asyncified reports whether calls go through the suspension bridge.
func (i *Instance) Asyncified() bool {
	return i.bridge != nil
}

// WASI returns the guest's preview1 state.
func (i *Instance) WASI() *preview1.WASI {
	return i.wasi
}

// Memory returns the guest memory exported as "memory", or nil.
func (i *Instance) Memory() wasishim.Memory {
	return memory.FromModule(i.module)
}

// Start runs _start and returns the guest's exit code.
func (i *Instance) Start(ctx context.Context) (uint32, error) {
	return i.wasi.Start(ctx, guest{i})
}

// Initialize runs the reactor entry point _initialize.
func (i *Instance) Initialize(ctx context.Context) error {
	return i.wasi.Initialize(ctx, guest{i})
}

// Call invokes an exported function with raw wasm values.
func (i *Instance) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn := guest{i}.ExportedFunction(name)
	if fn == nil {
		return nil, errors.MissingExport(errors.PhaseRuntime, name)
	}
	return fn.Call(ctx, params...)
}

// Close closes the guest module and detaches it from the host module.
func (i *Instance) Close(ctx context.Context) error {
	i.runtime.forget(i.name)
	if i.module == nil {
		return nil
	}
	return i.module.Close(ctx)
}

func (i *Instance) bind() error {
	ctrl, err := asyncify.NewModuleController(i.module)
	if err != nil {
		return err
	}
	mem := i.Memory()
	if mem == nil {
		return errors.MissingExport(errors.PhaseLoad, "memory")
	}
	return i.bridge.Bind(ctrl, mem)
}

// guest adapts an Instance to preview1.Instance.
type guest struct {
	inst *Instance
}

func (g guest) ExportedFunction(name string) asyncify.Function {
	fn := g.inst.module.ExportedFunction(name)
	if fn == nil {
		return nil
	}
	var call asyncify.Function = function{fn}
	if g.inst.bridge != nil {
		call = g.inst.bridge.WrapExport(call)
	}
	return export{Function: call, def: fn.Definition()}
}

func (g guest) Memory() wasishim.Memory {
	return g.inst.Memory()
}

type function struct {
	fn api.Function
}

func (f function) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	return f.fn.Call(ctx, params...)
}

// export carries the arity of the underlying wasm function.
type export struct {
	asyncify.Function
	def api.FunctionDefinition
}

func (e export) ParamCount() int  { return len(e.def.ParamTypes()) }
func (e export) ResultCount() int { return len(e.def.ResultTypes()) }

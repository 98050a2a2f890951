package preview1

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/wippyai/wasishim"
	"github.com/wippyai/wasishim/abi"
	"github.com/wippyai/wasishim/asyncify"
	"github.com/wippyai/wasishim/errors"
)

// Entry points.
const (
	ExportStart      = "_start"
	ExportInitialize = "_initialize"
)

// Instance is the view of a guest WASI needs at lifecycle entry.
type Instance interface {
	// ExportedFunction returns nil when name is not an exported function.
	ExportedFunction(name string) asyncify.Function
	// Memory returns nil when the guest exports no memory.
	Memory() wasishim.Memory
}

// Signature is implemented by exports that can report their arity.
type Signature interface {
	ParamCount() int
	ResultCount() int
}

// WASI owns one guest's import table and lifecycle.
type WASI struct {
	opts    Options
	env     *Env
	imports Imports
	mem     wasishim.Memory
	entered string
}

// New builds the import table for opts.
func New(opts Options) *WASI {
	w := &WASI{opts: opts}
	w.env = &Env{Options: &w.opts, Codec: abi.NewCodec(), memory: w.memory}
	w.imports = BuildImports(w.env)
	return w
}

// Imports returns the handler for every preview1 name.
func (w *WASI) Imports() Imports {
	return w.imports
}

// Env returns the environment the features were built from.
func (w *WASI) Env() *Env {
	return w.env
}

func (w *WASI) memory() (wasishim.Memory, error) {
	if w.mem == nil {
		return nil, errors.NotInitialized(errors.PhaseRuntime, "guest memory")
	}
	return w.mem, nil
}

// Start runs the command entry point _start once and returns the guest's
// exit code: the value passed to proc_exit, or 0 when _start returns.
func (w *WASI) Start(ctx context.Context, inst Instance) (code uint32, err error) {
	fn, err := w.enter(inst, ExportStart)
	if err != nil {
		return 0, err
	}

	defer func() {
		if r := recover(); r != nil {
			exit, ok := r.(*ExitError)
			if !ok {
				panic(r)
			}
			code, err = exit.Code, nil
		}
	}()

	_, err = fn.Call(ctx)
	var exit *ExitError
	if stderrors.As(err, &exit) {
		return exit.Code, nil
	}
	if err != nil {
		return 0, err
	}
	return 0, nil
}

// Initialize runs the reactor entry point _initialize once.
func (w *WASI) Initialize(ctx context.Context, inst Instance) error {
	fn, err := w.enter(inst, ExportInitialize)
	if err != nil {
		return err
	}
	if _, err := fn.Call(ctx); err != nil {
		return fmt.Errorf("%s: %w", ExportInitialize, err)
	}
	return nil
}

func (w *WASI) enter(inst Instance, name string) (asyncify.Function, error) {
	if w.entered != "" {
		return nil, errors.AlreadyStarted(w.entered)
	}
	// A failed attempt still counts as the one entry.
	w.entered = name

	fn := inst.ExportedFunction(name)
	if fn == nil {
		return nil, errors.MissingExport(errors.PhaseStart, name)
	}
	if sig, ok := fn.(Signature); ok && (sig.ParamCount() != 0 || sig.ResultCount() != 0) {
		return nil, errors.WrongType(errors.PhaseStart, name,
			fmt.Sprintf("want () -> (), got %d params and %d results", sig.ParamCount(), sig.ResultCount()))
	}
	mem := inst.Memory()
	if mem == nil {
		return nil, errors.MissingExport(errors.PhaseStart, "memory")
	}

	w.mem = mem
	return fn, nil
}

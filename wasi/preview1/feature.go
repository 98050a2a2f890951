package preview1

import (
	"context"

	"github.com/wippyai/wasishim"
	"github.com/wippyai/wasishim/abi"
	"github.com/wippyai/wasishim/asyncify"
)

// Handler serves one preview1 function. params holds the raw wasm arguments
// in declaration order.
type Handler = asyncify.ImportFunc

// Imports maps preview1 function names to handlers.
type Imports map[string]Handler

// Feature contributes handlers to the import table.
type Feature func(env *Env) Imports

// Options configures a guest environment.
type Options struct {
	// Env holds environment variables. The guest sees them sorted by key.
	Env map[string]string
	// Args is the guest's argv, program name first.
	Args []string
	// Features are applied in order; later ones win on name clashes.
	Features []Feature
}

// Env is what every Feature is built from.
type Env struct {
	Options *Options
	Codec   *abi.Codec
	memory  func() (wasishim.Memory, error)
}

// NewEnv returns an Env whose memory accessor is mem. It is useful for
// exercising a Feature without a WASI instance.
func NewEnv(opts *Options, mem func() (wasishim.Memory, error)) *Env {
	return &Env{Options: opts, Codec: abi.NewCodec(), memory: mem}
}

// Memory returns the guest memory. It fails until the guest is started.
func (e *Env) Memory() (wasishim.Memory, error) {
	return e.memory()
}

// SyncFunc is a handler body that always answers immediately.
type SyncFunc func(ctx context.Context, mem wasishim.Memory, params []uint64) (abi.Errno, error)

// Sync adapts fn into a Handler bound to the guest memory.
func (e *Env) Sync(fn SyncFunc) Handler {
	return func(ctx context.Context, params []uint64) (asyncify.Result, error) {
		mem, err := e.Memory()
		if err != nil {
			return asyncify.Result{}, err
		}
		errno, err := fn(ctx, mem, params)
		if err != nil {
			return asyncify.Result{}, err
		}
		return Errno(errno), nil
	}
}

// Errno returns an immediate result carrying e.
func Errno(e abi.Errno) asyncify.Result {
	return asyncify.Immediate(uint64(e))
}

// U32 returns the i-th parameter as an unsigned 32-bit value.
func U32(params []uint64, i int) uint32 {
	return uint32(params[i])
}

// I64 returns the i-th parameter as a signed 64-bit value.
func I64(params []uint64, i int) int64 {
	return int64(params[i])
}
